package transport

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type columnKind int

const (
	kindRaw columnKind = iota
	kindText
	kindBinary
	kindDecimal
	kindBool
)

type columns struct {
	names []string
	kinds []columnKind
}

func newColumns(cts []*sql.ColumnType, byName bool) *columns {
	c := &columns{
		names: make([]string, len(cts)),
		kinds: make([]columnKind, len(cts)),
	}
	for i, ct := range cts {
		if byName {
			c.names[i] = ct.Name()
		} else {
			c.names[i] = strconv.Itoa(i)
		}
		c.kinds[i] = kindOf(ct.DatabaseTypeName())
	}
	return c
}

func kindOf(dbType string) columnKind {
	t := strings.ToUpper(dbType)
	switch {
	case t == "":
		return kindRaw
	case strings.Contains(t, "BINARY"), strings.Contains(t, "BLOB"), t == "IMAGE", t == "BYTEA", t == "ROWVERSION", t == "UNIQUEIDENTIFIER":
		return kindBinary
	case t == "DECIMAL", t == "NUMERIC", t == "MONEY", t == "SMALLMONEY":
		return kindDecimal
	case t == "BIT", t == "BOOL", t == "BOOLEAN":
		return kindBool
	case strings.Contains(t, "CHAR"), strings.Contains(t, "TEXT"), t == "XML", t == "JSON", t == "JSONB", t == "UUID":
		return kindText
	}
	return kindRaw
}

// row builds a Row from scanned driver values. Duplicate column names keep the
// last value.
func (c *columns) row(values []any) (Row, error) {
	row := make(Row, len(values))
	for i, v := range values {
		nv, err := normalize(c.kinds[i], v)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.names[i], err)
		}
		row[c.names[i]] = nv
	}
	return row, nil
}

func normalize(kind columnKind, v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		switch kind {
		case kindBinary:
			return val, nil
		case kindDecimal:
			return decimal.NewFromString(string(val))
		case kindBool:
			return strconv.ParseBool(string(val))
		}
		return string(val), nil
	case string:
		if kind == kindDecimal {
			return decimal.NewFromString(val)
		}
		return val, nil
	case float64:
		if kind == kindDecimal {
			return decimal.NewFromFloat(val), nil
		}
		return val, nil
	case float32:
		return float64(val), nil
	case int64:
		if kind == kindBool {
			return val != 0, nil
		}
		return val, nil
	case int:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case uint8:
		return int64(val), nil
	case bool, time.Time, decimal.Decimal:
		return val, nil
	}
	return fmt.Sprint(v), nil
}
