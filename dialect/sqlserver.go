package dialect

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
)

type sqlserver struct{}

func init() {
	Register(&sqlserver{})
}

func (d *sqlserver) Name() string   { return "sqlserver" }
func (d *sqlserver) Driver() string { return "sqlserver" }

func (d *sqlserver) Quote(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// DSN serializes the parameters into an ADO style connection string with the
// keys sorted, e.g. "database=erp;password=x;server=db01;user id=sa;".
func (d *sqlserver) DSN(params map[string]string) (string, error) {
	if params["server"] == "" {
		return "", fmt.Errorf("sqlserver: missing %q parameter", "server")
	}
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var buffer bytes.Buffer
	for _, key := range keys {
		value := params[key]
		if strings.ContainsAny(value, ";{}") {
			value = "{" + strings.ReplaceAll(value, "}", "}}") + "}"
		}
		buffer.WriteString(fmt.Sprintf("%s=%s;", key, value))
	}
	return buffer.String(), nil
}

// ConnLost treats severity 20 and above as fatal: SQL Server terminates the
// session after raising them.
func (d *sqlserver) ConnLost(err error) bool {
	if brokenConn(err) {
		return true
	}
	var serr mssql.Error
	if errors.As(err, &serr) {
		return serr.Class >= 20
	}
	return false
}
