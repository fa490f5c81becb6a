package bindings

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shrek82/projectdb/hooks"
)

func trim(v string, _ hooks.None) (string, error) {
	return strings.TrimSpace(v), nil
}

// ScanProject builds a Project from a row of the projects query, running the
// text and price filters over it.
func (b *Bindings) ScanProject(row map[string]any) (Project, error) {
	p := Project{
		ID:     text(row["id"]),
		Status: strings.TrimSpace(text(row["status"])),
		Price:  row["price"],
	}
	if t, ok := row["date_start"].(time.Time); ok {
		p.DateStart = t
	}

	fields := []struct {
		f    *hooks.Filter[string, hooks.None]
		col  string
		dest *string
	}{
		{b.ProjectNumber, "project_number", &p.ProjectNumber},
		{b.InstallNumber, "install_number", &p.InstallNumber},
		{b.ProjectDescription, "project_description", &p.ProjectDescription},
		{b.InstallDescription, "install_description", &p.InstallDescription},
		{b.RelationName, "relation_name", &p.RelationName},
	}
	for _, fd := range fields {
		v, err := fd.f.Apply(text(row[fd.col]), hooks.None{})
		if err != nil {
			return Project{}, err
		}
		*fd.dest = v
	}

	if p.Price != nil {
		price, err := b.ProjectPrice.Apply(p.Price, p)
		if err != nil {
			return Project{}, err
		}
		p.Price = price
	}
	return p, nil
}

// text renders a row value; nil is the empty string.
func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case decimal.Decimal:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
