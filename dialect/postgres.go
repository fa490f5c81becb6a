package dialect

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
)

// Postgres dialect implementation; driver selects lib/pq ("postgres") or pgx ("pgx").
type postgres struct {
	name   string
	driver string
}

func init() {
	Register(&postgres{name: "postgres", driver: "postgres"})
	Register(&postgres{name: "pgx", driver: "pgx"})
}

func (d *postgres) Name() string   { return d.name }
func (d *postgres) Driver() string { return d.driver }

func (d *postgres) Quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// DSN builds a postgres:// URL. Parameters other than user, password, host and
// database become query options (sslmode and friends).
func (d *postgres) DSN(params map[string]string) (string, error) {
	host := params["host"]
	if host == "" {
		return "", fmt.Errorf("%s: missing %q parameter", d.name, "host")
	}
	u := &url.URL{Scheme: "postgres", Host: host, Path: "/" + params["database"]}
	if user := params["user"]; user != "" {
		if password, ok := params["password"]; ok {
			u.User = url.UserPassword(user, password)
		} else {
			u.User = url.User(user)
		}
	}

	var keys []string
	for key := range params {
		switch key {
		case "host", "database", "user", "password":
		default:
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	query := url.Values{}
	for _, key := range keys {
		query.Set(key, params[key])
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// ConnLost matches SQLSTATE class 08 (connection exception) and 57P (operator
// intervention: shutdown, terminated backend).
func (d *postgres) ConnLost(err error) bool {
	if brokenConn(err) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == "08" || strings.HasPrefix(string(pqErr.Code), "57P")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P")
	}
	return false
}
