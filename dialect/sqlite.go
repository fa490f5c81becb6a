package dialect

import (
	"errors"
	"strings"

	sqlite3drv "github.com/mattn/go-sqlite3"
	moderncsqlite "modernc.org/sqlite"
)

// SQLite dialect implementation; "sqlite3" is the cgo driver, "sqlite" the pure Go one.
type sqlite struct {
	name string
}

func init() {
	Register(&sqlite{name: "sqlite3"})
	Register(&sqlite{name: "sqlite"})
}

const (
	sqliteIOErr     = 10
	sqliteCantOpen  = 14
	sqlitePrimaryOf = 0xff
)

func (d *sqlite) Name() string   { return d.name }
func (d *sqlite) Driver() string { return d.name }

func (d *sqlite) Quote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// DSN returns the "path" parameter, or an in-memory database.
func (d *sqlite) DSN(params map[string]string) (string, error) {
	if path := params["path"]; path != "" {
		return path, nil
	}
	return ":memory:", nil
}

func (d *sqlite) ConnLost(err error) bool {
	if brokenConn(err) {
		return true
	}
	var cgoErr sqlite3drv.Error
	if errors.As(err, &cgoErr) {
		return cgoErr.Code == sqlite3drv.ErrIoErr || cgoErr.Code == sqlite3drv.ErrCantOpen
	}
	var pureErr *moderncsqlite.Error
	if errors.As(err, &pureErr) {
		code := pureErr.Code() & sqlitePrimaryOf
		return code == sqliteIOErr || code == sqliteCantOpen
	}
	return false
}
