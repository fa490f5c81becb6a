package dialect

import (
	"errors"
	"fmt"
	"strings"

	mysqldrv "github.com/go-sql-driver/mysql"
)

// MySQL dialect implementation
type mysql struct{}

func init() {
	Register(&mysql{})
}

// server side codes that end the session
var mysqlLostCodes = map[uint16]bool{
	1053: true, // ER_SERVER_SHUTDOWN
	1152: true, // ER_ABORTING_CONNECTION
	1927: true, // ER_CONNECTION_KILLED
}

func (d *mysql) Name() string   { return "mysql" }
func (d *mysql) Driver() string { return "mysql" }

func (d *mysql) Quote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d *mysql) DSN(params map[string]string) (string, error) {
	cfg := mysqldrv.NewConfig()
	cfg.ParseTime = true
	for key, value := range params {
		switch key {
		case "user":
			cfg.User = value
		case "password":
			cfg.Passwd = value
		case "host":
			cfg.Addr = value
		case "database":
			cfg.DBName = value
		case "net":
			cfg.Net = value
		default:
			if cfg.Params == nil {
				cfg.Params = make(map[string]string)
			}
			cfg.Params[key] = value
		}
	}
	if cfg.Addr == "" {
		return "", fmt.Errorf("mysql: missing %q parameter", "host")
	}
	if cfg.Net == "" {
		cfg.Net = "tcp"
	}
	return cfg.FormatDSN(), nil
}

func (d *mysql) ConnLost(err error) bool {
	if brokenConn(err) || errors.Is(err, mysqldrv.ErrInvalidConn) {
		return true
	}
	var merr *mysqldrv.MySQLError
	if errors.As(err, &merr) {
		return mysqlLostCodes[merr.Number]
	}
	return false
}
