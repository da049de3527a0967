package persistence

import (
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/systmms/containerlib/internal/config"
)

// SQLConfigTable is the table that holds the server configuration once the
// initial data import has finished.
const SQLConfigTable = "gluuConfiguration"

func mysqlDSN(s config.SQLSettings, password string) string {
	cfg := mysql.NewConfig()
	cfg.User = s.User
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	cfg.DBName = s.Database
	return cfg.FormatDSN()
}

func postgresDSN(s config.SQLSettings, password string) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(s.User, password),
		Host:     net.JoinHostPort(s.Host, strconv.Itoa(s.Port)),
		Path:     "/" + s.Database,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// OpenSQL opens a handle to the configured database. No connection is made
// until the handle is used.
func OpenSQL(s config.SQLSettings) (*sql.DB, error) {
	password, err := ReadPasswordFile(s.PasswordFile)
	if err != nil {
		return nil, err
	}
	driver, dsn, err := SQLDSN(s, password)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", s.Dialect, err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// SQLConfigQuery returns a statement that yields one row when the
// configuration table is populated, quoted for dialect.
func SQLConfigQuery(dialect string) string {
	if dialect == DialectMySQL {
		return "SELECT 1 FROM `" + SQLConfigTable + "` LIMIT 1"
	}
	return `SELECT 1 FROM "` + SQLConfigTable + `" LIMIT 1`
}
