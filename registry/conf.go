package registry

import (
	"fmt"
	"net/url"
)

// Conf describes the SQL connection.
type Conf struct {
	Type string `json:"type"` // mysql or pgsql
	Host string `json:"host"`
	Port int    `json:"port"`
	User string `json:"user"`
	PW   string `json:"pw"`
	DB   string `json:"db"`
	TZ   string `json:"tz"`  // connection time zone
	DSN  string `json:"dsn"` // overrides the generated DSN
}

// driverName maps Conf.Type to a database/sql driver.
func (c *Conf) driverName() (string, error) {
	switch c.Type {
	case "mysql":
		return "mysql", nil
	case "pgsql":
		return "pgx", nil
	}
	return "", fmt.Errorf("registry: unsupported database type %q", c.Type)
}

// dsn returns the connection string for c.Type.
func (c *Conf) dsn() string {
	if c.DSN != "" {
		return c.DSN
	}
	tz := c.TZ
	if tz == "" {
		tz = "UTC"
	}
	if c.Type == "pgsql" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=%s",
			c.Host, c.Port, c.User, c.PW, c.DB, tz)
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=%s",
		c.User, c.PW, c.Host, c.Port, c.DB, url.QueryEscape(tz))
}
