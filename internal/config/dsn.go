package config

import (
	"fmt"
	"strings"
)

// DSN builds the PostgreSQL connection string from the database section.
func (c *AppConfig) DSN() string {
	db := c.Database
	parts := []string{
		fmt.Sprintf("host=%s", db.Host),
		fmt.Sprintf("port=%d", db.Port),
		fmt.Sprintf("user=%s", db.User),
		fmt.Sprintf("dbname=%s", db.Name),
	}
	if db.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", db.Password))
	}
	sslMode := db.SSLMode
	if sslMode == "" {
		sslMode = defaultDBSSLMode
	}
	parts = append(parts, fmt.Sprintf("sslmode=%s", sslMode))
	if db.Timezone != "" {
		parts = append(parts, fmt.Sprintf("TimeZone=%s", db.Timezone))
	}
	return strings.Join(parts, " ")
}
