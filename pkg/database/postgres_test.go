package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/timetable-admin/pkg/config"
)

func TestDSNAndDriverName(t *testing.T) {
	cfg := config.DatabaseConfig{Driver: config.DriverPGX, Host: "db", Port: 5432, User: "u", Password: "p", Name: "timetable", SSLMode: "disable"}

	assert.Equal(t, "host=db port=5432 user=u password=p dbname=timetable sslmode=disable application_name=timetable-admin", DSN(cfg))
	assert.Equal(t, "pgx", driverName(cfg.Driver))
	assert.Equal(t, "postgres", driverName(config.DriverPostgres))
}

func TestDSNQuotesAwkwardValues(t *testing.T) {
	cfg := config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: `it's a \secret`, Name: "timetable"}

	assert.Equal(t, `host=db port=5432 user=u password='it\'s a \\secret' dbname=timetable application_name=timetable-admin`, DSN(cfg))
}
