package database

import (
	"database/sql"
	"embed"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

func setup() error {
	goose.SetBaseFS(migrations)
	return goose.SetDialect("postgres")
}

// Migrate applies all pending migrations
func Migrate(db *sql.DB) error {
	if err := setup(); err != nil {
		return err
	}
	return goose.Up(db, migrationsDir)
}

// Rollback reverts the most recent migration
func Rollback(db *sql.DB) error {
	if err := setup(); err != nil {
		return err
	}
	return goose.Down(db, migrationsDir)
}

// Status prints the applied state of every migration
func Status(db *sql.DB) error {
	if err := setup(); err != nil {
		return err
	}
	return goose.Status(db, migrationsDir)
}
