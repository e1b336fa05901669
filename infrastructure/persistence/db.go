package persistence

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"my-history/infrastructure/configuration"
	"my-history/infrastructure/logger"
)

// NewPostgreSQLDB opens the primary database from configuration.
func NewPostgreSQLDB() (*sql.DB, error) {
	cfg := configuration.C.Database.Psql
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Cannot open PostgreSQL connection")
		return nil, err
	}
	if err := db.Ping(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Cannot ping PostgreSQL")
		return nil, err
	}
	return db, nil
}
