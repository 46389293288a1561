package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"farm-sync/internal/config"
	"farm-sync/internal/models"

	_ "github.com/lib/pq"
)

// строка изменилась после чтения
var ErrVersionConflict = errors.New("farm version conflict")

type FarmDB interface {
	// GetFarm оборачивает sql.ErrNoRows, если у owner нет фермы с таким id.
	GetFarm(ctx context.Context, owner string, id int64) (*models.Account, error)
	SaveGameState(ctx context.Context, id int64, version int, state models.FarmSession) error
	AdvanceSettlement(ctx context.Context, id int64, version int, previous models.FarmSession, sessionID string) error
}

func Connect(cfg *config.Config) (*sql.DB, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DatabaseHost,
		cfg.DatabasePort,
		cfg.DatabaseUser,
		cfg.DatabasePassword,
		cfg.DatabaseName,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s:%s/%s: %w", cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseName, err)
	}
	return db, nil
}
