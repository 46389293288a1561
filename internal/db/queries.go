package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"farm-sync/internal/models"
)

const selectFarm = `
SELECT id, owner, farm_address, session_id, game_state, previous_game_state,
       version, flagged_count, blacklisted_at, verify_at, created_at, updated_at
FROM farms
WHERE id = $1 AND lower(owner) = lower($2)`

const updateGameState = `
UPDATE farms SET game_state = $1, version = version + 1, updated_at = now()
WHERE id = $2 AND version = $3`

const updateSettlement = `
UPDATE farms SET previous_game_state = $1, session_id = $2, version = version + 1, updated_at = now()
WHERE id = $3 AND version = $4`

type farmDBImplementation struct {
	db *sql.DB
}

func NewFarmDB(dbConn *sql.DB) FarmDB {
	return &farmDBImplementation{
		db: dbConn,
	}
}

func (f *farmDBImplementation) GetFarm(ctx context.Context, owner string, id int64) (*models.Account, error) {
	var (
		acc                   models.Account
		current, previous     []byte
		blacklisted, verifyAt sql.NullTime
	)
	err := f.db.QueryRowContext(ctx, selectFarm, id, owner).Scan(
		&acc.ID, &acc.Owner, &acc.FarmAddress, &acc.SessionID, &current, &previous,
		&acc.Version, &acc.FlaggedCount, &blacklisted, &verifyAt, &acc.CreatedAt, &acc.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get farm %d: %w", id, err)
	}

	if err := json.Unmarshal(current, &acc.GameState); err != nil {
		return nil, fmt.Errorf("farm %d: corrupt game_state: %w", id, err)
	}
	if err := json.Unmarshal(previous, &acc.PreviousGameState); err != nil {
		return nil, fmt.Errorf("farm %d: corrupt previous_game_state: %w", id, err)
	}
	if blacklisted.Valid {
		acc.BlacklistedAt = &blacklisted.Time
	}
	if verifyAt.Valid {
		acc.VerifyAt = &verifyAt.Time
	}
	return &acc, nil
}

func (f *farmDBImplementation) SaveGameState(ctx context.Context, id int64, version int, state models.FarmSession) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode game state: %w", err)
	}
	res, err := f.db.ExecContext(ctx, updateGameState, raw, id, version)
	if err != nil {
		return fmt.Errorf("failed to save game state for farm %d: %w", id, err)
	}
	return checkVersion(res, id)
}

func (f *farmDBImplementation) AdvanceSettlement(ctx context.Context, id int64, version int, previous models.FarmSession, sessionID string) error {
	raw, err := json.Marshal(previous)
	if err != nil {
		return fmt.Errorf("failed to encode previous game state: %w", err)
	}
	res, err := f.db.ExecContext(ctx, updateSettlement, raw, sessionID, id, version)
	if err != nil {
		return fmt.Errorf("failed to advance settlement for farm %d: %w", id, err)
	}
	return checkVersion(res, id)
}

func checkVersion(res sql.Result, id int64) error {
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("farm %d: %w", id, ErrVersionConflict)
	}
	return nil
}
