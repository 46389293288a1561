package models

import "time"

// FarmSession: сохранённый снимок, числа хранятся строками.
type FarmSession struct {
	Balance   string            `json:"balance"`
	Inventory map[string]string `json:"inventory"`
	Stock     map[string]string `json:"stock"`
	Trees     map[int]Tree      `json:"trees,omitempty"`
	Stones    map[int]Rock      `json:"stones,omitempty"`
	Iron      map[int]Rock      `json:"iron,omitempty"`
	Gold      map[int]Rock      `json:"gold,omitempty"`
	Fields    map[int]Field     `json:"fields,omitempty"`
}

type Tree struct {
	Wood      string `json:"wood"`
	ChoppedAt int64  `json:"choppedAt"`
}

type Rock struct {
	Amount  string `json:"amount"`
	MinedAt int64  `json:"minedAt"`
}

type Field struct {
	Name      string `json:"name"`
	PlantedAt int64  `json:"plantedAt"`
}

type Account struct {
	ID                int64
	Owner             string
	FarmAddress       string
	SessionID         string
	GameState         FarmSession
	PreviousGameState FarmSession
	Version           int
	FlaggedCount      int
	BlacklistedAt     *time.Time
	VerifyAt          *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
