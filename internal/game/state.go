package game

import (
	"github.com/shopspring/decimal"
)

// в Inventory нет нулей: отсутствующее имя значит ноль
type Inventory map[string]decimal.Decimal

func (inv Inventory) Get(name string) decimal.Decimal {
	if v, ok := inv[name]; ok {
		return v
	}
	return decimal.Zero
}

func (inv Inventory) Clone() Inventory {
	if inv == nil {
		return nil
	}
	out := make(Inventory, len(inv))
	for k, v := range inv {
		out[k] = v
	}
	return out
}

type Tree struct {
	Wood      decimal.Decimal
	ChoppedAt int64
}

type Rock struct {
	Amount  decimal.Decimal
	MinedAt int64
}

type Field struct {
	Name      string
	PlantedAt int64
}

// World: всё, кроме балансов, что хранится в снимке.
type World struct {
	Trees  map[int]Tree
	Stones map[int]Rock
	Iron   map[int]Rock
	Gold   map[int]Rock
	Fields map[int]Field
}

type GameState struct {
	Balance   decimal.Decimal
	Inventory Inventory
	Stock     Inventory
	World     World
}
