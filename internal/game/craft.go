package game

import (
	"errors"
	"fmt"
	"slices"

	"farm-sync/internal/items"

	"github.com/shopspring/decimal"
)

const ActionItemCrafted = "item.crafted"

var ErrInvalidAction = errors.New("invalid action")

type Action struct {
	Type   string
	Item   string
	Amount int
}

// Craft применяет одно действие крафта. Входное состояние не меняется,
// при ошибке откатывать нечего.
func Craft(state GameState, action Action, available []string) (GameState, error) {
	if action.Type != ActionItemCrafted {
		return GameState{}, fmt.Errorf("%w: unsupported action type %q", ErrInvalidAction, action.Type)
	}
	if !slices.Contains(available, action.Item) {
		return GameState{}, fmt.Errorf("%w: %q is not craftable", ErrInvalidAction, action.Item)
	}
	if action.Amount < 1 {
		return GameState{}, fmt.Errorf("%w: amount must be positive", ErrInvalidAction)
	}
	recipe, ok := items.Limited(action.Item)
	if !ok {
		return GameState{}, fmt.Errorf("%w: no recipe for %q", ErrInvalidAction, action.Item)
	}

	amount := decimal.NewFromInt(int64(action.Amount))
	price := recipe.SFL.Mul(amount)
	if state.Balance.LessThan(price) {
		return GameState{}, fmt.Errorf("%w: insufficient tokens", ErrInvalidAction)
	}

	inventory := state.Inventory.Clone()
	if inventory == nil {
		inventory = Inventory{}
	}
	for _, ing := range recipe.Ingredients {
		required := ing.Amount.Mul(amount)
		have := inventory.Get(ing.Item)
		if have.LessThan(required) {
			return GameState{}, fmt.Errorf("%w: insufficient ingredient %s", ErrInvalidAction, ing.Item)
		}
		left := have.Sub(required)
		if left.IsZero() {
			delete(inventory, ing.Item)
		} else {
			inventory[ing.Item] = left
		}
	}
	inventory[action.Item] = inventory.Get(action.Item).Add(amount)

	return GameState{
		Balance:   state.Balance.Sub(price),
		Inventory: inventory,
		Stock:     state.Stock.Clone(),
		World:     state.World,
	}, nil
}
