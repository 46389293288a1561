package game

import (
	"fmt"
	"math/big"

	"farm-sync/internal/items"

	"github.com/shopspring/decimal"
)

// Changeset это current - previous, баланс и инвентарь в on-chain единицах.
// Нулевые дельты инвентаря отбрасываются, отрицательные остаются.
type Changeset struct {
	Balance   *big.Int            `json:"balance"`
	Inventory map[string]*big.Int `json:"inventory"`
	Stock     Inventory           `json:"-"`
	World     World               `json:"-"`
}

// Delta считает разницу баланса и инвентаря двух снимков в десятичных числах.
func Delta(current, previous GameState) (decimal.Decimal, Inventory) {
	balance := current.Balance.Sub(previous.Balance)

	inventory := Inventory{}
	for _, name := range unionNames(current.Inventory, previous.Inventory) {
		amount := current.Inventory.Get(name).Sub(previous.Inventory.Get(name))
		if amount.IsZero() {
			continue
		}
		inventory[name] = amount
	}
	return balance, inventory
}

func ComputeChangeset(current, previous GameState) (Changeset, error) {
	balance, delta := Delta(current, previous)

	wei, err := items.ToOnChain(balance, items.CurrencyUnit)
	if err != nil {
		return Changeset{}, fmt.Errorf("balance: %w", err)
	}

	inventory := make(map[string]*big.Int, len(delta))
	for name, amount := range delta {
		unit, err := items.UnitOf(name)
		if err != nil {
			return Changeset{}, err
		}
		onChain, err := items.ToOnChain(amount, unit)
		if err != nil {
			return Changeset{}, fmt.Errorf("%s: %w", name, err)
		}
		inventory[name] = onChain
	}

	return Changeset{
		Balance:   wei,
		Inventory: inventory,
		Stock:     current.Stock,
		World:     current.World,
	}, nil
}

func unionNames(a, b Inventory) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	names := make([]string, 0, len(a)+len(b))
	for _, inv := range []Inventory{a, b} {
		for name := range inv {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names
}
