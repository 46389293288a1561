package game

import (
	"errors"
	"fmt"
	"math/big"

	"farm-sync/internal/items"
	"farm-sync/internal/models"

	"github.com/shopspring/decimal"
)

var ErrMalformedDecimal = errors.New("malformed decimal")

// Normalize переводит сохранённый снимок в decimal для арифметики.
func Normalize(raw models.FarmSession) (GameState, error) {
	balance, err := parseDecimal("balance", raw.Balance)
	if err != nil {
		return GameState{}, err
	}
	inventory, err := parseInventory("inventory", raw.Inventory)
	if err != nil {
		return GameState{}, err
	}
	stock, err := parseInventory("stock", raw.Stock)
	if err != nil {
		return GameState{}, err
	}

	world := World{Fields: parseFields(raw.Fields)}
	if raw.Trees != nil {
		world.Trees = make(map[int]Tree, len(raw.Trees))
		for i, tr := range raw.Trees {
			wood, err := parseDecimal(fmt.Sprintf("trees[%d].wood", i), tr.Wood)
			if err != nil {
				return GameState{}, err
			}
			world.Trees[i] = Tree{Wood: wood, ChoppedAt: tr.ChoppedAt}
		}
	}
	if world.Stones, err = parseRocks("stones", raw.Stones); err != nil {
		return GameState{}, err
	}
	if world.Iron, err = parseRocks("iron", raw.Iron); err != nil {
		return GameState{}, err
	}
	if world.Gold, err = parseRocks("gold", raw.Gold); err != nil {
		return GameState{}, err
	}

	return GameState{
		Balance:   balance,
		Inventory: inventory,
		Stock:     stock,
		World:     world,
	}, nil
}

// Denormalize обратна Normalize, нужна при записи снимка.
func Denormalize(state GameState) models.FarmSession {
	raw := models.FarmSession{
		Balance:   state.Balance.String(),
		Inventory: formatInventory(state.Inventory),
		Stock:     formatInventory(state.Stock),
		Fields:    formatFields(state.World.Fields),
	}
	if state.World.Trees != nil {
		raw.Trees = make(map[int]models.Tree, len(state.World.Trees))
		for i, tr := range state.World.Trees {
			raw.Trees[i] = models.Tree{Wood: tr.Wood.String(), ChoppedAt: tr.ChoppedAt}
		}
	}
	raw.Stones = formatRocks(state.World.Stones)
	raw.Iron = formatRocks(state.World.Iron)
	raw.Gold = formatRocks(state.World.Gold)
	return raw
}

// DecodeOnChainInventory сопоставляет ответ balanceOfBatch(KnownIDs()) с именами.
// amounts[i] относится к i-й позиции реестра.
func DecodeOnChainInventory(amounts []*big.Int) (Inventory, error) {
	known := items.Catalogue().Items()
	if len(amounts) > len(known) {
		return nil, fmt.Errorf("on-chain inventory has %d amounts, registry has %d items", len(amounts), len(known))
	}
	inventory := Inventory{}
	for i, amount := range amounts {
		value := items.FromOnChain(amount, known[i].Unit)
		if value.IsZero() {
			continue
		}
		inventory[known[i].Name] = value
	}
	return inventory, nil
}

// DecodeOnChainBalances то же самое, но по id.
func DecodeOnChainBalances(balances map[uint64]*big.Int) (Inventory, error) {
	inventory := Inventory{}
	for id, amount := range balances {
		it, err := items.Catalogue().ItemByID(id)
		if err != nil {
			return nil, err
		}
		value := items.FromOnChain(amount, it.Unit)
		if value.IsZero() {
			continue
		}
		inventory[it.Name] = value
	}
	return inventory, nil
}

func parseDecimal(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s=%q", ErrMalformedDecimal, field, s)
	}
	return d, nil
}

func parseInventory(field string, raw map[string]string) (Inventory, error) {
	if raw == nil {
		return nil, nil
	}
	inv := make(Inventory, len(raw))
	for name, s := range raw {
		d, err := parseDecimal(field+"["+name+"]", s)
		if err != nil {
			return nil, err
		}
		if d.IsZero() {
			continue
		}
		inv[name] = d
	}
	return inv, nil
}

func formatInventory(inv Inventory) map[string]string {
	if inv == nil {
		return nil
	}
	raw := make(map[string]string, len(inv))
	for name, d := range inv {
		if d.IsZero() {
			continue
		}
		raw[name] = d.String()
	}
	return raw
}

func parseRocks(field string, raw map[int]models.Rock) (map[int]Rock, error) {
	if raw == nil {
		return nil, nil
	}
	rocks := make(map[int]Rock, len(raw))
	for i, r := range raw {
		amount, err := parseDecimal(fmt.Sprintf("%s[%d].amount", field, i), r.Amount)
		if err != nil {
			return nil, err
		}
		rocks[i] = Rock{Amount: amount, MinedAt: r.MinedAt}
	}
	return rocks, nil
}

func formatRocks(rocks map[int]Rock) map[int]models.Rock {
	if rocks == nil {
		return nil
	}
	raw := make(map[int]models.Rock, len(rocks))
	for i, r := range rocks {
		raw[i] = models.Rock{Amount: r.Amount.String(), MinedAt: r.MinedAt}
	}
	return raw
}

func parseFields(fields map[int]models.Field) map[int]Field {
	if fields == nil {
		return nil
	}
	out := make(map[int]Field, len(fields))
	for i, f := range fields {
		out[i] = Field{Name: f.Name, PlantedAt: f.PlantedAt}
	}
	return out
}

func formatFields(fields map[int]Field) map[int]models.Field {
	if fields == nil {
		return nil
	}
	out := make(map[int]models.Field, len(fields))
	for i, f := range fields {
		out[i] = models.Field{Name: f.Name, PlantedAt: f.PlantedAt}
	}
	return out
}
