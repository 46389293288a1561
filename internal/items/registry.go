package items

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var ErrUnknownItem = errors.New("unknown item")

//go:embed catalogue.yaml
var catalogueYAML []byte

// Item описывает одну позицию реестра известных id.
type Item struct {
	Name string `yaml:"name"`
	ID   uint64 `yaml:"id"`
	Unit int32  `yaml:"unit"`
	Kind string `yaml:"kind"`
}

type Ingredient struct {
	Item   string
	Amount decimal.Decimal
}

// LimitedItem: предмет для минта с ограниченным выпуском.
// Supply == 0 значит, что лимит ещё не задан.
type LimitedItem struct {
	Name        string
	Supply      int64
	SFL         decimal.Decimal
	Ingredients []Ingredient
}

type Registry struct {
	items   []Item
	byName  map[string]int
	byID    map[uint64]int
	limited map[string]LimitedItem
	// порядок как в каталоге
	limitedNames []string
	currencyUnit int32
}

type catalogueFile struct {
	Currency struct {
		Name string `yaml:"name"`
		Unit int32  `yaml:"unit"`
	} `yaml:"currency"`
	Items   []Item `yaml:"items"`
	Limited []struct {
		Name        string `yaml:"name"`
		Supply      int64  `yaml:"supply"`
		SFL         string `yaml:"sfl"`
		Ingredients []struct {
			Item   string `yaml:"item"`
			Amount string `yaml:"amount"`
		} `yaml:"ingredients"`
	} `yaml:"limited"`
}

func Parse(raw []byte) (*Registry, error) {
	var f catalogueFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("catalogue: %w", err)
	}

	r := &Registry{
		items:        f.Items,
		byName:       make(map[string]int, len(f.Items)),
		byID:         make(map[uint64]int, len(f.Items)),
		limited:      make(map[string]LimitedItem, len(f.Limited)),
		currencyUnit: f.Currency.Unit,
	}
	if r.currencyUnit < 0 {
		return nil, fmt.Errorf("catalogue: negative currency unit %d", r.currencyUnit)
	}
	for i, it := range f.Items {
		if it.Name == "" {
			return nil, fmt.Errorf("catalogue: item #%d has no name", i)
		}
		if it.Unit < 0 {
			return nil, fmt.Errorf("catalogue: item %q has negative unit %d", it.Name, it.Unit)
		}
		if _, dup := r.byName[it.Name]; dup {
			return nil, fmt.Errorf("catalogue: duplicate item name %q", it.Name)
		}
		if _, dup := r.byID[it.ID]; dup {
			return nil, fmt.Errorf("catalogue: duplicate item id %d", it.ID)
		}
		r.byName[it.Name] = i
		r.byID[it.ID] = i
	}

	for _, l := range f.Limited {
		if _, ok := r.byName[l.Name]; !ok {
			return nil, fmt.Errorf("catalogue: limited item %q: %w", l.Name, ErrUnknownItem)
		}
		if _, dup := r.limited[l.Name]; dup {
			return nil, fmt.Errorf("catalogue: duplicate limited item %q", l.Name)
		}
		item := LimitedItem{Name: l.Name, Supply: l.Supply, SFL: decimal.Zero}
		if l.SFL != "" {
			price, err := decimal.NewFromString(l.SFL)
			if err != nil {
				return nil, fmt.Errorf("catalogue: limited item %q price: %w", l.Name, err)
			}
			item.SFL = price
		}
		for _, ing := range l.Ingredients {
			if _, ok := r.byName[ing.Item]; !ok {
				return nil, fmt.Errorf("catalogue: ingredient %q of %q: %w", ing.Item, l.Name, ErrUnknownItem)
			}
			amount, err := decimal.NewFromString(ing.Amount)
			if err != nil {
				return nil, fmt.Errorf("catalogue: ingredient %q of %q: %w", ing.Item, l.Name, err)
			}
			item.Ingredients = append(item.Ingredients, Ingredient{Item: ing.Item, Amount: amount})
		}
		r.limited[l.Name] = item
		r.limitedNames = append(r.limitedNames, l.Name)
	}
	return r, nil
}

func MustParse(raw []byte) *Registry {
	r, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) UnitOf(name string) (int32, error) {
	i, ok := r.byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownItem, name)
	}
	return r.items[i].Unit, nil
}

func (r *Registry) IDOf(name string) (uint64, error) {
	i, ok := r.byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownItem, name)
	}
	return r.items[i].ID, nil
}

func (r *Registry) ItemByID(id uint64) (Item, error) {
	i, ok := r.byID[id]
	if !ok {
		return Item{}, fmt.Errorf("%w: id %d", ErrUnknownItem, id)
	}
	return r.items[i], nil
}

// Items возвращает реестр в порядке контракта.
func (r *Registry) Items() []Item {
	out := make([]Item, len(r.items))
	copy(out, r.items)
	return out
}

func (r *Registry) KnownIDs() []uint64 {
	ids := make([]uint64, len(r.items))
	for i, it := range r.items {
		ids[i] = it.ID
	}
	return ids
}

func (r *Registry) Limited(name string) (LimitedItem, bool) {
	l, ok := r.limited[name]
	return l, ok
}

func (r *Registry) LimitedNames() []string {
	out := make([]string, len(r.limitedNames))
	copy(out, r.limitedNames)
	return out
}

func (r *Registry) CurrencyUnit() int32 {
	return r.currencyUnit
}
