package items

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// CurrencyUnit: число знаков SFL в сети (wei).
const CurrencyUnit int32 = 18

var ErrPrecision = errors.New("value exceeds unit precision")

var catalogue = MustParse(catalogueYAML)

func init() {
	if catalogue.CurrencyUnit() != CurrencyUnit {
		panic(fmt.Sprintf("catalogue: currency unit %d, expected %d", catalogue.CurrencyUnit(), CurrencyUnit))
	}
}

// Catalogue возвращает встроенный реестр известных id.
func Catalogue() *Registry {
	return catalogue
}

func UnitOf(name string) (int32, error) {
	return catalogue.UnitOf(name)
}

func IDOf(name string) (uint64, error) {
	return catalogue.IDOf(name)
}

func KnownIDs() []uint64 {
	return catalogue.KnownIDs()
}

func Limited(name string) (LimitedItem, bool) {
	return catalogue.Limited(name)
}

// LimitedNames: белый список для минта.
func LimitedNames() []string {
	return catalogue.LimitedNames()
}

// ToOnChain переводит значение в целое on-chain количество.
// Никогда не округляет: лишние знаки после запятой дают ошибку.
func ToOnChain(v decimal.Decimal, unit int32) (*big.Int, error) {
	shifted := v.Shift(unit)
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("%w: %s at %d decimals", ErrPrecision, v.String(), unit)
	}
	return shifted.BigInt(), nil
}

func FromOnChain(v *big.Int, unit int32) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -unit)
}
