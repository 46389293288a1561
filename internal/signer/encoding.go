package signer

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"farm-sync/internal/items"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var ErrInvalidClaim = errors.New("invalid claim")

// (sessionId, farmId, sender, ids, amounts, sfl): так же собирает сообщение
// игровой контракт перед ecrecover.
var settlementArgs = mustArguments("bytes32", "uint256", "address", "uint256[]", "int256[]", "int256")

func mustArguments(types ...string) abi.Arguments {
	args := make(abi.Arguments, 0, len(types))
	for _, t := range types {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			panic(err)
		}
		args = append(args, abi.Argument{Type: typ})
	}
	return args
}

type entry struct {
	id     uint64
	amount *big.Int
}

// sortedEntries переводит имена в on-chain id и сортирует по id.
func sortedEntries(registry *items.Registry, inventory map[string]*big.Int) ([]entry, error) {
	entries := make([]entry, 0, len(inventory))
	for name, amount := range inventory {
		id, err := registry.IDOf(name)
		if err != nil {
			return nil, err
		}
		if amount == nil {
			amount = new(big.Int)
		}
		entries = append(entries, entry{id: id, amount: amount})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })
	return entries, nil
}

func parseSessionID(s string) ([32]byte, error) {
	var session [32]byte
	raw, err := hexutil.Decode(s)
	if err != nil {
		return session, fmt.Errorf("%w: session id %q: %v", ErrInvalidClaim, s, err)
	}
	if len(raw) != len(session) {
		return session, fmt.Errorf("%w: session id must be 32 bytes, got %d", ErrInvalidClaim, len(raw))
	}
	copy(session[:], raw)
	return session, nil
}

func encode(claim Claim, entries []entry) ([]byte, error) {
	session, err := parseSessionID(claim.SessionID)
	if err != nil {
		return nil, err
	}
	if claim.FarmID < 0 {
		return nil, fmt.Errorf("%w: negative farm id %d", ErrInvalidClaim, claim.FarmID)
	}
	sfl := claim.SFL
	if sfl == nil {
		sfl = new(big.Int)
	}

	ids := make([]*big.Int, len(entries))
	amounts := make([]*big.Int, len(entries))
	for i, e := range entries {
		ids[i] = new(big.Int).SetUint64(e.id)
		amounts[i] = e.amount
	}

	packed, err := settlementArgs.Pack(session, big.NewInt(claim.FarmID), claim.Sender, ids, amounts, sfl)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClaim, err)
	}
	return packed, nil
}
