package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
)

var ErrBadResponse = errors.New("unexpected contract response")

const inventoryABI = `[
	{"type":"function","name":"totalSupply","stateMutability":"view",
	 "inputs":[{"name":"id","type":"uint256"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"balanceOfBatch","stateMutability":"view",
	 "inputs":[{"name":"accounts","type":"address[]"},{"name":"ids","type":"uint256[]"}],
	 "outputs":[{"name":"","type":"uint256[]"}]}
]`

const tokenABI = `[
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"account","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]}
]`

const farmABI = `[
	{"type":"function","name":"getSessionId","stateMutability":"view",
	 "inputs":[{"name":"farmId","type":"uint256"}],
	 "outputs":[{"name":"","type":"bytes32"}]}
]`

type Contracts struct {
	Inventory common.Address
	Token     common.Address
	Farm      common.Address
}

// Client читает выпуск, балансы и сессии из игровых контрактов.
type Client struct {
	inventory *bind.BoundContract
	token     *bind.BoundContract
	farm      *bind.BoundContract
}

func New(caller bind.ContractCaller, contracts Contracts) (*Client, error) {
	inventory, err := bindContract(inventoryABI, contracts.Inventory, caller)
	if err != nil {
		return nil, fmt.Errorf("inventory contract: %w", err)
	}
	token, err := bindContract(tokenABI, contracts.Token, caller)
	if err != nil {
		return nil, fmt.Errorf("token contract: %w", err)
	}
	farm, err := bindContract(farmABI, contracts.Farm, caller)
	if err != nil {
		return nil, fmt.Errorf("farm contract: %w", err)
	}
	return &Client{inventory: inventory, token: token, farm: farm}, nil
}

// Dial подключается к JSON-RPC ноде. Возвращённая функция закрывает соединение.
func Dial(ctx context.Context, rpcURL string, contracts Contracts) (*Client, func(), error) {
	rpc, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to dial rpc: %w", err)
	}
	client, err := New(rpc, contracts)
	if err != nil {
		rpc.Close()
		return nil, nil, err
	}
	return client, rpc.Close, nil
}

func bindContract(raw string, address common.Address, caller bind.ContractCaller) (*bind.BoundContract, error) {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		return nil, err
	}
	return bind.NewBoundContract(address, parsed, caller, nil, nil), nil
}

func (c *Client) SupplyOf(ctx context.Context, id uint64) (*big.Int, error) {
	var out []interface{}
	err := c.inventory.Call(&bind.CallOpts{Context: ctx}, &out, "totalSupply", new(big.Int).SetUint64(id))
	if err != nil {
		return nil, fmt.Errorf("totalSupply(%d): %w", id, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("totalSupply(%d): %w", id, ErrBadResponse)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// SessionOf возвращает текущую сессию фермы в hex с 0x.
func (c *Client) SessionOf(ctx context.Context, farmID int64) (string, error) {
	var out []interface{}
	err := c.farm.Call(&bind.CallOpts{Context: ctx}, &out, "getSessionId", big.NewInt(farmID))
	if err != nil {
		return "", fmt.Errorf("getSessionId(%d): %w", farmID, err)
	}
	if len(out) != 1 {
		return "", fmt.Errorf("getSessionId(%d): %w", farmID, ErrBadResponse)
	}
	session := *abi.ConvertType(out[0], new([32]byte)).(*[32]byte)
	return hexutil.Encode(session[:]), nil
}

// BalancesOf возвращает баланс SFL и количества токенов
// в том же порядке, что и ids.
func (c *Client) BalancesOf(ctx context.Context, account common.Address, ids []uint64) (*big.Int, []*big.Int, error) {
	opts := &bind.CallOpts{Context: ctx}

	var out []interface{}
	if err := c.token.Call(opts, &out, "balanceOf", account); err != nil {
		return nil, nil, fmt.Errorf("balanceOf(%s): %w", account.Hex(), err)
	}
	if len(out) != 1 {
		return nil, nil, fmt.Errorf("balanceOf(%s): %w", account.Hex(), ErrBadResponse)
	}
	sfl := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)

	accounts := make([]common.Address, len(ids))
	tokenIDs := make([]*big.Int, len(ids))
	for i, id := range ids {
		accounts[i] = account
		tokenIDs[i] = new(big.Int).SetUint64(id)
	}

	out = nil
	if err := c.inventory.Call(opts, &out, "balanceOfBatch", accounts, tokenIDs); err != nil {
		return nil, nil, fmt.Errorf("balanceOfBatch(%s): %w", account.Hex(), err)
	}
	if len(out) != 1 {
		return nil, nil, fmt.Errorf("balanceOfBatch(%s): %w", account.Hex(), ErrBadResponse)
	}
	amounts := *abi.ConvertType(out[0], new([]*big.Int)).(*[]*big.Int)
	if len(amounts) != len(ids) {
		return nil, nil, fmt.Errorf("balanceOfBatch returned %d amounts for %d ids: %w", len(amounts), len(ids), ErrBadResponse)
	}
	return sfl, amounts, nil
}
