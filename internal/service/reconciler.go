package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"farm-sync/internal/db"
	"farm-sync/internal/game"
	"farm-sync/internal/items"
	"farm-sync/internal/models"
	"farm-sync/internal/signer"
	"farm-sync/pkg"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

var (
	ErrFarmNotFound      = errors.New("farm not found")
	ErrFarmBlacklisted   = errors.New("farm is blacklisted")
	ErrInvalidAddress    = errors.New("invalid address")
	ErrInvalidAction     = game.ErrInvalidAction
	ErrSupplyExhausted   = errors.New("supply exhausted")
	ErrSettlementPending = errors.New("settlement not yet confirmed on-chain")
	ErrConcurrentUpdate  = errors.New("farm was updated concurrently")
)

type SupplyOracle interface {
	SupplyOf(ctx context.Context, id uint64) (*big.Int, error)
}

// Ledger читает то, что уже записано в сети.
type Ledger interface {
	SessionOf(ctx context.Context, farmID int64) (string, error)
	BalancesOf(ctx context.Context, account common.Address, ids []uint64) (*big.Int, []*big.Int, error)
}

type SettlementSigner interface {
	Sign(claim signer.Claim) (signer.SignedSettlement, error)
}

type Reconciler interface {
	// Sync подписывает разницу между последним проведённым снимком и текущим.
	Sync(ctx context.Context, farmID int64, owner string) (signer.SignedSettlement, error)

	// Mint крафтит один лимитированный предмет, сохраняет результат и отдаёт
	// changeset, подписанный на сохранённую сессию фермы.
	Mint(ctx context.Context, farmID int64, owner, sessionID, item string) (Minted, error)

	// Confirm сдвигает проведённый снимок, когда сессия в сети сменилась.
	Confirm(ctx context.Context, farmID int64, owner string) error
}

// результат успешного минта
type Minted struct {
	Changeset  game.Changeset
	Settlement signer.SignedSettlement
}

type reconciler struct {
	farmDB db.FarmDB
	supply SupplyOracle
	ledger Ledger
	signer SettlementSigner
	log    pkg.Logger
}

func NewReconciler(farmDB db.FarmDB, supply SupplyOracle, ledger Ledger, signer SettlementSigner, log pkg.Logger) Reconciler {
	return &reconciler{
		farmDB: farmDB,
		supply: supply,
		ledger: ledger,
		signer: signer,
		log:    log,
	}
}

func (r *reconciler) loadFarm(ctx context.Context, farmID int64, owner string) (*models.Account, error) {
	if !common.IsHexAddress(owner) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, owner)
	}
	acc, err := r.farmDB.GetFarm(ctx, owner, farmID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFarmNotFound
		}
		r.log.Error("failed to load farm", zap.Int64("farmID", farmID), zap.Error(err))
		return nil, err
	}
	if acc.BlacklistedAt != nil {
		r.log.Warn("blacklisted farm tried to settle", zap.Int64("farmID", farmID), zap.String("owner", owner))
		return nil, ErrFarmBlacklisted
	}
	return acc, nil
}

func (r *reconciler) Sync(ctx context.Context, farmID int64, owner string) (signer.SignedSettlement, error) {
	acc, err := r.loadFarm(ctx, farmID, owner)
	if err != nil {
		return signer.SignedSettlement{}, err
	}

	current, err := game.Normalize(acc.GameState)
	if err != nil {
		return signer.SignedSettlement{}, fmt.Errorf("farm %d current state: %w", farmID, err)
	}
	previous, err := game.Normalize(acc.PreviousGameState)
	if err != nil {
		return signer.SignedSettlement{}, fmt.Errorf("farm %d previous state: %w", farmID, err)
	}

	changeset, err := game.ComputeChangeset(current, previous)
	if err != nil {
		return signer.SignedSettlement{}, fmt.Errorf("farm %d changeset: %w", farmID, err)
	}

	signed, err := r.signer.Sign(signer.Claim{
		Sender:    common.HexToAddress(owner),
		FarmID:    farmID,
		SessionID: acc.SessionID,
		SFL:       changeset.Balance,
		Inventory: changeset.Inventory,
	})
	if err != nil {
		return signer.SignedSettlement{}, err
	}

	r.log.Info("Settlement signed",
		zap.Int64("farmID", farmID),
		zap.String("sessionID", acc.SessionID),
		zap.Int("items", len(changeset.Inventory)))
	return signed, nil
}

func (r *reconciler) Mint(ctx context.Context, farmID int64, owner, sessionID, item string) (Minted, error) {
	acc, err := r.loadFarm(ctx, farmID, owner)
	if err != nil {
		return Minted{}, err
	}
	// подпись со старой сессией повторила бы уже проведённый changeset
	if !strings.EqualFold(sessionID, acc.SessionID) {
		r.log.Warn("mint with stale session",
			zap.Int64("farmID", farmID),
			zap.String("requested", sessionID),
			zap.String("stored", acc.SessionID))
		return Minted{}, fmt.Errorf("%w: session %s is not the farm's current session", ErrSettlementPending, sessionID)
	}

	current, err := game.Normalize(acc.GameState)
	if err != nil {
		return Minted{}, fmt.Errorf("farm %d current state: %w", farmID, err)
	}

	crafted, err := game.Craft(current, game.Action{
		Type:   game.ActionItemCrafted,
		Item:   item,
		Amount: 1,
	}, items.LimitedNames())
	if err != nil {
		return Minted{}, err
	}

	if err := r.checkSupply(ctx, item); err != nil {
		return Minted{}, err
	}

	previous, err := game.Normalize(acc.PreviousGameState)
	if err != nil {
		return Minted{}, fmt.Errorf("farm %d previous state: %w", farmID, err)
	}
	changeset, err := game.ComputeChangeset(crafted, previous)
	if err != nil {
		return Minted{}, fmt.Errorf("farm %d changeset: %w", farmID, err)
	}

	// подписываем до записи: без ключа в базе ничего не меняется
	signed, err := r.signer.Sign(signer.Claim{
		Sender:    common.HexToAddress(owner),
		FarmID:    farmID,
		SessionID: acc.SessionID,
		SFL:       changeset.Balance,
		Inventory: changeset.Inventory,
	})
	if err != nil {
		return Minted{}, err
	}

	if err := r.farmDB.SaveGameState(ctx, acc.ID, acc.Version, game.Denormalize(crafted)); err != nil {
		if errors.Is(err, db.ErrVersionConflict) {
			return Minted{}, ErrConcurrentUpdate
		}
		r.log.Error("failed to save crafted state", zap.Int64("farmID", farmID), zap.Error(err))
		return Minted{}, err
	}

	r.log.Info("Item minted",
		zap.Int64("farmID", farmID),
		zap.String("item", item),
		zap.String("sessionID", acc.SessionID))
	return Minted{Changeset: changeset, Settlement: signed}, nil
}

func (r *reconciler) checkSupply(ctx context.Context, item string) error {
	limited, ok := items.Limited(item)
	if !ok || limited.Supply <= 0 {
		return fmt.Errorf("%w: %s has no supply configured", ErrSupplyExhausted, item)
	}
	id, err := items.IDOf(item)
	if err != nil {
		return err
	}
	minted, err := r.supply.SupplyOf(ctx, id)
	if err != nil {
		r.log.Error("failed to read total supply", zap.String("item", item), zap.Error(err))
		return fmt.Errorf("total supply of %s: %w", item, err)
	}
	if minted.Cmp(big.NewInt(limited.Supply)) >= 0 {
		return fmt.Errorf("%w: %s", ErrSupplyExhausted, item)
	}
	return nil
}

func (r *reconciler) Confirm(ctx context.Context, farmID int64, owner string) error {
	acc, err := r.loadFarm(ctx, farmID, owner)
	if err != nil {
		return err
	}
	if !common.IsHexAddress(acc.FarmAddress) {
		return fmt.Errorf("farm %d: %w: farm address %q", farmID, ErrInvalidAddress, acc.FarmAddress)
	}

	session, err := r.ledger.SessionOf(ctx, farmID)
	if err != nil {
		r.log.Error("failed to read on-chain session", zap.Int64("farmID", farmID), zap.Error(err))
		return err
	}
	if strings.EqualFold(session, acc.SessionID) {
		return ErrSettlementPending
	}

	sfl, amounts, err := r.ledger.BalancesOf(ctx, common.HexToAddress(acc.FarmAddress), items.KnownIDs())
	if err != nil {
		r.log.Error("failed to read on-chain balances", zap.Int64("farmID", farmID), zap.Error(err))
		return err
	}
	inventory, err := game.DecodeOnChainInventory(amounts)
	if err != nil {
		return fmt.Errorf("farm %d on-chain inventory: %w", farmID, err)
	}

	old, err := game.Normalize(acc.PreviousGameState)
	if err != nil {
		return fmt.Errorf("farm %d previous state: %w", farmID, err)
	}
	settled := game.GameState{
		Balance:   items.FromOnChain(sfl, items.CurrencyUnit),
		Inventory: inventory,
		Stock:     old.Stock,
		World:     old.World,
	}

	if err := r.farmDB.AdvanceSettlement(ctx, acc.ID, acc.Version, game.Denormalize(settled), session); err != nil {
		if errors.Is(err, db.ErrVersionConflict) {
			return ErrConcurrentUpdate
		}
		r.log.Error("failed to advance settlement", zap.Int64("farmID", farmID), zap.Error(err))
		return err
	}

	r.log.Info("Settlement confirmed", zap.Int64("farmID", farmID), zap.String("sessionID", session))
	return nil
}
