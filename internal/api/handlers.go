package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"farm-sync/internal/game"
	"farm-sync/internal/items"
	"farm-sync/internal/lock"
	"farm-sync/internal/middleware"
	"farm-sync/internal/service"
	"farm-sync/pkg"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type Handlers struct {
	Reconciler     service.Reconciler
	AuthService    service.AuthService
	Locker         lock.FarmLocker
	Logger         pkg.Logger
	RequestTimeout time.Duration
}

var _ ServerInterface = (*Handlers)(nil)

func (h *Handlers) PostApiAuth(ctx echo.Context) error {
	var req AuthRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Errors: ptr("Invalid request body")})
	}

	token, err := h.AuthService.Authenticate(req.Address, req.Signature)
	if err != nil {
		h.Logger.Warn("invalid credentials", zap.String("address", req.Address), zap.Error(err))
		return ctx.JSON(http.StatusUnauthorized, ErrorResponse{Errors: ptr("Invalid credentials")})
	}
	return ctx.JSON(http.StatusOK, AuthResponse{Token: &token})
}

func (h *Handlers) PostApiSync(ctx echo.Context) error {
	var req SyncRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Errors: ptr("Invalid request body")})
	}
	if err := checkSender(ctx, req.Sender); err != nil {
		return err
	}

	reqCtx, cancel := h.requestContext(ctx)
	defer cancel()

	release, err := h.Locker.Lock(reqCtx, req.FarmID)
	if err != nil {
		return h.writeError(ctx, "failed to lock farm", req.FarmID, err)
	}
	defer release()

	signed, err := h.Reconciler.Sync(reqCtx, req.FarmID, req.Sender)
	if err != nil {
		return h.writeError(ctx, "failed to sync farm", req.FarmID, err)
	}
	return ctx.JSON(http.StatusOK, signed)
}

func (h *Handlers) PostApiMint(ctx echo.Context) error {
	var req MintRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Errors: ptr("Invalid request body")})
	}
	if req.Item == "" || req.SessionID == "" {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Errors: ptr("item and sessionId are required")})
	}
	if err := checkSender(ctx, req.Sender); err != nil {
		return err
	}

	reqCtx, cancel := h.requestContext(ctx)
	defer cancel()

	release, err := h.Locker.Lock(reqCtx, req.FarmID)
	if err != nil {
		return h.writeError(ctx, "failed to lock farm", req.FarmID, err)
	}
	defer release()

	minted, err := h.Reconciler.Mint(reqCtx, req.FarmID, req.Sender, req.SessionID, req.Item)
	if err != nil {
		return h.writeError(ctx, "failed to mint item", req.FarmID, err)
	}
	return ctx.JSON(http.StatusOK, minted.Settlement)
}

func (h *Handlers) PostApiConfirm(ctx echo.Context) error {
	var req ConfirmRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Errors: ptr("Invalid request body")})
	}
	if err := checkSender(ctx, req.Sender); err != nil {
		return err
	}

	reqCtx, cancel := h.requestContext(ctx)
	defer cancel()

	release, err := h.Locker.Lock(reqCtx, req.FarmID)
	if err != nil {
		return h.writeError(ctx, "failed to lock farm", req.FarmID, err)
	}
	defer release()

	if err := h.Reconciler.Confirm(reqCtx, req.FarmID, req.Sender); err != nil {
		return h.writeError(ctx, "failed to confirm settlement", req.FarmID, err)
	}
	return ctx.JSON(http.StatusOK, map[string]string{"message": "Settlement confirmed"})
}

func (h *Handlers) requestContext(ctx echo.Context) (context.Context, context.CancelFunc) {
	if h.RequestTimeout <= 0 {
		return context.WithCancel(ctx.Request().Context())
	}
	return context.WithTimeout(ctx.Request().Context(), h.RequestTimeout)
}

// sender в теле запроса должен совпадать с адресом из токена
func checkSender(ctx echo.Context, sender string) error {
	addr, ok := ctx.Get(middleware.AddressKey).(common.Address)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	if !common.IsHexAddress(sender) || common.HexToAddress(sender) != addr {
		return echo.NewHTTPError(http.StatusForbidden, "Sender does not match token")
	}
	return nil
}

func (h *Handlers) writeError(ctx echo.Context, msg string, farmID int64, err error) error {
	switch {
	case errors.Is(err, service.ErrFarmNotFound):
		return ctx.JSON(http.StatusNotFound, ErrorResponse{Errors: ptr("Farm not found")})
	case errors.Is(err, service.ErrFarmBlacklisted):
		return ctx.JSON(http.StatusForbidden, ErrorResponse{Errors: ptr("Farm is blacklisted")})
	case errors.Is(err, service.ErrInvalidAddress):
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Errors: ptr("Invalid address")})
	case errors.Is(err, service.ErrInvalidAction):
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Errors: ptr(err.Error())})
	case errors.Is(err, service.ErrSupplyExhausted):
		return ctx.JSON(http.StatusConflict, ErrorResponse{Errors: ptr("Supply exhausted")})
	case errors.Is(err, service.ErrSettlementPending):
		return ctx.JSON(http.StatusConflict, ErrorResponse{Errors: ptr("Previous settlement is not on-chain yet")})
	case errors.Is(err, service.ErrConcurrentUpdate), errors.Is(err, lock.ErrLocked):
		return ctx.JSON(http.StatusConflict, ErrorResponse{Errors: ptr("Farm is busy, retry")})
	case errors.Is(err, context.DeadlineExceeded):
		h.Logger.Warn(msg, zap.Int64("farmID", farmID), zap.Error(err))
		return ctx.JSON(http.StatusGatewayTimeout, ErrorResponse{Errors: ptr("Request timed out")})
	}

	// битые данные или конфиг: это баг, а не ошибка клиента
	if errors.Is(err, items.ErrUnknownItem) || errors.Is(err, items.ErrPrecision) || errors.Is(err, game.ErrMalformedDecimal) {
		h.Logger.Error(msg+": inconsistent farm data", zap.Int64("farmID", farmID), zap.Error(err))
	} else {
		h.Logger.Error(msg, zap.Int64("farmID", farmID), zap.Error(err))
	}
	return ctx.JSON(http.StatusInternalServerError, ErrorResponse{Errors: ptr("Internal server error")})
}

func ptr(s string) *string {
	return &s
}
