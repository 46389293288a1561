package api

import (
	"github.com/labstack/echo/v4"
)

type AuthRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

type AuthResponse struct {
	Token *string `json:"token,omitempty"`
}

type SyncRequest struct {
	FarmID int64  `json:"farmId"`
	Sender string `json:"sender"`
}

type MintRequest struct {
	FarmID    int64  `json:"farmId"`
	SessionID string `json:"sessionId"`
	Sender    string `json:"sender"`
	Item      string `json:"item"`
}

type ConfirmRequest struct {
	FarmID int64  `json:"farmId"`
	Sender string `json:"sender"`
}

type ErrorResponse struct {
	Errors *string `json:"errors,omitempty"`
}

type ServerInterface interface {
	// (POST /api/auth)
	PostApiAuth(ctx echo.Context) error
	// (POST /api/sync)
	PostApiSync(ctx echo.Context) error
	// (POST /api/mint)
	PostApiMint(ctx echo.Context) error
	// (POST /api/confirm)
	PostApiConfirm(ctx echo.Context) error
}

const AuthPath = "/api/auth"

func RegisterHandlers(router *echo.Echo, si ServerInterface) {
	router.POST(AuthPath, si.PostApiAuth)
	router.POST("/api/sync", si.PostApiSync)
	router.POST("/api/mint", si.PostApiMint)
	router.POST("/api/confirm", si.PostApiConfirm)
}
