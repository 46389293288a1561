package service

import (
	"errors"
	"fmt"
	"time"

	"farm-sync/internal/signer"
	"farm-sync/pkg"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type AuthService interface {
	// Authenticate проверяет personal_sign от LoginMessage(address) и выдаёт JWT.
	Authenticate(address, signature string) (string, error)
}

// LoginMessage подписывает кошелёк при входе.
func LoginMessage(address string) string {
	return fmt.Sprintf("Sign in to farm-sync\n\nAddress: %s", common.HexToAddress(address).Hex())
}

type authService struct {
	log       pkg.Logger
	jwtSecret string
	ttl       time.Duration
}

func NewAuthService(logger pkg.Logger, jwtSecret string, ttl time.Duration) AuthService {
	return &authService{
		log:       logger,
		jwtSecret: jwtSecret,
		ttl:       ttl,
	}
}

func (s *authService) Authenticate(address, signature string) (string, error) {
	if s.jwtSecret == "" {
		s.log.Error("auth: empty JWT secret key")
		return "", errors.New("could not generate token: empty secret key")
	}
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("%w: malformed address", ErrInvalidCredentials)
	}
	addr := common.HexToAddress(address)

	if err := signer.VerifyPersonal(addr, []byte(LoginMessage(address)), signature); err != nil {
		s.log.Warn("invalid login signature", zap.String("address", addr.Hex()), zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"address": addr.Hex(),
		"exp":     time.Now().Add(s.ttl).Unix(),
	})
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		s.log.Error("failed to generate token", zap.String("address", addr.Hex()), zap.Error(err))
		return "", fmt.Errorf("could not generate token: %w", err)
	}
	s.log.Info("Wallet authenticated", zap.String("address", addr.Hex()))
	return tokenString, nil
}
