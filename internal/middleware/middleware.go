package middleware

import (
	"net/http"
	"slices"
	"strings"

	"farm-sync/pkg"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	UserKey    = "user"
	AddressKey = "address"
)

// инициализация миддлвары; publicPaths пропускаются без токена
func JWTAuthMiddleware(secret string, log pkg.Logger, publicPaths ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if slices.Contains(publicPaths, c.Request().URL.Path) {
				return next(c)
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"errors": "Authorization header missing"})
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			// проверка подмены токена
			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				log.Warn("Invalid JWT token", zap.String("path", c.Request().URL.Path))
				return c.JSON(http.StatusUnauthorized, map[string]string{"errors": "Invalid token"})
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{"errors": "Invalid token claims"})
			}
			address, _ := claims["address"].(string)
			if !common.IsHexAddress(address) {
				log.Warn("JWT without wallet address")
				return c.JSON(http.StatusUnauthorized, map[string]string{"errors": "Invalid token claims"})
			}

			c.Set(UserKey, claims)
			c.Set(AddressKey, common.HexToAddress(address))
			return next(c)
		}
	}
}
