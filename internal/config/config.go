package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseHost     string `env:"DATABASE_HOST" envDefault:"localhost"`
	DatabasePort     string `env:"DATABASE_PORT" envDefault:"5432"`
	DatabaseUser     string `env:"DATABASE_USER" envDefault:"postgres"`
	DatabasePassword string `env:"DATABASE_PASSWORD" envDefault:"password"`
	DatabaseName     string `env:"DATABASE_NAME" envDefault:"farms"`
	MigrationsDir    string `env:"MIGRATIONS_DIR" envDefault:"migrations"`

	ServerPort     string        `env:"SERVER_PORT" envDefault:"8080"`
	JWTSecret      string        `env:"JWT_SECRET" envDefault:"secret"`
	TokenTTL       time.Duration `env:"TOKEN_TTL" envDefault:"1h"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`

	// ключ подписи никогда не имеет значения по умолчанию
	SignerPrivateKey string `env:"SIGNER_PRIVATE_KEY"`

	RPCURL            string `env:"RPC_URL" envDefault:"http://localhost:8545"`
	InventoryContract string `env:"INVENTORY_CONTRACT"`
	TokenContract     string `env:"TOKEN_CONTRACT"`
	FarmContract      string `env:"FARM_CONTRACT"`

	RedisAddr   string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	FarmLockTTL time.Duration `env:"FARM_LOCK_TTL" envDefault:"30s"`
}

func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse env config: %w", err)
	}
	return &cfg, nil
}
