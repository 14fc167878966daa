package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds environment-driven settings for the trading core.
type Config struct {
	Port string `envconfig:"PORT" default:"8080"`

	// Binance
	BinanceAPIKey    string   `envconfig:"BINANCE_API_KEY" required:"true"`
	BinanceAPISecret string   `envconfig:"BINANCE_API_SECRET" required:"true"`
	BinanceTestnet   bool     `envconfig:"BINANCE_TESTNET" default:"false"`
	Symbols          []string `envconfig:"SYMBOLS" default:"BTCUSDT,ETHUSDT,ADAUSDT,DOGEUSDT,LTCUSDT,BNBUSDT"`

	// Trading defaults; per-activation values come from the watchlist
	// file or the control surface.
	USDTInput    float64 `envconfig:"USDT_INPUT" default:"50"`
	RiskToReward float64 `envconfig:"RISK_TO_REWARD" default:"2"`

	// Watchlist file with pre-activated strategies (optional).
	WatchlistPath string `envconfig:"WATCHLIST_PATH" default:""`

	// Journal database
	DBPath string `envconfig:"DB_PATH" default:"./data/trader.db"`

	// Control surface auth
	JWTSecret string `envconfig:"JWT_SECRET" default:"dev-secret"`
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &cfg, nil
}
