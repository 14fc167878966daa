package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Activation describes one strategy to start at boot: which market and
// contract it watches, which signal algorithm drives it, and its sizing.
type Activation struct {
	Market       string             `yaml:"market" json:"market"` // SPOT or MARGIN
	Symbol       string             `yaml:"symbol" json:"symbol"`
	Timeframe    string             `yaml:"timeframe" json:"timeframe"` // 1m, 5m, 15m, 30m, 1h, 4h
	Strategy     string             `yaml:"strategy" json:"strategy"`   // technical, breakout, macd_ema, scalper
	USDTInput    float64            `yaml:"usdt_input" json:"usdt_input"`
	RiskToReward float64            `yaml:"risk_to_reward" json:"risk_to_reward"`
	Parameters   map[string]float64 `yaml:"parameters" json:"parameters"`
}

type watchlistFile struct {
	Strategies []Activation `yaml:"strategies"`
}

// LoadWatchlist reads pre-activated strategies from a YAML file.
func LoadWatchlist(path string) ([]Activation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file watchlistFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse watchlist: %w", err)
	}
	return file.Strategies, nil
}
