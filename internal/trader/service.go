// Package trader ties activations together: it resolves contracts,
// backfills candle history, builds the engine with the right executor
// and registers it for the stream workers.
package trader

import (
	"context"
	"fmt"
	"strings"

	"margin-trader/internal/events"
	"margin-trader/internal/strategy"
	"margin-trader/pkg/config"
	"margin-trader/pkg/exchanges/common"
)

const backfillCandles = 500

// historyAPI supplies the REST candle backfill.
type historyAPI interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]common.Candle, error)
}

// Service activates and deactivates strategy engines.
type Service struct {
	bus       *events.Bus
	registry  *strategy.Registry
	history   historyAPI
	contracts map[common.Market]map[string]common.Contract
	executors map[common.Market]strategy.Executor
	balances  map[common.Market]strategy.BalanceSource

	defaultUSDT float64
	defaultRTR  float64
}

type ServiceConfig struct {
	Bus       *events.Bus
	Registry  *strategy.Registry
	History   historyAPI
	Contracts map[common.Market]map[string]common.Contract
	// SpotBalances funds sizing for both markets: margin entries draw
	// their transfer from the spot wallet.
	SpotBalances   strategy.BalanceSource
	SpotExecutor   strategy.Executor
	MarginExecutor strategy.Executor
	DefaultUSDT    float64
	DefaultRTR     float64
}

func NewService(cfg ServiceConfig) *Service {
	return &Service{
		bus:      cfg.Bus,
		registry: cfg.Registry,
		history:  cfg.History,
		contracts: cfg.Contracts,
		executors: map[common.Market]strategy.Executor{
			common.MarketSpot:   cfg.SpotExecutor,
			common.MarketMargin: cfg.MarginExecutor,
		},
		balances: map[common.Market]strategy.BalanceSource{
			common.MarketSpot:   cfg.SpotBalances,
			common.MarketMargin: cfg.SpotBalances,
		},
		defaultUSDT: cfg.DefaultUSDT,
		defaultRTR:  cfg.DefaultRTR,
	}
}

// Activate builds an engine for one watchlist entry, seeds it with
// historical candles and registers it. Returns the activation id.
func (s *Service) Activate(ctx context.Context, act config.Activation) (string, error) {
	market, err := parseMarket(act.Market)
	if err != nil {
		return "", err
	}
	contract, ok := s.contracts[market][strings.ToUpper(act.Symbol)]
	if !ok {
		return "", fmt.Errorf("symbol %s not tradable on %s", act.Symbol, market)
	}

	eval, err := strategy.NewEvaluator(act.Strategy, act.Parameters)
	if err != nil {
		return "", err
	}

	usdt := act.USDTInput
	if usdt <= 0 {
		usdt = s.defaultUSDT
	}
	rtr := act.RiskToReward
	if rtr <= 0 {
		rtr = s.defaultRTR
	}

	engine, err := strategy.NewEngine(strategy.EngineConfig{
		Bus:          s.bus,
		Contract:     contract,
		Timeframe:    act.Timeframe,
		USDTInput:    usdt,
		RiskToReward: rtr,
		Evaluator:    eval,
		Executor:     s.executors[market],
		Balances:     s.balances[market],
	})
	if err != nil {
		return "", err
	}

	candles, err := s.history.GetKlines(ctx, contract.Symbol, act.Timeframe, backfillCandles)
	if err != nil {
		return "", fmt.Errorf("backfill %s %s: %w", contract.Symbol, act.Timeframe, err)
	}
	engine.SeedCandles(candles)

	if err := s.registry.Add(market, engine); err != nil {
		return "", err
	}
	s.bus.Logf("trader", "activated %s on %s with %d backfilled candles", engine.ID(), market, len(candles))
	return engine.ID(), nil
}

// Deactivate removes an activation from its market.
func (s *Service) Deactivate(marketName, id string) error {
	market, err := parseMarket(marketName)
	if err != nil {
		return err
	}
	if !s.registry.Remove(market, id) {
		return fmt.Errorf("no activation %s on %s", id, market)
	}
	s.bus.Logf("trader", "deactivated %s on %s", id, market)
	return nil
}

func parseMarket(name string) (common.Market, error) {
	switch strings.ToUpper(name) {
	case string(common.MarketSpot):
		return common.MarketSpot, nil
	case string(common.MarketMargin):
		return common.MarketMargin, nil
	default:
		return "", fmt.Errorf("unknown market %q", name)
	}
}
