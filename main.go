package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"margin-trader/internal/account"
	"margin-trader/internal/api"
	"margin-trader/internal/events"
	"margin-trader/internal/funding"
	"margin-trader/internal/market"
	"margin-trader/internal/strategy"
	"margin-trader/internal/trader"
	"margin-trader/pkg/config"
	"margin-trader/pkg/db"
	"margin-trader/pkg/exchanges/binance"
	"margin-trader/pkg/exchanges/common"
)

// incidentStore adapts the journal to the funding coordinator.
type incidentStore struct {
	journal *db.Database
}

func (s *incidentStore) RecordIncident(ctx context.Context, inc funding.Incident) error {
	return s.journal.InsertIncident(ctx, inc.Symbol, inc.Step, inc.Detail)
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewBus()

	journal, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("main: journal: %v", err)
	}
	defer journal.Close()

	client := binance.New(binance.Config{
		APIKey:    cfg.BinanceAPIKey,
		APISecret: cfg.BinanceAPISecret,
		Testnet:   cfg.BinanceTestnet,
	})
	client.SyncTime(ctx)

	contracts := map[common.Market]map[string]common.Contract{}
	for _, m := range []common.Market{common.MarketSpot, common.MarketMargin} {
		set, err := client.GetContracts(ctx, m, cfg.Symbols)
		if err != nil {
			log.Fatalf("main: load %s contracts: %v", m, err)
		}
		contracts[m] = set
		log.Printf("main: %d contracts loaded for %s", len(set), m)
	}

	spotBalances := account.NewTable()
	marginBalances := account.NewTable()
	spotQuotes := market.NewQuoteBoard()
	marginQuotes := market.NewQuoteBoard()
	registry := strategy.NewRegistry()

	coordinator := funding.NewCoordinator(client, bus, marginBalances, &incidentStore{journal: journal})
	svc := trader.NewService(trader.ServiceConfig{
		Bus:            bus,
		Registry:       registry,
		History:        client,
		Contracts:      contracts,
		SpotBalances:   spotBalances,
		SpotExecutor:   trader.NewSpotExecutor(client),
		MarginExecutor: coordinator,
		DefaultUSDT:    cfg.USDTInput,
		DefaultRTR:     cfg.RiskToReward,
	})

	go recordTrades(ctx, bus, journal)

	streamBase := binance.StreamBase(cfg.BinanceTestnet)
	userStreams := account.NewStreams(client, bus, streamBase, spotBalances, marginBalances)
	userStreams.Start(ctx)
	defer userStreams.Stop()

	spotStream := market.NewStream(common.MarketSpot, streamBase, symbolsOf(contracts[common.MarketSpot]), spotQuotes, registry, bus)
	marginStream := market.NewStream(common.MarketMargin, streamBase, symbolsOf(contracts[common.MarketMargin]), marginQuotes, registry, bus)
	spotStream.Start(ctx)
	marginStream.Start(ctx)
	defer spotStream.Stop()
	defer marginStream.Stop()

	if cfg.WatchlistPath != "" {
		activations, err := config.LoadWatchlist(cfg.WatchlistPath)
		if err != nil {
			log.Fatalf("main: watchlist: %v", err)
		}
		for _, act := range activations {
			if _, err := svc.Activate(ctx, act); err != nil {
				log.Printf("main: watchlist activation %s %s skipped: %v", act.Symbol, act.Strategy, err)
			}
		}
	}

	server := api.NewServer(api.ServerConfig{
		Bus:            bus,
		Registry:       registry,
		SpotQuotes:     spotQuotes,
		MarginQuotes:   marginQuotes,
		SpotBalances:   spotBalances,
		MarginBalances: marginBalances,
		Service:        svc,
		Journal:        journal,
		JWTSecret:      cfg.JWTSecret,
	})
	go func() {
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf("main: api server: %v", err)
		}
	}()
	log.Printf("main: up on :%s (testnet=%v)", cfg.Port, cfg.BinanceTestnet)

	<-ctx.Done()
	log.Println("main: shutting down")
}

// recordTrades journals position opens and closes from the bus.
func recordTrades(ctx context.Context, bus *events.Bus, journal *db.Database) {
	opened, unsubOpen := bus.Subscribe(events.EventTradeOpened, 64)
	closed, unsubClose := bus.Subscribe(events.EventTradeClosed, 64)
	defer unsubOpen()
	defer unsubClose()

	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-opened:
			t, ok := payload.(strategy.Trade)
			if !ok {
				continue
			}
			rec := db.TradeRecord{
				ID:           t.ID,
				OpenedAt:     t.OpenTime,
				Market:       string(t.Market),
				Symbol:       t.Symbol,
				Strategy:     t.Strategy,
				Side:         string(t.Side),
				EntryPrice:   t.EntryPrice,
				Quantity:     t.Quantity,
				Status:       t.Status,
				StopLoss:     t.StopLoss,
				TakeProfit:   t.TakeProfit,
				EntryOrderID: t.EntryOrderID,
			}
			if err := journal.InsertTrade(ctx, rec); err != nil {
				log.Printf("main: trade not journaled: %v", err)
			}
		case payload := <-closed:
			t, ok := payload.(strategy.Trade)
			if !ok {
				continue
			}
			if err := journal.CloseTrade(ctx, t.ID, t.PnL); err != nil {
				log.Printf("main: trade close not journaled: %v", err)
			}
		}
	}
}

func symbolsOf(contracts map[string]common.Contract) []string {
	out := make([]string, 0, len(contracts))
	for sym := range contracts {
		out = append(out, sym)
	}
	return out
}
