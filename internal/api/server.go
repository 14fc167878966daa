// Package api is the data/command surface for the external dashboard:
// quotes, balances, trades, logs and strategy activation. The dashboard
// itself lives outside this process and authenticates with a shared
// JWT secret.
package api

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"margin-trader/internal/account"
	"margin-trader/internal/events"
	"margin-trader/internal/market"
	"margin-trader/internal/strategy"
	"margin-trader/internal/trader"
	"margin-trader/pkg/config"
	"margin-trader/pkg/db"
	"margin-trader/pkg/exchanges/common"
)

const logBuffer = 200

// Server exposes the control surface over HTTP.
type Server struct {
	Router *gin.Engine

	bus      *events.Bus
	registry *strategy.Registry
	quotes   map[common.Market]*market.QuoteBoard
	balances map[common.Market]*account.Table
	svc      *trader.Service
	journal  *db.Database

	logMu sync.Mutex
	logs  []events.LogEntry
}

type ServerConfig struct {
	Bus            *events.Bus
	Registry       *strategy.Registry
	SpotQuotes     *market.QuoteBoard
	MarginQuotes   *market.QuoteBoard
	SpotBalances   *account.Table
	MarginBalances *account.Table
	Service        *trader.Service
	Journal        *db.Database
	JWTSecret      string
}

func NewServer(cfg ServerConfig) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		Router:   r,
		bus:      cfg.Bus,
		registry: cfg.Registry,
		quotes: map[common.Market]*market.QuoteBoard{
			common.MarketSpot:   cfg.SpotQuotes,
			common.MarketMargin: cfg.MarginQuotes,
		},
		balances: map[common.Market]*account.Table{
			common.MarketSpot:   cfg.SpotBalances,
			common.MarketMargin: cfg.MarginBalances,
		},
		svc:     cfg.Service,
		journal: cfg.Journal,
	}
	s.collectLogs()

	r.GET("/health", s.health)
	protected := r.Group("/api")
	protected.Use(AuthMiddleware(cfg.JWTSecret))
	{
		protected.GET("/quotes/:market", s.getQuotes)
		protected.GET("/balances/:market", s.getBalances)
		protected.GET("/trades", s.getTrades)
		protected.GET("/journal", s.getJournal)
		protected.GET("/incidents", s.getIncidents)
		protected.GET("/logs", s.getLogs)
		protected.GET("/strategies", s.getStrategies)
		protected.POST("/strategies", s.activateStrategy)
		protected.DELETE("/strategies/:market/:id", s.deactivateStrategy)
	}
	return s
}

// collectLogs keeps a bounded tail of bus log entries for the UI.
func (s *Server) collectLogs() {
	ch, _ := s.bus.Subscribe(events.EventLog, logBuffer)
	go func() {
		for payload := range ch {
			entry, ok := payload.(events.LogEntry)
			if !ok {
				continue
			}
			s.logMu.Lock()
			s.logs = append(s.logs, entry)
			if len(s.logs) > logBuffer {
				s.logs = s.logs[len(s.logs)-logBuffer:]
			}
			s.logMu.Unlock()
		}
	}()
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) getQuotes(c *gin.Context) {
	board, ok := s.quotes[common.Market(c.Param("market"))]
	if !ok || board == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown market"})
		return
	}
	c.JSON(http.StatusOK, board.Snapshot())
}

func (s *Server) getBalances(c *gin.Context) {
	table, ok := s.balances[common.Market(c.Param("market"))]
	if !ok || table == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown market"})
		return
	}
	c.JSON(http.StatusOK, table.Snapshot())
}

func (s *Server) getTrades(c *gin.Context) {
	var out []strategy.Trade
	for _, eng := range s.registry.All() {
		out = append(out, eng.Trades()...)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getJournal(c *gin.Context) {
	trades, err := s.journal.ListTrades(c.Request.Context(), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, trades)
}

func (s *Server) getIncidents(c *gin.Context) {
	incidents, err := s.journal.ListIncidents(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, incidents)
}

func (s *Server) getLogs(c *gin.Context) {
	s.logMu.Lock()
	out := make([]events.LogEntry, len(s.logs))
	copy(out, s.logs)
	s.logMu.Unlock()
	c.JSON(http.StatusOK, out)
}

type activationView struct {
	ID        string `json:"id"`
	Market    string `json:"market"`
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
	Strategy  string `json:"strategy"`
}

func (s *Server) getStrategies(c *gin.Context) {
	out := []activationView{}
	for _, eng := range s.registry.All() {
		out = append(out, activationView{
			ID:        eng.ID(),
			Market:    string(eng.Contract().Market),
			Symbol:    eng.Contract().Symbol,
			Timeframe: eng.Timeframe(),
			Strategy:  eng.StrategyName(),
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) activateStrategy(c *gin.Context) {
	var act config.Activation
	if err := c.ShouldBindJSON(&act); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := s.svc.Activate(c.Request.Context(), act)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) deactivateStrategy(c *gin.Context) {
	if err := s.svc.Deactivate(c.Param("market"), c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// Start serves until the listener fails.
func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
