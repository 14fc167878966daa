package db

import (
	"context"
	"fmt"
	"time"
)

// TradeRecord is one journaled position.
type TradeRecord struct {
	ID           string
	OpenedAt     time.Time
	Market       string
	Symbol       string
	Strategy     string
	Side         string
	EntryPrice   float64
	Quantity     float64
	Status       string
	PnL          float64
	StopLoss     float64
	TakeProfit   float64
	EntryOrderID int64
}

// IncidentRecord is one persisted manual-intervention case.
type IncidentRecord struct {
	ID       int64
	RaisedAt time.Time
	Symbol   string
	Step     string
	Detail   string
	Resolved bool
}

// InsertTrade journals a newly opened position.
func (d *Database) InsertTrade(ctx context.Context, t TradeRecord) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO trades (id, opened_at, market, symbol, strategy, side, entry_price, quantity, status, pnl, stop_loss, take_profit, entry_order_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.OpenedAt, t.Market, t.Symbol, t.Strategy, t.Side, t.EntryPrice, t.Quantity, t.Status, t.PnL, t.StopLoss, t.TakeProfit, t.EntryOrderID)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// CloseTrade marks a journaled position closed with its final PnL.
func (d *Database) CloseTrade(ctx context.Context, id string, pnl float64) error {
	_, err := d.DB.ExecContext(ctx, `
		UPDATE trades SET status = 'closed', pnl = ?, closed_at = ? WHERE id = ?
	`, pnl, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("close trade: %w", err)
	}
	return nil
}

// ListTrades returns the most recent trades, newest first.
func (d *Database) ListTrades(ctx context.Context, limit int) ([]TradeRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, opened_at, market, symbol, strategy, side, entry_price, quantity, status, pnl, stop_loss, take_profit, entry_order_id
		FROM trades ORDER BY opened_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(&t.ID, &t.OpenedAt, &t.Market, &t.Symbol, &t.Strategy, &t.Side, &t.EntryPrice, &t.Quantity, &t.Status, &t.PnL, &t.StopLoss, &t.TakeProfit, &t.EntryOrderID); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// InsertIncident persists a manual-intervention case.
func (d *Database) InsertIncident(ctx context.Context, symbol, step, detail string) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO incidents (symbol, step, detail) VALUES (?, ?, ?)
	`, symbol, step, detail)
	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}
	return nil
}

// ListIncidents returns unresolved incidents, oldest first.
func (d *Database) ListIncidents(ctx context.Context) ([]IncidentRecord, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, raised_at, symbol, step, detail, resolved
		FROM incidents WHERE resolved = 0 ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query incidents: %w", err)
	}
	defer rows.Close()

	var out []IncidentRecord
	for rows.Next() {
		var inc IncidentRecord
		if err := rows.Scan(&inc.ID, &inc.RaisedAt, &inc.Symbol, &inc.Step, &inc.Detail, &inc.Resolved); err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

// ResolveIncident marks an incident handled.
func (d *Database) ResolveIncident(ctx context.Context, id int64) error {
	_, err := d.DB.ExecContext(ctx, `UPDATE incidents SET resolved = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("resolve incident: %w", err)
	}
	return nil
}
