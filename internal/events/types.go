package events

import "time"

// Event enumerates the topics the core publishes for the presentation
// layer and for internal listeners.
type Event string

const (
	EventLog          Event = "log"
	EventQuote        Event = "quote"
	EventTradeOpened  Event = "trade.opened"
	EventTradeClosed  Event = "trade.closed"
	EventSagaIncident Event = "saga.incident"
	EventDataGap      Event = "data.gap"
)

// LogEntry is one human-readable line for the UI trade log. The core
// publishes and forgets; whether the entry was displayed is the
// consumer's business.
type LogEntry struct {
	Time      time.Time
	Component string
	Message   string
}

// QuoteUpdate is a best bid/ask change on one market.
type QuoteUpdate struct {
	Market string
	Symbol string
	Bid    float64
	Ask    float64
}
