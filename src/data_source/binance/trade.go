package binance

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"quant-observer/src/models"

	"github.com/shopspring/decimal"
)

// tradeEvent is one message of the <symbol>@trade stream.
type tradeEvent struct {
	EventType string          `json:"e"`
	EventTime int64           `json:"E"`
	Symbol    string          `json:"s"`
	TradeID   int64           `json:"t"`
	Price     decimal.Decimal `json:"p"`
	Quantity  decimal.Decimal `json:"q"`
	TradeTime int64           `json:"T"`
	BuyerMM   bool            `json:"m"`
}

// restTrade is one row of GET /api/v3/trades.
type restTrade struct {
	ID       int64           `json:"id"`
	Price    decimal.Decimal `json:"price"`
	Qty      decimal.Decimal `json:"qty"`
	QuoteQty decimal.Decimal `json:"quoteQty"`
	Time     int64           `json:"time"`
	BuyerMM  bool            `json:"isBuyerMaker"`
}

// -----------------------------------------------------------------------------

// StreamSymbol maps "BTC/USD" to the lower-case USDT pair "btcusdt".
func StreamSymbol(symbol string) string {
	base, _, _ := strings.Cut(symbol, "/")
	return strings.ToLower(strings.TrimSpace(base)) + "usdt"
}

// RESTSymbol maps "BTC/USD" to "BTCUSDT".
func RESTSymbol(symbol string) string {
	return strings.ToUpper(StreamSymbol(symbol))
}

// -----------------------------------------------------------------------------

// parseTrade decodes a stream message into a tick named after symbol.
func parseTrade(data []byte, symbol string) (models.MTick, error) {
	var ev tradeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return models.MTick{}, fmt.Errorf("failed to parse trade message: %w", err)
	}
	if ev.EventType != "" && ev.EventType != "trade" {
		return models.MTick{}, fmt.Errorf("unexpected event type %q", ev.EventType)
	}
	if ev.TradeTime == 0 {
		return models.MTick{}, fmt.Errorf("trade message without trade time")
	}

	return models.MTick{
		Symbol:    symbol,
		Price:     ev.Price.InexactFloat64(),
		Volume:    ev.Quantity.InexactFloat64(),
		Timestamp: time.UnixMilli(ev.TradeTime).UTC(),
	}, nil
}

// parseTrades decodes a REST trade list, oldest first.
func parseTrades(data []byte, symbol string) ([]models.MTick, error) {
	var rows []restTrade
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse trades response: %w", err)
	}

	ticks := make([]models.MTick, 0, len(rows))
	for _, r := range rows {
		ticks = append(ticks, models.MTick{
			Symbol:    symbol,
			Price:     r.Price.InexactFloat64(),
			Volume:    r.Qty.InexactFloat64(),
			Timestamp: time.UnixMilli(r.Time).UTC(),
		})
	}
	return ticks, nil
}
