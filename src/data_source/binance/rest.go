package binance

import (
	"context"
	"strconv"
	"strings"

	"quant-observer/src/interfaces"
	"quant-observer/src/models"
)

// FetchRecentTrades pulls up to limit of the latest trades over REST so the
// buffer has history before the stream starts. Binance caps limit at 1000.
func FetchRecentTrades(ctx context.Context, net interfaces.INetworkManager, restURL, symbol string, limit int) ([]models.MTick, error) {
	if limit <= 0 {
		return []models.MTick{}, nil
	}
	if limit > 1000 {
		limit = 1000
	}

	body, err := net.Get(ctx, strings.TrimRight(restURL, "/")+"/api/v3/trades", map[string]string{
		"symbol": RESTSymbol(symbol),
		"limit":  strconv.Itoa(limit),
	})
	if err != nil {
		return nil, err
	}
	return parseTrades(body, symbol)
}
