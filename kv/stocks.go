package kv

import (
	"context"
	"strconv"
)

// StockHistoryLimit is the number of ticks kept per stock
const StockHistoryLimit = 60

func (c *Client) PushStockPrice(ctx context.Context, channelID int64, price float64) error {
	return c.PushCapped(ctx, StockKey(channelID), strconv.FormatFloat(price, 'f', 2, 64), StockHistoryLimit)
}

// StockHistory returns recorded prices, oldest first
func (c *Client) StockHistory(ctx context.Context, channelID int64) ([]float64, error) {
	return c.ListFloats(ctx, StockKey(channelID))
}
