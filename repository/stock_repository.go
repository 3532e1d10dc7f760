package repository

import (
	"context"
	"fmt"

	"github.com/Fuyukai/Jokusoramame-sub000/database"
	"github.com/Fuyukai/Jokusoramame-sub000/models"

	"github.com/jackc/pgx/v5"
)

// StockRepository implements the StockRepository interface
type StockRepository struct {
	q queryable
}

// NewStockRepository creates a new stock repository
func NewStockRepository(db *database.DB) *StockRepository {
	return &StockRepository{q: db.Pool}
}

func newStockRepositoryWithTx(tx queryable) *StockRepository {
	return &StockRepository{q: tx}
}

func (r *StockRepository) Create(ctx context.Context, stock *models.Stock) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO stocks (channel_id, guild_id, price, amount) VALUES ($1, $2, $3, $4)`,
		stock.ChannelID, stock.GuildID, stock.Price, stock.Amount,
	)
	if err != nil {
		return fmt.Errorf("failed to create stock %d: %w", stock.ChannelID, err)
	}
	return nil
}

func (r *StockRepository) Get(ctx context.Context, channelID int64) (*models.Stock, error) {
	var stock models.Stock
	err := r.q.QueryRow(ctx,
		`SELECT channel_id, guild_id, price, amount FROM stocks WHERE channel_id = $1`,
		channelID,
	).Scan(&stock.ChannelID, &stock.GuildID, &stock.Price, &stock.Amount)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock %d: %w", channelID, err)
	}
	return &stock, nil
}

// ListAll returns every stock in guilds that have the market enabled
func (r *StockRepository) ListAll(ctx context.Context) ([]*models.Stock, error) {
	rows, err := r.q.Query(ctx, `
		SELECT s.channel_id, s.guild_id, s.price, s.amount
		FROM stocks s
		JOIN guilds g ON g.id = s.guild_id
		WHERE g.stocks_enabled
		ORDER BY s.channel_id
		FOR UPDATE OF s
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list stocks: %w", err)
	}
	defer rows.Close()

	var stocks []*models.Stock
	for rows.Next() {
		var stock models.Stock
		if err := rows.Scan(&stock.ChannelID, &stock.GuildID, &stock.Price, &stock.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan stock: %w", err)
		}
		stocks = append(stocks, &stock)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stocks: %w", err)
	}
	return stocks, nil
}

func (r *StockRepository) UpdatePrice(ctx context.Context, channelID int64, price float64) error {
	tag, err := r.q.Exec(ctx, `UPDATE stocks SET price = $2 WHERE channel_id = $1`, channelID, price)
	if err != nil {
		return fmt.Errorf("failed to update price for stock %d: %w", channelID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("stock %d not found", channelID)
	}
	return nil
}

// CountHolders counts users with a non-zero position
func (r *StockRepository) CountHolders(ctx context.Context, channelID int64) (int, error) {
	var count int
	err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM user_stocks WHERE stock_id = $1 AND amount > 0`,
		channelID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count holders for stock %d: %w", channelID, err)
	}
	return count, nil
}
