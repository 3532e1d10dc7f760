package service

import (
	"context"
	"fmt"
	"math"

	"github.com/Fuyukai/Jokusoramame-sub000/models"
)

// MinStockPrice keeps prices strictly positive
const MinStockPrice = 0.01

// stockService implements the StockService interface
type stockService struct {
	guildRepo GuildRepository
	stockRepo StockRepository
}

// NewStockService creates a new stock service
func NewStockService(guildRepo GuildRepository, stockRepo StockRepository) StockService {
	return &stockService{
		guildRepo: guildRepo,
		stockRepo: stockRepo,
	}
}

// NextPrice applies a relative perturbation, rounding to cents
func NextPrice(price, noise float64) float64 {
	next := math.Round(price*(1+noise)*100) / 100
	if next < MinStockPrice {
		return MinStockPrice
	}
	return next
}

func (s *stockService) Register(ctx context.Context, guildID, channelID int64, price float64, amount int64) (*models.Stock, error) {
	if price < MinStockPrice {
		return nil, fmt.Errorf("price must be at least %.2f", MinStockPrice)
	}
	if amount < 0 {
		return nil, fmt.Errorf("amount cannot be negative")
	}

	existing, err := s.stockRepo.Get(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing stock: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("channel is already a stock")
	}

	if _, err := s.guildRepo.EnsureGuild(ctx, guildID); err != nil {
		return nil, fmt.Errorf("failed to ensure guild: %w", err)
	}
	if err := s.guildRepo.SetStocksEnabled(ctx, guildID, true); err != nil {
		return nil, fmt.Errorf("failed to enable stocks: %w", err)
	}

	stock := &models.Stock{ChannelID: channelID, GuildID: guildID, Price: price, Amount: amount}
	if err := s.stockRepo.Create(ctx, stock); err != nil {
		return nil, fmt.Errorf("failed to create stock: %w", err)
	}
	return stock, nil
}

func (s *stockService) Get(ctx context.Context, channelID int64) (*models.Stock, error) {
	stock, err := s.stockRepo.Get(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stock: %w", err)
	}
	return stock, nil
}

func (s *stockService) Holders(ctx context.Context, channelID int64) (int, error) {
	count, err := s.stockRepo.CountHolders(ctx, channelID)
	if err != nil {
		return 0, fmt.Errorf("failed to count holders: %w", err)
	}
	return count, nil
}

func (s *stockService) Tick(ctx context.Context, noise func() float64) ([]*models.Stock, error) {
	stocks, err := s.stockRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list stocks: %w", err)
	}

	for _, stock := range stocks {
		stock.Price = NextPrice(stock.Price, noise())
		if err := s.stockRepo.UpdatePrice(ctx, stock.ChannelID, stock.Price); err != nil {
			return nil, fmt.Errorf("failed to update price for %d: %w", stock.ChannelID, err)
		}
	}
	return stocks, nil
}
