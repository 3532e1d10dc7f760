package stocks

import (
	"context"
	"fmt"
	"strings"

	"github.com/Fuyukai/Jokusoramame-sub000/bot/common"
	"github.com/Fuyukai/Jokusoramame-sub000/commands"
	"github.com/Fuyukai/Jokusoramame-sub000/gateway"
	"github.com/Fuyukai/Jokusoramame-sub000/models"
	"github.com/Fuyukai/Jokusoramame-sub000/service"

	log "github.com/sirupsen/logrus"
)

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// targetChannel is the channel argument, or the invoking channel
func targetChannel(c *commands.Context) (int64, error) {
	if !c.Has("channel") {
		return c.ChannelID, nil
	}
	ch := c.Channel("channel")
	if ch.GuildID != c.GuildID {
		return 0, commands.Errorf("that channel is not in this server")
	}
	return ch.ID, nil
}

func (f *Feature) handleCreate(ctx context.Context, c *commands.Context) error {
	price := c.Float("price")
	if price < service.MinStockPrice {
		return commands.Errorf("the price must be at least %s", common.FormatPrice(service.MinStockPrice))
	}
	channelID, err := targetChannel(c)
	if err != nil {
		return err
	}

	var stock *models.Stock
	err = common.WithUnitOfWork(ctx, f.env.UoW, func(uow service.UnitOfWork) error {
		stocks := service.NewStockService(uow.GuildRepository(), uow.StockRepository())
		existing, err := stocks.Get(ctx, channelID)
		if err != nil {
			return err
		}
		if existing != nil {
			return commands.Errorf("%s is already a stock", common.ChannelMention(channelID))
		}
		stock, err = stocks.Register(ctx, c.GuildID, channelID, price, DefaultShares)
		return err
	})
	if err != nil {
		return err
	}

	if err := f.env.KV.PushStockPrice(ctx, stock.ChannelID, stock.Price); err != nil {
		log.WithField("channel", stock.ChannelID).WithError(err).Warn("Failed to record opening price")
	}
	return c.Reply(ctx, common.SuccessText("%s is now trading at %s.", common.ChannelMention(stock.ChannelID), common.FormatPrice(stock.Price)))
}

// lookup loads the stock and its holder count; a missing stock is a user error
func (f *Feature) lookup(ctx context.Context, channelID int64) (*models.Stock, int, error) {
	var (
		stock   *models.Stock
		holders int
	)
	err := common.WithUnitOfWork(ctx, f.env.UoW, func(uow service.UnitOfWork) error {
		stocks := service.NewStockService(uow.GuildRepository(), uow.StockRepository())
		var err error
		stock, err = stocks.Get(ctx, channelID)
		if err != nil {
			return err
		}
		if stock == nil {
			return commands.Errorf("%s is not a stock", common.ChannelMention(channelID))
		}
		holders, err = stocks.Holders(ctx, channelID)
		return err
	})
	return stock, holders, err
}

func (f *Feature) handleInfo(ctx context.Context, c *commands.Context) error {
	channelID, err := targetChannel(c)
	if err != nil {
		return err
	}
	stock, holders, err := f.lookup(ctx, channelID)
	if err != nil {
		return err
	}

	history, err := f.env.KV.StockHistory(ctx, channelID)
	if err != nil {
		return err
	}
	change := "n/a"
	if len(history) > 1 && history[0] > 0 {
		change = fmt.Sprintf("%+.2f%%", (stock.Price-history[0])/history[0]*100)
	}

	embed := &gateway.Embed{
		Title:  "Stock " + common.ChannelMention(channelID),
		Colour: common.ColorPrimary,
		Fields: []gateway.EmbedField{
			{Name: "Price", Value: common.FormatPrice(stock.Price), Inline: true},
			{Name: "Shares", Value: common.FormatBalance(stock.Amount), Inline: true},
			{Name: "Holders", Value: fmt.Sprintf("%d", holders), Inline: true},
			{Name: "Change", Value: change, Inline: true},
		},
	}
	return common.SendEmbedOrText(ctx, c.Client, c.GuildID, c.ChannelID, embed)
}

func (f *Feature) handleHistory(ctx context.Context, c *commands.Context) error {
	channelID, err := targetChannel(c)
	if err != nil {
		return err
	}
	if _, _, err := f.lookup(ctx, channelID); err != nil {
		return err
	}

	history, err := f.env.KV.StockHistory(ctx, channelID)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return c.Reply(ctx, "No price history yet.")
	}

	low, high := history[0], history[0]
	for _, p := range history {
		low = min(low, p)
		high = max(high, p)
	}
	return c.Replyf(ctx, "%s `%s`\nlow %s, high %s, last %s",
		common.ChannelMention(channelID),
		Sparkline(history),
		common.FormatPrice(low),
		common.FormatPrice(high),
		common.FormatPrice(history[len(history)-1]))
}

// Sparkline renders prices as block characters scaled between their min and max
func Sparkline(prices []float64) string {
	if len(prices) == 0 {
		return ""
	}
	low, high := prices[0], prices[0]
	for _, p := range prices {
		low = min(low, p)
		high = max(high, p)
	}

	var b strings.Builder
	top := len(sparkBlocks) - 1
	for _, p := range prices {
		idx := 0
		if high > low {
			idx = int((p - low) / (high - low) * float64(top))
		}
		b.WriteRune(sparkBlocks[idx])
	}
	return b.String()
}

// tick moves every price and records it in the history list
func (f *Feature) tick(ctx context.Context) error {
	var moved []*models.Stock
	err := common.WithUnitOfWork(ctx, f.env.UoW, func(uow service.UnitOfWork) error {
		stocks := service.NewStockService(uow.GuildRepository(), uow.StockRepository())
		var err error
		moved, err = stocks.Tick(ctx, f.noise)
		return err
	})
	if err != nil {
		return err
	}

	for _, stock := range moved {
		if err := f.env.KV.PushStockPrice(ctx, stock.ChannelID, stock.Price); err != nil {
			return fmt.Errorf("failed to record price for %d: %w", stock.ChannelID, err)
		}
	}
	log.WithField("stocks", len(moved)).Debug("Stock prices ticked")
	return nil
}
