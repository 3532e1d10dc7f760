package economy

import (
	"context"

	"github.com/Fuyukai/Jokusoramame-sub000/bot/common"
	"github.com/Fuyukai/Jokusoramame-sub000/commands"
	"github.com/Fuyukai/Jokusoramame-sub000/service"
)

const dailyBucket = "money"

func (f *Feature) handleMoney(ctx context.Context, c *commands.Context) error {
	userID, name := c.AuthorID, "You have"
	if u := c.User("user"); u != nil && u.ID != c.AuthorID {
		if u.Bot {
			return commands.Errorf("bots don't have money")
		}
		userID, name = u.ID, u.Username+" has"
	}

	var balance int64
	err := common.WithUnitOfWork(ctx, f.env.UoW, func(uow service.UnitOfWork) error {
		economy := service.NewEconomyService(uow.UserRepository(), uow.EventBus())
		var err error
		balance, err = economy.GetBalance(ctx, userID)
		return err
	})
	if err != nil {
		return err
	}

	return c.Replyf(ctx, "%s **§%s**.", name, common.FormatBalance(balance))
}

func (f *Feature) handleDaily(ctx context.Context, c *commands.Context) error {
	remaining, armed, err := f.env.Buckets.CheckDaily(ctx, c.AuthorID, dailyBucket)
	if err != nil {
		return err
	}
	if armed {
		return commands.Errorf("you already claimed today. Try again in %s.", common.FormatDuration(remaining))
	}

	var balance int64
	err = common.WithUnitOfWork(ctx, f.env.UoW, func(uow service.UnitOfWork) error {
		economy := service.NewEconomyService(uow.UserRepository(), uow.EventBus())
		var err error
		balance, err = economy.Credit(ctx, c.AuthorID, DailyReward)
		return err
	})
	if err != nil {
		return err
	}

	if err := f.env.Buckets.ArmDaily(ctx, c.AuthorID, dailyBucket); err != nil {
		return err
	}
	return c.Reply(ctx, common.SuccessText("You claimed **§%s**. You now have **§%s**.",
		common.FormatBalance(DailyReward), common.FormatBalance(balance)))
}
