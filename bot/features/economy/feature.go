package economy

import (
	"context"
	"time"

	"github.com/Fuyukai/Jokusoramame-sub000/bot/common"
	"github.com/Fuyukai/Jokusoramame-sub000/commands"
	"github.com/Fuyukai/Jokusoramame-sub000/plugin"
	"github.com/Fuyukai/Jokusoramame-sub000/service"
	"github.com/Fuyukai/Jokusoramame-sub000/worker"

	log "github.com/sirupsen/logrus"
)

// DailyReward is credited by the daily command
const DailyReward int64 = 500

// Feature handles balances, the daily reward and hourly decay
type Feature struct {
	env *plugin.Env
}

func New(env *plugin.Env) *Feature {
	return &Feature{env: env}
}

func Factory(env *plugin.Env) (*plugin.Manifest, error) {
	return New(env).Manifest(), nil
}

func (f *Feature) Manifest() *plugin.Manifest {
	return &plugin.Manifest{
		Name: "economy",
		Commands: []*commands.Command{
			{
				Name:    "money",
				Aliases: []string{"balance", "bal"},
				Help:    "Show your balance, or another user's",
				Params:  []commands.Param{{Name: "user", Converter: commands.User, Optional: true}},
				Handler: f.handleMoney,
			},
			{
				Name:    "daily",
				Help:    "Claim your daily reward",
				Handler: f.handleDaily,
			},
		},
		Workers: []worker.Spec{{
			Name:         "decay",
			InitialDelay: worker.NextHour,
			Period:       time.Hour,
			Body:         f.runDecay,
		}},
	}
}

// runDecay applies one hour of decay in a single transaction
func (f *Feature) runDecay(ctx context.Context) error {
	var result *service.DecayResult
	err := common.WithUnitOfWork(ctx, f.env.UoW, func(uow service.UnitOfWork) error {
		economy := service.NewEconomyService(uow.UserRepository(), uow.EventBus())
		var err error
		result, err = economy.ApplyDecay(ctx, 1)
		return err
	})
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"users": result.UsersAffected,
		"delta": result.TotalDelta,
	}).Info("Applied hourly money decay")
	return nil
}
