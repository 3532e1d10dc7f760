package stocks

import (
	"math/rand/v2"
	"time"

	"github.com/Fuyukai/Jokusoramame-sub000/commands"
	"github.com/Fuyukai/Jokusoramame-sub000/plugin"
	"github.com/Fuyukai/Jokusoramame-sub000/worker"
)

const (
	// TickInterval is how often prices move
	TickInterval = 60 * time.Second

	// Volatility is the standard deviation of one tick's relative change
	Volatility = 0.02

	// DefaultShares is the share count of a newly created stock
	DefaultShares int64 = 100000
)

// Feature runs the channel stock market
type Feature struct {
	env   *plugin.Env
	noise func() float64
}

func New(env *plugin.Env) *Feature {
	return &Feature{
		env:   env,
		noise: func() float64 { return rand.NormFloat64() * Volatility },
	}
}

func Factory(env *plugin.Env) (*plugin.Manifest, error) {
	return New(env).Manifest(), nil
}

func (f *Feature) Manifest() *plugin.Manifest {
	guildOnly := []commands.Check{commands.GuildOnly()}

	return &plugin.Manifest{
		Name: "stocks",
		Commands: []*commands.Command{{
			Name:    "stock",
			Aliases: []string{"stocks"},
			Help:    "Channel stocks",
			Subcommands: []*commands.Command{
				{
					Name: "create",
					Help: "Turn a channel into a stock",
					Mod:  true,
					Params: []commands.Param{
						{Name: "price", Converter: commands.Float},
						{Name: "channel", Converter: commands.Channel, Optional: true},
					},
					Checks:  guildOnly,
					Handler: f.handleCreate,
				},
				{
					Name:    "info",
					Help:    "Show a stock's price and holders",
					Params:  []commands.Param{{Name: "channel", Converter: commands.Channel, Optional: true}},
					Checks:  guildOnly,
					Handler: f.handleInfo,
				},
				{
					Name:    "history",
					Help:    "Show recent prices of a stock",
					Params:  []commands.Param{{Name: "channel", Converter: commands.Channel, Optional: true}},
					Checks:  guildOnly,
					Handler: f.handleHistory,
				},
			},
		}},
		Workers: []worker.Spec{{
			Name:   "tick",
			Period: TickInterval,
			InitialDelay: func(time.Time) time.Duration {
				return TickInterval
			},
			Body: f.tick,
		}},
	}
}
