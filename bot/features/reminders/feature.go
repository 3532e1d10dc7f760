package reminders

import (
	"context"
	"sync"
	"time"

	"github.com/Fuyukai/Jokusoramame-sub000/commands"
	"github.com/Fuyukai/Jokusoramame-sub000/plugin"
	"github.com/Fuyukai/Jokusoramame-sub000/worker"
)

// ScanInterval is both the scan period and its look-ahead horizon
const ScanInterval = 300 * time.Second

// Feature schedules reminders and fires them
type Feature struct {
	env *plugin.Env
	now func() time.Time

	// sleepers outlive a single scan, so they hang off the plugin's lifetime
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	pending map[int64]struct{}
	wg      sync.WaitGroup
}

func New(env *plugin.Env) *Feature {
	ctx, cancel := context.WithCancel(context.Background())
	return &Feature{
		env:     env,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
		pending: map[int64]struct{}{},
	}
}

func Factory(env *plugin.Env) (*plugin.Manifest, error) {
	return New(env).Manifest(), nil
}

func (f *Feature) Manifest() *plugin.Manifest {
	return &plugin.Manifest{
		Name: "reminders",
		Commands: []*commands.Command{
			{
				Name:    "remind",
				Aliases: []string{"remindme"},
				Help:    "Remind you of something after a number of seconds",
				Params: []commands.Param{
					{Name: "seconds", Converter: commands.Int},
					{Name: "text", Converter: commands.Rest, Rest: true},
				},
				Cooldown: &commands.Cooldown{Scope: commands.ScopeUser, Limit: 5, Window: time.Minute},
				Handler:  f.handleRemind,
			},
			{
				Name:    "reminders",
				Help:    "List your pending reminders",
				Handler: f.handleList,
			},
		},
		Workers: []worker.Spec{{
			Name:   "fire",
			Period: ScanInterval,
			Body:   f.scan,
		}},
		Release: f.release,
	}
}

// release cancels every sleeping reminder and waits for them to exit
func (f *Feature) release() error {
	f.cancel()
	f.wg.Wait()
	return nil
}
