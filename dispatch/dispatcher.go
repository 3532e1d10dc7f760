// Package dispatch fans gateway events out to plugin handlers.
package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/Fuyukai/Jokusoramame-sub000/commands"
	"github.com/Fuyukai/Jokusoramame-sub000/gateway"

	log "github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// HandlerFunc handles one event
type HandlerFunc func(ctx context.Context, ev gateway.Event) error

// Handler is a registered listener. Plugin and Name identify it in logs.
type Handler struct {
	Plugin string
	Name   string
	Kind   gateway.Kind
	Fn     HandlerFunc
}

// CommandRouter is the command pre-filter run on message events
type CommandRouter interface {
	Handle(ctx context.Context, set *commands.Set, ev gateway.Event) commands.Result
}

type Metrics interface {
	RecordEventDispatched(kind string)
	RecordHandlerFailure(plugin string)
}

type pluginEntry struct {
	handlers []Handler
	commands []*commands.Command
}

// snapshot is immutable once published
type snapshot struct {
	plugins  map[string]pluginEntry
	byKind   map[gateway.Kind][]Handler
	commands *commands.Set
}

func emptySnapshot() *snapshot {
	set, _ := commands.NewSet(nil)
	return &snapshot{
		plugins:  map[string]pluginEntry{},
		byKind:   map[gateway.Kind][]Handler{},
		commands: set,
	}
}

// Dispatcher owns the handler table
type Dispatcher struct {
	mu      sync.Mutex
	current atomic.Pointer[snapshot]
	router  CommandRouter
	metrics Metrics
}

func New(router CommandRouter, metrics Metrics) *Dispatcher {
	d := &Dispatcher{router: router, metrics: metrics}
	d.current.Store(emptySnapshot())
	return d
}

// Install registers a plugin's handlers and commands, replacing any previous
// registration under the same name in a single swap.
func (d *Dispatcher) Install(plugin string, handlers []Handler, cmds []*commands.Command) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	next := make(map[string]pluginEntry, len(d.current.Load().plugins)+1)
	for name, entry := range d.current.Load().plugins {
		next[name] = entry
	}

	hs := make([]Handler, len(handlers))
	for i, h := range handlers {
		h.Plugin = plugin
		hs[i] = h
	}
	commands.Link(plugin, cmds)
	next[plugin] = pluginEntry{handlers: hs, commands: cmds}

	snap, err := build(next)
	if err != nil {
		return err
	}
	d.current.Store(snap)
	return nil
}

// Remove drops every handler and command of a plugin
func (d *Dispatcher) Remove(plugin string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cur := d.current.Load()
	if _, ok := cur.plugins[plugin]; !ok {
		return
	}

	next := make(map[string]pluginEntry, len(cur.plugins))
	for name, entry := range cur.plugins {
		if name != plugin {
			next[name] = entry
		}
	}

	// removing can never introduce a conflict
	snap, _ := build(next)
	d.current.Store(snap)
}

func build(plugins map[string]pluginEntry) (*snapshot, error) {
	names := make([]string, 0, len(plugins))
	for name := range plugins {
		names = append(names, name)
	}
	sort.Strings(names)

	byKind := map[gateway.Kind][]Handler{}
	var cmds []*commands.Command
	for _, name := range names {
		entry := plugins[name]
		for _, h := range entry.handlers {
			byKind[h.Kind] = append(byKind[h.Kind], h)
		}
		cmds = append(cmds, entry.commands...)
	}

	set, err := commands.NewSet(cmds)
	if err != nil {
		return nil, fmt.Errorf("failed to build command table: %w", err)
	}
	return &snapshot{plugins: plugins, byKind: byKind, commands: set}, nil
}

// Commands returns the current command table
func (d *Dispatcher) Commands() *commands.Set {
	return d.current.Load().commands
}

// Plugins lists the installed plugin names
func (d *Dispatcher) Plugins() []string {
	snap := d.current.Load()
	out := make([]string, 0, len(snap.plugins))
	for name := range snap.plugins {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// HandlerCount reports how many handlers are registered for kind
func (d *Dispatcher) HandlerCount(kind gateway.Kind) int {
	return len(d.current.Load().byKind[kind])
}

// Inflight tracks the handlers started for one event
type Inflight struct {
	wg conc.WaitGroup
}

// Wait blocks until every handler for the event has returned
func (i *Inflight) Wait() {
	i.wg.Wait()
}

// Dispatch starts every handler for ev against one snapshot of the table.
// It does not wait for them.
func (d *Dispatcher) Dispatch(ctx context.Context, ev gateway.Event) *Inflight {
	snap := d.current.Load()
	inflight := &Inflight{}

	d.fanOut(ctx, snap, ev, inflight)

	if ev.Kind == gateway.KindMessage && d.router != nil {
		inflight.wg.Go(func() {
			d.route(ctx, snap, ev, inflight)
		})
	}
	return inflight
}

func (d *Dispatcher) fanOut(ctx context.Context, snap *snapshot, ev gateway.Event, inflight *Inflight) {
	if d.metrics != nil {
		d.metrics.RecordEventDispatched(string(ev.Kind))
	}
	for _, h := range snap.byKind[ev.Kind] {
		inflight.wg.Go(func() {
			d.run(ctx, h, ev)
		})
	}
}

func (d *Dispatcher) route(ctx context.Context, snap *snapshot, ev gateway.Event, inflight *Inflight) {
	var catcher panics.Catcher
	var res commands.Result
	catcher.Try(func() {
		res = d.router.Handle(ctx, snap.commands, ev)
	})
	if r := catcher.Recovered(); r != nil {
		log.WithField("message", ev.Message.ID).Errorf("Command router panicked: %v\n%s", r.Value, r.Stack)
		return
	}

	var kind gateway.Kind
	switch res.Outcome {
	case commands.NotCommand:
		kind = gateway.KindPlainMessage
	case commands.UnknownCommand:
		kind = gateway.KindUnknownCommand
	default:
		return
	}

	pseudo := ev
	pseudo.Kind = kind
	pseudo.Invoked = res.Invoked
	pseudo.Prefix = res.Prefix
	d.fanOut(ctx, snap, pseudo, inflight)
}

func (d *Dispatcher) run(ctx context.Context, h Handler, ev gateway.Event) {
	logger := log.WithFields(log.Fields{
		"plugin":  h.Plugin,
		"handler": h.Name,
		"kind":    ev.Kind,
	})

	var catcher panics.Catcher
	var err error
	catcher.Try(func() {
		err = h.Fn(ctx, ev)
	})

	if r := catcher.Recovered(); r != nil {
		logger.Errorf("Handler panicked: %v\n%s", r.Value, r.Stack)
	} else if err != nil {
		logger.WithError(err).Error("Handler failed")
	} else {
		return
	}

	if d.metrics != nil {
		d.metrics.RecordHandlerFailure(h.Plugin)
	}
}
