package plugin

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Fuyukai/Jokusoramame-sub000/commands"
	"github.com/Fuyukai/Jokusoramame-sub000/dispatch"
	"github.com/Fuyukai/Jokusoramame-sub000/worker"

	log "github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/panics"
)

var (
	// ErrAlreadyLoaded is returned by Load for a plugin that is loaded
	ErrAlreadyLoaded = errors.New("plugin already loaded")

	// ErrUnknownPlugin means the catalog has no factory for the path
	ErrUnknownPlugin = errors.New("no such plugin")
)

// LoadFailedError wraps any failure while building or installing a plugin
type LoadFailedError struct {
	Path  string
	Cause error
}

func (e *LoadFailedError) Error() string {
	return fmt.Sprintf("failed to load plugin %s: %v", e.Path, e.Cause)
}

func (e *LoadFailedError) Unwrap() error {
	return e.Cause
}

type loadedPlugin struct {
	manifest    *Manifest
	workers     []string
	readyCancel context.CancelFunc
	readyDone   chan struct{}
	unsubscribe []func()
}

// Registry tracks loaded plugins. Loads, unloads and reloads are serialised.
type Registry struct {
	mu         sync.Mutex
	catalog    Catalog
	env        *Env
	dispatcher *dispatch.Dispatcher
	pool       *worker.Pool
	plugins    map[string]*loadedPlugin
	grace      time.Duration
}

func NewRegistry(catalog Catalog, env *Env, dispatcher *dispatch.Dispatcher, pool *worker.Pool) *Registry {
	r := &Registry{
		catalog:    catalog,
		env:        env,
		dispatcher: dispatcher,
		pool:       pool,
		plugins:    map[string]*loadedPlugin{},
		grace:      worker.DefaultGrace,
	}
	env.Registry = r
	return r
}

// Load builds the plugin and installs it. ctx only bounds the call; the
// plugin's ready task outlives it.
func (r *Registry) Load(ctx context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx, Normalize(path))
}

func (r *Registry) load(ctx context.Context, name string) error {
	if _, ok := r.plugins[name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyLoaded, name)
	}

	manifest, err := r.build(name)
	if err != nil {
		return err
	}

	if err := r.dispatcher.Install(name, handlersOf(manifest), manifest.Commands); err != nil {
		release(name, manifest)
		return &LoadFailedError{Path: name, Cause: err}
	}

	lp, err := r.start(ctx, name, manifest)
	if err != nil {
		r.dispatcher.Remove(name)
		release(name, manifest)
		return &LoadFailedError{Path: name, Cause: err}
	}

	r.plugins[name] = lp
	log.WithField("plugin", name).Info("Plugin loaded")
	return nil
}

func (r *Registry) build(name string) (*Manifest, error) {
	factory, ok := r.catalog[name]
	if !ok {
		return nil, &LoadFailedError{Path: name, Cause: ErrUnknownPlugin}
	}

	var (
		catcher  panics.Catcher
		manifest *Manifest
		err      error
	)
	catcher.Try(func() {
		manifest, err = factory(r.env)
	})
	if rec := catcher.Recovered(); rec != nil {
		return nil, &LoadFailedError{Path: name, Cause: rec.AsError()}
	}
	if err != nil {
		return nil, &LoadFailedError{Path: name, Cause: err}
	}
	if manifest.Name == "" {
		manifest.Name = name
	}
	return manifest, nil
}

func handlersOf(m *Manifest) []dispatch.Handler {
	out := make([]dispatch.Handler, 0, len(m.Events))
	for _, e := range m.Events {
		out = append(out, dispatch.Handler{Name: e.Name, Kind: e.Kind, Fn: e.Fn})
	}
	return out
}

// start launches the workers and ready task of an installed manifest
func (r *Registry) start(ctx context.Context, name string, m *Manifest) (*loadedPlugin, error) {
	lp := &loadedPlugin{manifest: m}

	for _, spec := range m.Workers {
		spec.Name = name + "." + spec.Name
		if err := r.pool.Start(spec); err != nil {
			for _, started := range lp.workers {
				r.pool.Stop(started)
			}
			return nil, err
		}
		lp.workers = append(lp.workers, spec.Name)
	}

	if len(m.Subscriptions) > 0 {
		if r.env == nil || r.env.Bus == nil {
			for _, started := range lp.workers {
				r.pool.Stop(started)
			}
			return nil, errors.New("plugin subscribes to events but no event bus is configured")
		}
		for _, sub := range m.Subscriptions {
			lp.unsubscribe = append(lp.unsubscribe, r.env.Bus.Subscribe(sub.Event, sub.Handler))
		}
	}

	if m.Ready != nil {
		readyCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		lp.readyCancel = cancel
		lp.readyDone = make(chan struct{})
		go runReady(readyCtx, name, m.Ready, lp.readyDone)
	}
	return lp, nil
}

func runReady(ctx context.Context, name string, ready func(context.Context) error, done chan struct{}) {
	defer close(done)

	var catcher panics.Catcher
	var err error
	catcher.Try(func() {
		err = ready(ctx)
	})

	logger := log.WithField("plugin", name)
	if rec := catcher.Recovered(); rec != nil {
		logger.Errorf("Ready task panicked: %v\n%s", rec.Value, rec.Stack)
	} else if err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("Ready task failed")
	}
}

// stop cancels workers and the ready task and waits for them
func (r *Registry) stop(name string, lp *loadedPlugin) {
	for _, unsubscribe := range lp.unsubscribe {
		unsubscribe()
	}
	lp.unsubscribe = nil

	for _, w := range lp.workers {
		r.pool.Stop(w)
	}
	if lp.readyCancel != nil {
		lp.readyCancel()
		select {
		case <-lp.readyDone:
		case <-time.After(r.grace):
			log.WithField("plugin", name).Warn("Ready task did not stop within grace window")
		}
	}
}

func release(name string, m *Manifest) {
	if m.Release == nil {
		return
	}
	if err := m.Release(); err != nil {
		log.WithField("plugin", name).WithError(err).Warn("Plugin release failed")
	}
}

// Unload stops and removes a plugin. Unloading something not loaded is a no-op.
func (r *Registry) Unload(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unload(Normalize(path))
}

func (r *Registry) unload(name string) {
	lp, ok := r.plugins[name]
	if !ok {
		return
	}

	r.stop(name, lp)
	r.dispatcher.Remove(name)
	release(name, lp.manifest)
	delete(r.plugins, name)
	log.WithField("plugin", name).Info("Plugin unloaded")
}

// Reload builds a fresh manifest and swaps it for the loaded one in a single
// dispatcher update. If the new version fails to build or install, the old
// one stays unloaded and the error is returned.
func (r *Registry) Reload(ctx context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := Normalize(path)
	old, ok := r.plugins[name]
	if !ok {
		return r.load(ctx, name)
	}

	r.stop(name, old)
	delete(r.plugins, name)

	manifest, err := r.build(name)
	if err != nil {
		r.dispatcher.Remove(name)
		release(name, old.manifest)
		return err
	}

	if err := r.dispatcher.Install(name, handlersOf(manifest), manifest.Commands); err != nil {
		r.dispatcher.Remove(name)
		release(name, old.manifest)
		release(name, manifest)
		return &LoadFailedError{Path: name, Cause: err}
	}
	release(name, old.manifest)

	lp, err := r.start(ctx, name, manifest)
	if err != nil {
		r.dispatcher.Remove(name)
		release(name, manifest)
		return &LoadFailedError{Path: name, Cause: err}
	}

	r.plugins[name] = lp
	log.WithField("plugin", name).Info("Plugin reloaded")
	return nil
}

// Loaded lists the loaded plugin names
func (r *Registry) Loaded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// LoadAll loads the autoload list. Failures are logged and skipped; the
// number of plugins loaded is returned.
func (r *Registry) LoadAll(ctx context.Context, paths []string) int {
	loaded := 0
	for _, path := range paths {
		if err := r.Load(ctx, path); err != nil {
			if errors.Is(err, ErrAlreadyLoaded) {
				continue
			}
			log.WithField("plugin", path).WithError(err).Error("Autoload failed")
			continue
		}
		loaded++
	}
	return loaded
}

// UnloadAll unloads every plugin in reverse name order
func (r *Registry) UnloadAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	for _, name := range names {
		r.unload(name)
	}
}

// Commands returns the live command table
func (r *Registry) Commands() *commands.Set {
	return r.dispatcher.Commands()
}
