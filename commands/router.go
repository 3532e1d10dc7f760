package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Fuyukai/Jokusoramame-sub000/cooldown"
	"github.com/Fuyukai/Jokusoramame-sub000/gateway"

	"github.com/google/shlex"
	pkgerrors "github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/time/rate"
)

// RateLimiter backs command cooldowns
type RateLimiter interface {
	Take(ctx context.Context, key string, limit int, window time.Duration) (time.Duration, error)
}

// Metrics receives one record per routed command
type Metrics interface {
	RecordCommand(command, outcome string)
}

// Result describes what the router did with a message
type Result struct {
	Outcome Outcome
	Command *Command
	Invoked string
	Prefix  string
	Err     error
}

// RouterOptions configures a Router
type RouterOptions struct {
	Prefixes     []string
	Client       gateway.Client
	Limiter      RateLimiter
	IsOwner      func(userID int64) bool
	DevMode      bool
	ErrorChannel int64
	Metrics      Metrics
}

// Router parses messages into command invocations and runs them
type Router struct {
	prefixes     []string
	client       gateway.Client
	limiter      RateLimiter
	isOwner      func(int64) bool
	devMode      bool
	errorChannel int64
	errorLimit   *rate.Limiter
	metrics      Metrics
}

func NewRouter(opts RouterOptions) *Router {
	return &Router{
		prefixes:     opts.Prefixes,
		client:       opts.Client,
		limiter:      opts.Limiter,
		isOwner:      opts.IsOwner,
		devMode:      opts.DevMode,
		errorChannel: opts.ErrorChannel,
		// one report every 10 s, bursts of 3
		errorLimit: rate.NewLimiter(rate.Every(10*time.Second), 3),
		metrics:    opts.Metrics,
	}
}

// MatchPrefix returns the first configured prefix the content starts with.
// The first letter is compared case-insensitively.
func MatchPrefix(prefixes []string, content string) (string, bool) {
	for _, p := range prefixes {
		if len(content) < len(p) || p == "" {
			continue
		}
		if strings.EqualFold(content[:1], p[:1]) && content[1:len(p)] == p[1:] {
			return content[:len(p)], true
		}
	}
	return "", false
}

func isPrivileged(prefix string) bool {
	return strings.HasSuffix(prefix, "::")
}

// Handle routes one message event through the command set
func (r *Router) Handle(ctx context.Context, set *Set, ev gateway.Event) Result {
	msg := ev.Message
	if msg == nil || msg.Author.Bot || msg.Author.ID == r.client.Self() {
		return Result{Outcome: NotCommand}
	}

	prefix, ok := MatchPrefix(r.prefixes, msg.Content)
	if !ok {
		return Result{Outcome: NotCommand}
	}

	view := NewStringView(msg.Content[len(prefix):])
	name, ok := view.Next()
	if !ok {
		return Result{Outcome: NotCommand}
	}

	cmd := set.Lookup(name)
	if cmd == nil {
		return Result{Outcome: UnknownCommand, Invoked: name, Prefix: prefix, Err: ErrUnknownCommand}
	}

	for len(cmd.Subcommands) > 0 {
		mark := view.Tell()
		tok, ok := view.Next()
		if !ok {
			break
		}
		sub := cmd.Sub(tok)
		if sub == nil {
			view.Seek(mark)
			break
		}
		cmd = sub
	}

	c := &Context{
		Client:      r.client,
		Message:     msg,
		Member:      ev.Member,
		GuildID:     msg.GuildID,
		ChannelID:   msg.ChannelID,
		AuthorID:    msg.Author.ID,
		Prefix:      prefix,
		InvokedWith: name,
		Command:     cmd,
		args:        map[string]any{},
		isOwner:     r.isOwner,
	}

	err := r.invoke(ctx, c, view)
	outcome := Classify(err)
	if r.metrics != nil {
		r.metrics.RecordCommand(cmd.QualifiedName(), string(outcome))
	}
	r.report(ctx, c, err, outcome)

	return Result{Outcome: outcome, Command: cmd, Invoked: name, Prefix: prefix, Err: err}
}

func (r *Router) invoke(ctx context.Context, c *Context, view *StringView) (err error) {
	cmd := c.Command

	if err := modCheck(ctx, c); err != nil {
		return err
	}
	for _, check := range cmd.Checks {
		if err := check(ctx, c); err != nil {
			return err
		}
	}

	if cmd.Handler == nil {
		return Errorf("usage: %s", strings.Join(subUsages(cmd), " | "))
	}

	if cmd.Flags != nil {
		if err := bindFlags(c, view.Rest()); err != nil {
			return err
		}
		err = bindParams(ctx, c, &positionalSource{args: c.Positionals})
	} else {
		err = bindParams(ctx, c, view)
	}
	if err != nil {
		return err
	}

	if err := r.takeCooldown(ctx, c); err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			err = pkgerrors.WithStack(fmt.Errorf("panic in %s: %v", cmd.QualifiedName(), p))
		}
	}()
	if err := cmd.Handler(ctx, c); err != nil {
		if Classify(err) == Internal {
			return withStack(err)
		}
		return err
	}
	return nil
}

func subUsages(cmd *Command) []string {
	var out []string
	for _, s := range cmd.Subcommands {
		out = append(out, s.Usage())
	}
	return out
}

func bindFlags(c *Context, rest string) error {
	// shlex would read a bare # as the start of a comment
	args, err := shlex.Split(strings.ReplaceAll(rest, "#", `\#`))
	if err != nil {
		return Errorf("could not parse arguments: %v", err)
	}

	fs := pflag.NewFlagSet(c.Command.QualifiedName(), pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	c.Command.Flags(fs)
	if err := fs.Parse(args); err != nil {
		return Errorf("%v", err)
	}

	c.Flags = fs
	c.Positionals = fs.Args()
	return nil
}

// argSource yields raw argument text to the binder
type argSource interface {
	Next() (string, bool)
	Rest() string
}

type positionalSource struct {
	args []string
}

func (p *positionalSource) Next() (string, bool) {
	if len(p.args) == 0 {
		return "", false
	}
	tok := p.args[0]
	p.args = p.args[1:]
	return tok, true
}

func (p *positionalSource) Rest() string {
	rest := strings.Join(p.args, " ")
	p.args = nil
	return rest
}

func bindParams(ctx context.Context, c *Context, src argSource) error {
	for _, p := range c.Command.Params {
		var (
			raw string
			ok  bool
		)
		if p.Rest {
			raw = src.Rest()
			ok = strings.TrimSpace(raw) != ""
		} else {
			raw, ok = src.Next()
		}

		if !ok {
			if !p.Optional {
				return &MissingArgumentError{Param: p.Name}
			}
			c.args[p.Name] = p.Default
			continue
		}

		v, err := p.Converter.Convert(ctx, c, raw)
		if err != nil {
			if r, isReason := err.(reason); isReason {
				return &ConversionError{Param: p.Name, Reason: string(r)}
			}
			return fmt.Errorf("failed to convert %s: %w", p.Name, err)
		}
		c.args[p.Name] = v
	}
	return nil
}

func (r *Router) takeCooldown(ctx context.Context, c *Context) error {
	cd := c.Command.Cooldown
	if cd == nil || cd.Scope == ScopeNone || r.limiter == nil {
		return nil
	}

	var id int64
	switch cd.Scope {
	case ScopeUser:
		id = c.AuthorID
	case ScopeChannel:
		id = c.ChannelID
	}

	key := cooldown.LimiterKey(strings.ReplaceAll(c.Command.QualifiedName(), " ", "."), cd.Scope.String(), id)
	retry, err := r.limiter.Take(ctx, key, cd.Limit, cd.Window)
	if err != nil {
		return fmt.Errorf("failed to check cooldown: %w", err)
	}
	if retry > 0 {
		return &RateLimitedError{RetryAfter: retry}
	}
	return nil
}

// report replies to the invoker and forwards internal errors
func (r *Router) report(ctx context.Context, c *Context, err error, outcome Outcome) {
	if err == nil {
		return
	}

	fields := log.Fields{
		"command": c.Command.QualifiedName(),
		"plugin":  c.Command.Plugin,
		"guild":   c.GuildID,
		"channel": c.ChannelID,
		"user":    c.AuthorID,
		"outcome": outcome,
	}

	if outcome == Internal {
		log.WithFields(fields).Errorf("Command failed: %+v", err)
		r.forward(ctx, c, err)
	} else {
		log.WithFields(fields).WithError(err).Debug("Command rejected")
	}

	msg, ok := UserMessage(err, r.devMode)
	if !ok {
		return
	}
	if _, sendErr := r.client.SendMessage(ctx, c.ChannelID, msg); sendErr != nil {
		log.WithFields(fields).WithError(sendErr).Warn("Failed to send error reply")
	}
}

func (r *Router) forward(ctx context.Context, c *Context, err error) {
	if r.errorChannel == 0 {
		return
	}
	if !r.errorLimit.Allow() {
		log.WithField("command", c.Command.QualifiedName()).Warn("Error report throttled")
		return
	}

	report := fmt.Sprintf("Error in `%s` (guild %d, channel %d, user %d):\n```\n%+v\n```",
		c.Command.QualifiedName(), c.GuildID, c.ChannelID, c.AuthorID, err)
	if _, sendErr := r.client.SendMessage(ctx, r.errorChannel, truncate(report, 1990)); sendErr != nil {
		log.WithError(sendErr).Warn("Failed to forward error report")
	}
}
