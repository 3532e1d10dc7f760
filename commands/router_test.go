package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Fuyukai/Jokusoramame-sub000/gateway"
	"github.com/Fuyukai/Jokusoramame-sub000/gateway/gatewaytest"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	keys   []string
}

func (f *fakeLimiter) Take(_ context.Context, key string, limit int, window time.Duration) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts == nil {
		f.counts = map[string]int{}
	}
	f.keys = append(f.keys, key)
	f.counts[key]++
	if f.counts[key] > limit {
		return window, nil
	}
	return 0, nil
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []string
}

func (m *recordingMetrics) RecordCommand(command, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, command+"="+outcome)
}

type routerFixture struct {
	client  *gatewaytest.FakeClient
	limiter *fakeLimiter
	metrics *recordingMetrics
	router  *Router
	set     *Set
	calls   []string
}

func newRouterFixture(t *testing.T, errorChannel int64) *routerFixture {
	t.Helper()
	f := &routerFixture{
		client:  gatewaytest.NewFakeClient(),
		limiter: &fakeLimiter{},
		metrics: &recordingMetrics{},
	}
	f.client.Users[42] = &gateway.User{ID: 42, Username: "alice"}

	f.router = NewRouter(RouterOptions{
		Prefixes:     []string{"j!", "j?", "j::", "j->"},
		Client:       f.client,
		Limiter:      f.limiter,
		IsOwner:      func(id int64) bool { return id == 5 },
		ErrorChannel: errorChannel,
		Metrics:      f.metrics,
	})

	cmds := []*Command{
		{
			Name:    "echo",
			Aliases: []string{"say"},
			Params:  []Param{{Name: "text", Converter: Rest, Rest: true}},
			Handler: func(ctx context.Context, c *Context) error {
				f.calls = append(f.calls, "echo:"+c.String("text"))
				return c.Reply(ctx, c.String("text"))
			},
		},
		{
			Name:   "add",
			Params: []Param{{Name: "a", Converter: Int}, {Name: "b", Converter: Int, Optional: true, Default: int64(1)}},
			Handler: func(ctx context.Context, c *Context) error {
				f.calls = append(f.calls, "add")
				return c.Replyf(ctx, "%d", c.Int("a")+c.Int("b"))
			},
		},
		{
			Name: "purge",
			Mod:  true,
			Handler: func(context.Context, *Context) error {
				f.calls = append(f.calls, "purge")
				return nil
			},
		},
		{
			Name:     "daily",
			Cooldown: &Cooldown{Scope: ScopeUser, Limit: 1, Window: time.Hour},
			Handler: func(context.Context, *Context) error {
				f.calls = append(f.calls, "daily")
				return nil
			},
		},
		{
			Name: "explode",
			Handler: func(context.Context, *Context) error {
				panic("kaboom")
			},
		},
		{
			Name: "fail",
			Handler: func(context.Context, *Context) error {
				return errors.New("database unavailable")
			},
		},
		{
			Name: "remind",
			Flags: func(fs *pflag.FlagSet) {
				fs.StringP("in", "i", "", "delay")
				fs.Bool("dm", false, "send privately")
			},
			Params: []Param{{Name: "text", Converter: Rest, Rest: true}},
			Handler: func(_ context.Context, c *Context) error {
				in, _ := c.Flags.GetString("in")
				dm, _ := c.Flags.GetBool("dm")
				f.calls = append(f.calls, fmt.Sprintf("remind:%s:%t:%s", in, dm, c.String("text")))
				return nil
			},
		},
		{
			Name: "stock",
			Subcommands: []*Command{
				{
					Name:   "create",
					Mod:    true,
					Params: []Param{{Name: "price", Converter: Float}},
					Handler: func(context.Context, *Context) error {
						f.calls = append(f.calls, "stock create")
						return nil
					},
				},
				{
					Name: "info",
					Handler: func(context.Context, *Context) error {
						f.calls = append(f.calls, "stock info")
						return nil
					},
				},
			},
		},
		{
			Name:   "owner",
			Checks: []Check{OwnerOnly()},
			Handler: func(context.Context, *Context) error {
				f.calls = append(f.calls, "owner")
				return nil
			},
		},
	}

	Link("test", cmds)
	set, err := NewSet(cmds)
	require.NoError(t, err)
	f.set = set
	return f
}

func (f *routerFixture) send(content string) Result {
	return f.sendAs(42, content)
}

func (f *routerFixture) sendAs(userID int64, content string) Result {
	ev := gateway.Event{
		Kind: gateway.KindMessage,
		Message: &gateway.Message{
			ID:        99,
			ChannelID: 10,
			GuildID:   7,
			Author:    gateway.User{ID: userID, Username: "someone"},
			Content:   content,
		},
	}
	return f.router.Handle(context.Background(), f.set, ev)
}

func TestMatchPrefix(t *testing.T) {
	prefixes := []string{"j!", "j?", "j::", "j->"}

	p, ok := MatchPrefix(prefixes, "J!help")
	assert.True(t, ok)
	assert.Equal(t, "J!", p)

	p, ok = MatchPrefix(prefixes, "j::purge")
	assert.True(t, ok)
	assert.True(t, isPrivileged(p))

	_, ok = MatchPrefix(prefixes, "hello")
	assert.False(t, ok)

	_, ok = MatchPrefix(prefixes, "j")
	assert.False(t, ok)
}

func TestRouter_Basics(t *testing.T) {
	t.Run("not a command", func(t *testing.T) {
		f := newRouterFixture(t, 0)
		res := f.send("just chatting")
		assert.Equal(t, NotCommand, res.Outcome)
		assert.Empty(t, f.client.Sent())
	})

	t.Run("bots are ignored", func(t *testing.T) {
		f := newRouterFixture(t, 0)
		ev := gateway.Event{Kind: gateway.KindMessage, Message: &gateway.Message{
			ChannelID: 10, GuildID: 7, Author: gateway.User{ID: 3, Bot: true}, Content: "j!echo hi",
		}}
		res := f.router.Handle(context.Background(), f.set, ev)
		assert.Equal(t, NotCommand, res.Outcome)
	})

	t.Run("alias and uppercase prefix", func(t *testing.T) {
		f := newRouterFixture(t, 0)
		res := f.send(`J!SAY hello   world`)
		assert.Equal(t, Ok, res.Outcome)
		assert.Equal(t, []string{"echo:hello   world"}, f.calls)
		assert.Equal(t, []string{"hello   world"}, f.client.Contents())
	})

	t.Run("unknown command is silent", func(t *testing.T) {
		f := newRouterFixture(t, 0)
		res := f.send("j!nonsense")
		assert.Equal(t, UnknownCommand, res.Outcome)
		assert.Equal(t, "nonsense", res.Invoked)
		assert.Empty(t, f.client.Sent())
	})

	t.Run("reply text is sent verbatim", func(t *testing.T) {
		f := newRouterFixture(t, 0)
		f.send("j!echo 100% sure, %s %d")
		assert.Equal(t, []string{"100% sure, %s %d"}, f.client.Contents())
	})

	t.Run("optional default", func(t *testing.T) {
		f := newRouterFixture(t, 0)
		f.send("j!add 4")
		assert.Equal(t, []string{"5"}, f.client.Contents())
	})
}

func TestRouter_ArgumentErrors(t *testing.T) {
	f := newRouterFixture(t, 0)

	res := f.send("j!add")
	assert.Equal(t, MissingArgument, res.Outcome)

	res = f.send("j!add four")
	assert.Equal(t, ConversionFailed, res.Outcome)

	contents := f.client.Contents()
	require.Len(t, contents, 2)
	assert.Equal(t, "❌ Missing required argument `a`", contents[0])
	assert.Equal(t, "❌ Invalid value for `a`: expected a whole number", contents[1])
	assert.Empty(t, f.calls)
}

func TestRouter_ModCommands(t *testing.T) {
	f := newRouterFixture(t, 0)

	res := f.send("j!purge")
	assert.Equal(t, CheckFailed, res.Outcome)
	assert.Empty(t, f.client.Sent(), "plain prefix must not reveal mod commands")

	res = f.send("j::purge")
	assert.Equal(t, Ok, res.Outcome)
	assert.Equal(t, []string{"purge"}, f.calls)
}

func TestRouter_Subcommands(t *testing.T) {
	f := newRouterFixture(t, 0)

	res := f.send("j!stock info")
	assert.Equal(t, Ok, res.Outcome)
	assert.Equal(t, "stock info", res.Command.QualifiedName())

	res = f.send("j::stock create 12.5")
	assert.Equal(t, Ok, res.Outcome)

	res = f.send("j!stock create 12.5")
	assert.Equal(t, CheckFailed, res.Outcome)

	res = f.send("j!stock")
	assert.Equal(t, UserErrored, res.Outcome)
	contents := f.client.Contents()
	require.NotEmpty(t, contents)
	assert.Contains(t, contents[len(contents)-1], "stock create <price>")

	assert.Equal(t, []string{"stock info", "stock create"}, f.calls)
}

func TestRouter_Checks(t *testing.T) {
	f := newRouterFixture(t, 0)

	res := f.send("j!owner")
	assert.Equal(t, CheckFailed, res.Outcome)
	assert.Equal(t, []string{"❌ Check failed: this command is owner-only"}, f.client.Contents())

	res = f.sendAs(5, "j!owner")
	assert.Equal(t, Ok, res.Outcome)
}

func TestRouter_Cooldown(t *testing.T) {
	f := newRouterFixture(t, 0)

	assert.Equal(t, Ok, f.send("j!daily").Outcome)
	res := f.send("j!daily")
	assert.Equal(t, RateLimited, res.Outcome)
	assert.Equal(t, []string{"daily"}, f.calls)
	assert.Equal(t, "ratelimit:daily:user:42", f.limiter.keys[0])

	// another user has their own bucket
	assert.Equal(t, Ok, f.sendAs(43, "j!daily").Outcome)
}

func TestRouter_InternalErrors(t *testing.T) {
	t.Run("panic becomes internal", func(t *testing.T) {
		f := newRouterFixture(t, 555)
		res := f.send("j!explode")
		assert.Equal(t, Internal, res.Outcome)
		assert.Contains(t, res.Err.Error(), "kaboom")

		sent := f.client.Sent()
		require.Len(t, sent, 2)
		assert.Equal(t, int64(555), sent[0].ChannelID)
		assert.Contains(t, sent[0].Content, "kaboom")
		assert.Equal(t, int64(10), sent[1].ChannelID)
		assert.Equal(t, "❌ An internal error occurred. It has been reported.", sent[1].Content)
	})

	t.Run("handler error without error channel", func(t *testing.T) {
		f := newRouterFixture(t, 0)
		res := f.send("j!fail")
		assert.Equal(t, Internal, res.Outcome)
		require.Len(t, f.client.Sent(), 1)
	})

	t.Run("error reports are throttled", func(t *testing.T) {
		f := newRouterFixture(t, 555)
		for i := 0; i < 10; i++ {
			f.send("j!fail")
		}
		forwarded := 0
		for _, s := range f.client.Sent() {
			if s.ChannelID == 555 {
				forwarded++
			}
		}
		assert.Less(t, forwarded, 10)
		assert.GreaterOrEqual(t, forwarded, 1)
	})
}

func TestRouter_Flags(t *testing.T) {
	f := newRouterFixture(t, 0)

	res := f.send(`j!remind --in 5m --dm "take the bins out"`)
	require.Equal(t, Ok, res.Outcome, "%v", res.Err)
	assert.Equal(t, []string{"remind:5m:true:take the bins out"}, f.calls)

	res = f.send("j!remind --bogus x")
	assert.Equal(t, UserErrored, res.Outcome)
	contents := f.client.Contents()
	require.NotEmpty(t, contents)
	assert.True(t, strings.HasPrefix(contents[len(contents)-1], "❌ "))
}

func TestRouter_Metrics(t *testing.T) {
	f := newRouterFixture(t, 0)
	f.send("j!add 1 2")
	f.send("j::purge")
	f.send("j!nothing")
	assert.Equal(t, []string{"add=ok", "purge=ok"}, f.metrics.outcomes)
}
