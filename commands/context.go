package commands

import (
	"context"
	"fmt"

	"github.com/Fuyukai/Jokusoramame-sub000/gateway"

	"github.com/spf13/pflag"
)

// Context is the per-invocation state handed to checks and handlers
type Context struct {
	Client  gateway.Client
	Message *gateway.Message
	Member  *gateway.Member

	GuildID   int64
	ChannelID int64
	AuthorID  int64

	Prefix      string
	InvokedWith string
	Command     *Command

	// Set for argparse-style commands
	Flags       *pflag.FlagSet
	Positionals []string

	args    map[string]any
	isOwner func(int64) bool
}

// Privileged reports whether the invocation used a mod prefix
func (c *Context) Privileged() bool {
	return isPrivileged(c.Prefix)
}

// IsOwner reports whether the author is a bot owner
func (c *Context) IsOwner() bool {
	return c.isOwner != nil && c.isOwner(c.AuthorID)
}

// Reply sends content verbatim to the invoking channel
func (c *Context) Reply(ctx context.Context, content string) error {
	_, err := c.Client.SendMessage(ctx, c.ChannelID, content)
	return err
}

func (c *Context) Replyf(ctx context.Context, format string, args ...any) error {
	return c.Reply(ctx, fmt.Sprintf(format, args...))
}

func (c *Context) ReplyEmbed(ctx context.Context, embed *gateway.Embed) error {
	_, err := c.Client.SendEmbed(ctx, c.ChannelID, embed)
	return err
}

// Has reports whether the argument was supplied or defaulted to a non-nil value
func (c *Context) Has(name string) bool {
	v, ok := c.args[name]
	return ok && v != nil
}

// Arg returns the raw bound value
func (c *Context) Arg(name string) any {
	return c.args[name]
}

func (c *Context) Int(name string) int64 {
	v, _ := c.args[name].(int64)
	return v
}

func (c *Context) Float(name string) float64 {
	v, _ := c.args[name].(float64)
	return v
}

func (c *Context) String(name string) string {
	v, _ := c.args[name].(string)
	return v
}

func (c *Context) User(name string) *gateway.User {
	v, _ := c.args[name].(*gateway.User)
	return v
}

func (c *Context) MemberArg(name string) *gateway.Member {
	v, _ := c.args[name].(*gateway.Member)
	return v
}

func (c *Context) Channel(name string) *gateway.Channel {
	v, _ := c.args[name].(*gateway.Channel)
	return v
}

func (c *Context) Role(name string) *gateway.Role {
	v, _ := c.args[name].(*gateway.Role)
	return v
}

func (c *Context) Colour(name string) int {
	v, _ := c.args[name].(int)
	return v
}
