package commands

import (
	"context"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/Fuyukai/Jokusoramame-sub000/gateway"
)

// Converter turns a raw token into a typed value
type Converter struct {
	Name    string
	convert func(ctx context.Context, c *Context, raw string) (any, error)
}

// Convert runs the converter; errors are reasons, wrapped by the binder
func (cv Converter) Convert(ctx context.Context, c *Context, raw string) (any, error) {
	return cv.convert(ctx, c, raw)
}

var (
	userMention    = regexp.MustCompile(`^<@!?(\d+)>$`)
	channelMention = regexp.MustCompile(`^<#(\d+)>$`)
	roleMention    = regexp.MustCompile(`^<@&(\d+)>$`)
	rawID          = regexp.MustCompile(`^\d{1,20}$`)
)

// reason is a conversion failure message without the parameter name
type reason string

func (r reason) Error() string { return string(r) }

func extractID(pattern *regexp.Regexp, raw string) (int64, bool) {
	if m := pattern.FindStringSubmatch(raw); m != nil {
		id, err := strconv.ParseInt(m[1], 10, 64)
		return id, err == nil
	}
	if rawID.MatchString(raw) {
		id, err := strconv.ParseInt(raw, 10, 64)
		return id, err == nil
	}
	return 0, false
}

func lookupErr(err error, what string) error {
	if errors.Is(err, gateway.ErrNotFound) {
		return reason(what + " not found")
	}
	return err
}

var Int = Converter{Name: "int", convert: func(_ context.Context, _ *Context, raw string) (any, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, reason("expected a whole number")
	}
	return n, nil
}}

var Float = Converter{Name: "float", convert: func(_ context.Context, _ *Context, raw string) (any, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, reason("expected a number")
	}
	return f, nil
}}

var String = Converter{Name: "string", convert: func(_ context.Context, _ *Context, raw string) (any, error) {
	return raw, nil
}}

// Rest is String for a parameter that takes the remaining input
var Rest = Converter{Name: "text", convert: func(_ context.Context, _ *Context, raw string) (any, error) {
	return strings.TrimSpace(raw), nil
}}

var User = Converter{Name: "user", convert: func(ctx context.Context, c *Context, raw string) (any, error) {
	id, ok := extractID(userMention, raw)
	if !ok {
		return nil, reason("expected a user mention or ID")
	}
	u, err := c.Client.FetchUser(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "user")
	}
	return u, nil
}}

var Member = Converter{Name: "member", convert: func(ctx context.Context, c *Context, raw string) (any, error) {
	if c.GuildID == 0 {
		return nil, reason("members can only be looked up in a server")
	}
	if id, ok := extractID(userMention, raw); ok {
		m, err := c.Client.FetchMember(ctx, c.GuildID, id)
		if err != nil {
			return nil, lookupErr(err, "member")
		}
		return m, nil
	}
	m, err := c.Client.FindMember(ctx, c.GuildID, raw)
	if err != nil {
		return nil, lookupErr(err, "member")
	}
	return m, nil
}}

var Channel = Converter{Name: "channel", convert: func(ctx context.Context, c *Context, raw string) (any, error) {
	id, ok := extractID(channelMention, raw)
	if !ok {
		return nil, reason("expected a channel mention or ID")
	}
	ch, err := c.Client.FetchChannel(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "channel")
	}
	return ch, nil
}}

var Role = Converter{Name: "role", convert: func(ctx context.Context, c *Context, raw string) (any, error) {
	if c.GuildID == 0 {
		return nil, reason("roles can only be looked up in a server")
	}
	id, ok := extractID(roleMention, raw)
	if !ok {
		return nil, reason("expected a role mention or ID")
	}
	r, err := c.Client.FetchRole(ctx, c.GuildID, id)
	if err != nil {
		return nil, lookupErr(err, "role")
	}
	return r, nil
}}

// MaxColour is the largest RGB value
const MaxColour = 0xFFFFFF

// Colour accepts #RRGGBB, 0xRRGGBB or a decimal integer
var Colour = Converter{Name: "colour", convert: func(_ context.Context, _ *Context, raw string) (any, error) {
	n, ok := ParseColour(raw)
	if !ok {
		return nil, reason("expected a colour like #ff8800")
	}
	return n, nil
}}

// ParseColour parses the forms accepted by the Colour converter
func ParseColour(raw string) (int, bool) {
	var (
		n   int64
		err error
	)
	switch {
	case strings.HasPrefix(raw, "#"):
		if len(raw) != 7 {
			return 0, false
		}
		n, err = strconv.ParseInt(raw[1:], 16, 32)
	case strings.HasPrefix(strings.ToLower(raw), "0x"):
		if len(raw) < 3 || len(raw) > 8 {
			return 0, false
		}
		n, err = strconv.ParseInt(raw[2:], 16, 32)
	default:
		n, err = strconv.ParseInt(raw, 10, 32)
	}
	if err != nil || n < 0 || n > MaxColour {
		return 0, false
	}
	return int(n), true
}
