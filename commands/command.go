package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// HandlerFunc runs a resolved command
type HandlerFunc func(ctx context.Context, c *Context) error

// Check gates a command. Failures should be *CheckFailure.
type Check func(ctx context.Context, c *Context) error

// Scope selects what a cooldown is keyed on
type Scope int

const (
	ScopeNone Scope = iota
	ScopeUser
	ScopeGlobal
	ScopeChannel
)

func (s Scope) String() string {
	switch s {
	case ScopeUser:
		return "user"
	case ScopeGlobal:
		return "global"
	case ScopeChannel:
		return "channel"
	}
	return "none"
}

// Cooldown limits invocations to Limit per Window within the scope
type Cooldown struct {
	Scope  Scope
	Limit  int
	Window time.Duration
}

// Param describes one positional argument
type Param struct {
	Name      string
	Converter Converter
	Optional  bool
	Default   any
	// Rest consumes the remainder of the input verbatim
	Rest bool
}

// Command is a declarative command record. Plugins build these directly.
type Command struct {
	Name    string
	Aliases []string
	Help    string
	Params  []Param
	Checks  []Check

	// Mod commands only run under a privileged prefix
	Mod      bool
	Cooldown *Cooldown

	// Flags switches argument binding to argparse style
	Flags func(fs *pflag.FlagSet)

	Subcommands []*Command
	Handler     HandlerFunc

	// Plugin is filled in by the registry
	Plugin string
	parent *Command
}

// QualifiedName includes parent group names, e.g. "stock create"
func (c *Command) QualifiedName() string {
	if c.parent == nil {
		return c.Name
	}
	return c.parent.QualifiedName() + " " + c.Name
}

// Usage renders a short signature for help output
func (c *Command) Usage() string {
	var b strings.Builder
	b.WriteString(c.QualifiedName())
	for _, p := range c.Params {
		switch {
		case p.Rest:
			fmt.Fprintf(&b, " <%s...>", p.Name)
		case p.Optional:
			fmt.Fprintf(&b, " [%s]", p.Name)
		default:
			fmt.Fprintf(&b, " <%s>", p.Name)
		}
	}
	return b.String()
}

func (c *Command) matches(name string) bool {
	if strings.EqualFold(c.Name, name) {
		return true
	}
	for _, a := range c.Aliases {
		if strings.EqualFold(a, name) {
			return true
		}
	}
	return false
}

// requiresMod is true if this command or any enclosing group is a mod command
func (c *Command) requiresMod() bool {
	for cur := c; cur != nil; cur = cur.parent {
		if cur.Mod {
			return true
		}
	}
	return false
}

// Sub returns the sub-command called name, or nil
func (c *Command) Sub(name string) *Command {
	for _, s := range c.Subcommands {
		if s.matches(name) {
			return s
		}
	}
	return nil
}

func (c *Command) link(plugin string) {
	c.Plugin = plugin
	for _, s := range c.Subcommands {
		s.parent = c
		s.link(plugin)
	}
}

// Set is an immutable lookup table of top-level commands
type Set struct {
	byName map[string]*Command
	list   []*Command
}

// NewSet indexes commands by lower-cased name and alias. Duplicates are an error.
func NewSet(cmds []*Command) (*Set, error) {
	s := &Set{byName: make(map[string]*Command, len(cmds))}
	for _, cmd := range cmds {
		for _, name := range append([]string{cmd.Name}, cmd.Aliases...) {
			key := strings.ToLower(name)
			if prev, ok := s.byName[key]; ok {
				return nil, fmt.Errorf("command name %q registered by both %s and %s", name, prev.Plugin, cmd.Plugin)
			}
			s.byName[key] = cmd
		}
		s.list = append(s.list, cmd)
	}
	return s, nil
}

// Lookup is case-insensitive
func (s *Set) Lookup(name string) *Command {
	if s == nil {
		return nil
	}
	return s.byName[strings.ToLower(name)]
}

// Commands returns the top-level commands in registration order
func (s *Set) Commands() []*Command {
	if s == nil {
		return nil
	}
	return s.list
}

// Link sets the owning plugin on a tree of commands
func Link(plugin string, cmds []*Command) {
	for _, c := range cmds {
		c.link(plugin)
	}
}
