package commands

import (
	"context"
	"fmt"

	"github.com/Fuyukai/Jokusoramame-sub000/gateway"
)

// OwnerOnly passes for configured bot owners
func OwnerOnly() Check {
	return func(_ context.Context, c *Context) error {
		if !c.IsOwner() {
			return &CheckFailure{Reason: "this command is owner-only"}
		}
		return nil
	}
}

// GuildOnly fails in direct messages
func GuildOnly() Check {
	return func(_ context.Context, c *Context) error {
		if c.GuildID == 0 {
			return &CheckFailure{Reason: "this command can only be used in a server"}
		}
		return nil
	}
}

// RequireAnyPermission passes when the author holds at least one of perms in
// the channel. Administrators always pass.
func RequireAnyPermission(perms ...int64) Check {
	return func(ctx context.Context, c *Context) error {
		if c.GuildID == 0 {
			return &CheckFailure{Reason: "this command can only be used in a server"}
		}

		have, err := c.Client.Permissions(ctx, c.GuildID, c.ChannelID, c.AuthorID)
		if err != nil {
			return fmt.Errorf("failed to resolve permissions: %w", err)
		}
		if have&gateway.PermissionAdministrator != 0 {
			return nil
		}
		for _, p := range perms {
			if have&p != 0 {
				return nil
			}
		}
		return &CheckFailure{Reason: "you do not have permission to do that"}
	}
}

// modCheck enforces the privileged prefix on mod commands
func modCheck(_ context.Context, c *Context) error {
	if c.Command.requiresMod() && !c.Privileged() {
		return &CheckFailure{Reason: silentCheck}
	}
	return nil
}
