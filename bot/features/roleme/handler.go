package roleme

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/Fuyukai/Jokusoramame-sub000/bot/common"
	"github.com/Fuyukai/Jokusoramame-sub000/commands"
	"github.com/Fuyukai/Jokusoramame-sub000/gateway"
	"github.com/Fuyukai/Jokusoramame-sub000/models"
	"github.com/Fuyukai/Jokusoramame-sub000/service"

	log "github.com/sirupsen/logrus"
)

func (f *Feature) handleToggle(ctx context.Context, c *commands.Context) error {
	if !c.Has("role") {
		return f.list(ctx, c)
	}
	role := c.Role("role")

	var entry *models.RolemeRole
	err := common.WithUnitOfWork(ctx, f.env.UoW, func(uow service.UnitOfWork) error {
		roles := service.NewRolemeService(uow.GuildRepository(), uow.RolemeRepository())
		var err error
		entry, err = roles.Assignable(ctx, c.GuildID, role.ID)
		return err
	})
	if err != nil {
		return err
	}
	if entry == nil {
		return commands.Errorf("**%s** is not self-assignable", role.Name)
	}

	member, err := c.Client.FetchMember(ctx, c.GuildID, c.AuthorID)
	if err != nil {
		return fmt.Errorf("failed to fetch member: %w", err)
	}
	if slices.Contains(member.RoleIDs, role.ID) {
		if err := c.Client.RemoveRole(ctx, c.GuildID, c.AuthorID, role.ID); err != nil {
			return fmt.Errorf("failed to remove role: %w", err)
		}
		return c.Reply(ctx, common.SuccessText("Removed **%s**.", role.Name))
	}

	if entry.IsColour {
		if err := f.dropColours(ctx, c, member, role.ID); err != nil {
			return err
		}
	}
	if err := c.Client.AddRole(ctx, c.GuildID, c.AuthorID, role.ID); err != nil {
		return fmt.Errorf("failed to add role: %w", err)
	}
	return c.Reply(ctx, common.SuccessText("You now have **%s**.", role.Name))
}

func (f *Feature) list(ctx context.Context, c *commands.Context) error {
	var entries []*models.RolemeRole
	err := common.WithUnitOfWork(ctx, f.env.UoW, func(uow service.UnitOfWork) error {
		var err error
		entries, err = uow.RolemeRepository().ListByGuild(ctx, c.GuildID)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to list roleme roles: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.SelfAssignable {
			continue
		}
		role, err := c.Client.FetchRole(ctx, c.GuildID, e.RoleID)
		if err != nil {
			continue
		}
		name := role.Name
		if e.IsColour {
			name += fmt.Sprintf(" (#%06x)", role.Colour)
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return c.Reply(ctx, "There are no self-assignable roles here.")
	}
	slices.Sort(names)
	return c.Replyf(ctx, "Self-assignable roles: %s", strings.Join(names, ", "))
}

func (f *Feature) register(ctx context.Context, c *commands.Context, roleID int64, selfAssignable, isColour bool) error {
	return common.WithUnitOfWork(ctx, f.env.UoW, func(uow service.UnitOfWork) error {
		roles := service.NewRolemeService(uow.GuildRepository(), uow.RolemeRepository())
		return roles.Register(ctx, c.GuildID, roleID, selfAssignable, isColour)
	})
}

func (f *Feature) handleAdd(ctx context.Context, c *commands.Context) error {
	role := c.Role("role")
	if err := f.register(ctx, c, role.ID, true, false); err != nil {
		return err
	}
	return c.Reply(ctx, common.SuccessText("**%s** is now self-assignable.", role.Name))
}

func (f *Feature) handleRemove(ctx context.Context, c *commands.Context) error {
	role := c.Role("role")
	err := common.WithUnitOfWork(ctx, f.env.UoW, func(uow service.UnitOfWork) error {
		return uow.RolemeRepository().Delete(ctx, role.ID)
	})
	if err != nil {
		return fmt.Errorf("failed to delete roleme role: %w", err)
	}
	return c.Reply(ctx, common.SuccessText("**%s** is no longer self-assignable.", role.Name))
}

func (f *Feature) handleColour(ctx context.Context, c *commands.Context) error {
	colour := c.Colour("colour")
	raw, _ := c.Flags.GetString("role")
	if raw != "" {
		return f.registerColour(ctx, c, raw, colour)
	}

	var entries []*models.RolemeRole
	err := common.WithUnitOfWork(ctx, f.env.UoW, func(uow service.UnitOfWork) error {
		roles := service.NewRolemeService(uow.GuildRepository(), uow.RolemeRepository())
		var err error
		entries, err = roles.ColourRoles(ctx, c.GuildID)
		return err
	})
	if err != nil {
		return err
	}

	var target *gateway.Role
	for _, e := range entries {
		if !e.SelfAssignable {
			continue
		}
		role, err := c.Client.FetchRole(ctx, c.GuildID, e.RoleID)
		if err != nil {
			continue
		}
		if role.Colour == colour {
			target = role
			break
		}
	}
	if target == nil {
		return commands.Errorf("there is no colour role with colour #%06x", colour)
	}

	member, err := c.Client.FetchMember(ctx, c.GuildID, c.AuthorID)
	if err != nil {
		return fmt.Errorf("failed to fetch member: %w", err)
	}
	if err := f.dropColours(ctx, c, member, target.ID); err != nil {
		return err
	}
	if !slices.Contains(member.RoleIDs, target.ID) {
		if err := c.Client.AddRole(ctx, c.GuildID, c.AuthorID, target.ID); err != nil {
			return fmt.Errorf("failed to add role: %w", err)
		}
	}
	return c.Reply(ctx, common.SuccessText("Your colour is now **%s**.", target.Name))
}

// registerColour needs the same rights as roleme add
func (f *Feature) registerColour(ctx context.Context, c *commands.Context, raw string, colour int) error {
	if !c.Privileged() {
		return commands.Errorf("registering colour roles needs a mod prefix")
	}
	if err := commands.RequireAnyPermission(gateway.PermissionManageRoles)(ctx, c); err != nil {
		return err
	}

	value, err := commands.Role.Convert(ctx, c, raw)
	if err != nil {
		return &commands.ConversionError{Param: "role", Reason: err.Error()}
	}
	role := value.(*gateway.Role)
	if role.Colour != colour {
		return commands.Errorf("**%s** has colour #%06x, not #%06x", role.Name, role.Colour, colour)
	}

	selfAssignable, _ := c.Flags.GetBool("self-assignable")
	if err := f.register(ctx, c, role.ID, selfAssignable, true); err != nil {
		return err
	}
	return c.Reply(ctx, common.SuccessText("**%s** is now a colour role.", role.Name))
}

// dropColours removes every other registered colour role the member holds
func (f *Feature) dropColours(ctx context.Context, c *commands.Context, member *gateway.Member, keep int64) error {
	var entries []*models.RolemeRole
	err := common.WithUnitOfWork(ctx, f.env.UoW, func(uow service.UnitOfWork) error {
		roles := service.NewRolemeService(uow.GuildRepository(), uow.RolemeRepository())
		var err error
		entries, err = roles.ColourRoles(ctx, c.GuildID)
		return err
	})
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.RoleID == keep || !slices.Contains(member.RoleIDs, e.RoleID) {
			continue
		}
		if err := c.Client.RemoveRole(ctx, c.GuildID, member.User.ID, e.RoleID); err != nil {
			log.WithFields(log.Fields{"guild": c.GuildID, "role": e.RoleID}).WithError(err).Warn("Failed to remove colour role")
		}
	}
	return nil
}
