package rolestate

import (
	"context"
	"errors"
	"fmt"

	"github.com/Fuyukai/Jokusoramame-sub000/bot/common"
	"github.com/Fuyukai/Jokusoramame-sub000/gateway"
	"github.com/Fuyukai/Jokusoramame-sub000/models"
	"github.com/Fuyukai/Jokusoramame-sub000/plugin"
	"github.com/Fuyukai/Jokusoramame-sub000/service"

	log "github.com/sirupsen/logrus"
)

// Feature gives rejoining members back the roles and nickname they left with
type Feature struct {
	env *plugin.Env
}

func New(env *plugin.Env) *Feature {
	return &Feature{env: env}
}

func Factory(env *plugin.Env) (*plugin.Manifest, error) {
	return New(env).Manifest(), nil
}

func (f *Feature) Manifest() *plugin.Manifest {
	return &plugin.Manifest{
		Name: "rolestate",
		Events: []plugin.EventHandler{
			{Name: "snapshot", Kind: gateway.KindMemberRemove, Fn: f.handleRemove},
			{Name: "restore", Kind: gateway.KindMemberJoin, Fn: f.handleJoin},
		},
	}
}

func (f *Feature) enabled(ctx context.Context, uow service.UnitOfWork, guildID int64) (bool, error) {
	settings := service.NewSettingsService(uow.GuildRepository(), uow.SettingRepository())
	return settings.GetBool(ctx, guildID, models.SettingRolestate, true)
}

func (f *Feature) handleRemove(ctx context.Context, ev gateway.Event) error {
	m := ev.Member
	if m == nil || m.User.Bot {
		return nil
	}

	// the @everyone role shares the guild's id and is never stored
	roles := make([]int64, 0, len(m.RoleIDs))
	for _, id := range m.RoleIDs {
		if id != m.GuildID {
			roles = append(roles, id)
		}
	}

	return common.WithUnitOfWork(ctx, f.env.UoW, func(uow service.UnitOfWork) error {
		on, err := f.enabled(ctx, uow, m.GuildID)
		if err != nil || !on {
			return err
		}
		states := service.NewRolestateService(uow.GuildRepository(), uow.RolestateRepository())
		return states.Snapshot(ctx, m.GuildID, m.User.ID, roles, m.Nick)
	})
}

func (f *Feature) handleJoin(ctx context.Context, ev gateway.Event) error {
	m := ev.Member
	if m == nil || m.User.Bot {
		return nil
	}

	var state *models.Rolestate
	err := common.WithUnitOfWork(ctx, f.env.UoW, func(uow service.UnitOfWork) error {
		on, err := f.enabled(ctx, uow, m.GuildID)
		if err != nil || !on {
			return err
		}
		states := service.NewRolestateService(uow.GuildRepository(), uow.RolestateRepository())
		state, err = states.Restore(ctx, m.GuildID, m.User.ID)
		return err
	})
	if err != nil || state == nil {
		return err
	}

	logger := log.WithFields(log.Fields{"guild": m.GuildID, "user": m.User.ID})

	var failed []error
	restored := 0
	for _, roleID := range state.RoleIDs {
		if _, err := f.env.Client.FetchRole(ctx, m.GuildID, roleID); errors.Is(err, gateway.ErrNotFound) {
			logger.WithField("role", roleID).Debug("Skipping deleted role")
			continue
		}
		if err := f.env.Client.AddRole(ctx, m.GuildID, m.User.ID, roleID); err != nil {
			failed = append(failed, fmt.Errorf("role %d: %w", roleID, err))
			continue
		}
		restored++
	}

	if state.Nick != nil && *state.Nick != "" {
		if err := f.env.Client.SetNickname(ctx, m.GuildID, m.User.ID, *state.Nick); err != nil {
			failed = append(failed, fmt.Errorf("nickname: %w", err))
		}
	}

	logger.WithField("roles", restored).Info("Restored member state")
	if len(failed) > 0 {
		return fmt.Errorf("failed to restore member state: %w", errors.Join(failed...))
	}
	return nil
}
