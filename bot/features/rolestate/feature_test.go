package rolestate

import (
	"errors"
	"testing"

	"github.com/Fuyukai/Jokusoramame-sub000/bot/features/featuretest"
	"github.com/Fuyukai/Jokusoramame-sub000/gateway"
	"github.com/Fuyukai/Jokusoramame-sub000/models"
	"github.com/Fuyukai/Jokusoramame-sub000/plugin"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

const (
	guild = featuretest.GuildID
	user  = featuretest.UserID
)

func newHarness(t *testing.T) *featuretest.Harness {
	t.Helper()
	h := featuretest.New(t, plugin.Catalog{"rolestate": Factory})
	h.Load("rolestate")
	return h
}

func memberEvent(kind gateway.Kind, roles []int64, nick string) gateway.Event {
	return gateway.Event{
		Kind: kind,
		Member: &gateway.Member{
			GuildID: guild,
			User:    gateway.User{ID: user, Username: "alice"},
			Nick:    nick,
			RoleIDs: roles,
		},
	}
}

func TestRolestate_SnapshotOnLeave(t *testing.T) {
	h := newHarness(t)
	h.UoW.Settings.On("Get", mock.Anything, guild, models.SettingRolestate).Return(nil, nil)
	h.UoW.Guilds.On("EnsureGuild", mock.Anything, guild).Return(&models.Guild{ID: guild}, nil)
	nick := "ally"
	h.UoW.Rolestates.On("Save", mock.Anything, &models.Rolestate{
		GuildID: guild,
		UserID:  user,
		RoleIDs: []int64{100, 101},
		Nick:    &nick,
	}).Return(nil).Once()

	h.Dispatch(memberEvent(gateway.KindMemberRemove, []int64{guild, 100, 101}, "ally"))

	h.UoW.Rolestates.AssertExpectations(t)
}

func TestRolestate_Disabled(t *testing.T) {
	h := newHarness(t)
	h.UoW.Settings.On("Get", mock.Anything, guild, models.SettingRolestate).Return([]byte("false"), nil)

	h.Dispatch(memberEvent(gateway.KindMemberRemove, []int64{100}, ""))
	h.Dispatch(memberEvent(gateway.KindMemberJoin, nil, ""))

	h.UoW.Rolestates.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	h.UoW.Rolestates.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
}

func TestRolestate_RestoreOnJoin(t *testing.T) {
	h := newHarness(t)
	h.Client.Roles[100] = &gateway.Role{ID: 100, GuildID: guild, Name: "regular"}
	h.Client.Roles[101] = &gateway.Role{ID: 101, GuildID: guild, Name: "artist"}
	nick := "ally"
	h.UoW.Settings.On("Get", mock.Anything, guild, models.SettingRolestate).Return(nil, nil)
	h.UoW.Rolestates.On("Get", mock.Anything, guild, user).Return(&models.Rolestate{
		GuildID: guild,
		UserID:  user,
		RoleIDs: []int64{100, 101, 102},
		Nick:    &nick,
	}, nil)
	h.UoW.Rolestates.On("Delete", mock.Anything, guild, user).Return(nil).Once()

	h.Dispatch(memberEvent(gateway.KindMemberJoin, nil, ""))

	// 102 was deleted while the member was away
	assert.Equal(t, []int64{100, 101}, h.Client.AddedRoles(user))
	assert.Equal(t, "ally", h.Client.Nick(user))
	h.UoW.Rolestates.AssertExpectations(t)
}

func TestRolestate_NothingToRestore(t *testing.T) {
	h := newHarness(t)
	h.UoW.Settings.On("Get", mock.Anything, guild, models.SettingRolestate).Return(nil, nil)
	h.UoW.Rolestates.On("Get", mock.Anything, guild, user).Return(nil, nil)

	h.Dispatch(memberEvent(gateway.KindMemberJoin, nil, ""))

	assert.Empty(t, h.Client.AddedRoles(user))
	h.UoW.Rolestates.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

func TestRolestate_IgnoresBots(t *testing.T) {
	h := newHarness(t)
	ev := memberEvent(gateway.KindMemberRemove, []int64{100}, "")
	ev.Member.User.Bot = true

	h.Dispatch(ev)

	h.UoW.Settings.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
}

func TestRolestate_StorageErrorIsIsolated(t *testing.T) {
	h := newHarness(t)
	h.UoW.Settings.On("Get", mock.Anything, guild, models.SettingRolestate).Return(nil, errors.New("db down"))

	// the dispatcher logs handler errors; nothing reaches the channel
	h.Dispatch(memberEvent(gateway.KindMemberRemove, []int64{100}, ""))
	assert.Empty(t, h.Client.Sent())
}
