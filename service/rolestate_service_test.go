package service

import (
	"context"
	"testing"

	"github.com/Fuyukai/Jokusoramame-sub000/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRolestateService_Snapshot(t *testing.T) {
	ctx := context.Background()
	guildRepo := new(MockGuildRepository)
	repo := new(MockRolestateRepository)

	guildRepo.On("EnsureGuild", ctx, int64(1)).Return(&models.Guild{ID: 1}, nil)
	repo.On("Save", ctx, mock.MatchedBy(func(s *models.Rolestate) bool {
		return s.Nick != nil && *s.Nick == "jokusoramame" && len(s.RoleIDs) == 2
	})).Return(nil)

	require.NoError(t, NewRolestateService(guildRepo, repo).Snapshot(ctx, 1, 2, []int64{10, 11}, "jokusoramame"))
	repo.AssertExpectations(t)
}

func TestRolestateService_Restore(t *testing.T) {
	ctx := context.Background()

	t.Run("no snapshot", func(t *testing.T) {
		repo := new(MockRolestateRepository)
		repo.On("Get", ctx, int64(1), int64(2)).Return(nil, nil)

		state, err := NewRolestateService(new(MockGuildRepository), repo).Restore(ctx, 1, 2)
		require.NoError(t, err)
		assert.Nil(t, state)
		repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("snapshot consumed", func(t *testing.T) {
		repo := new(MockRolestateRepository)
		saved := &models.Rolestate{GuildID: 1, UserID: 2, RoleIDs: []int64{10}}
		repo.On("Get", ctx, int64(1), int64(2)).Return(saved, nil)
		repo.On("Delete", ctx, int64(1), int64(2)).Return(nil)

		state, err := NewRolestateService(new(MockGuildRepository), repo).Restore(ctx, 1, 2)
		require.NoError(t, err)
		assert.Equal(t, saved, state)
		repo.AssertExpectations(t)
	})
}
