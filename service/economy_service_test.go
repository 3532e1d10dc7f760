package service

import (
	"context"
	"testing"

	"github.com/Fuyukai/Jokusoramame-sub000/events"
	"github.com/Fuyukai/Jokusoramame-sub000/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecay(t *testing.T) {
	tests := []struct {
		name     string
		money    int64
		expected int64
	}{
		{"negative moves towards zero", -1000, -951},
		{"zero is exempt", 0, 0},
		{"bracket top is exempt", 1343, 1343},
		{"inside bracket", 500, 500},
		{"just above bracket", 1344, 1279},
		{"large balance", 100000, 95123},
		{"minus one", -1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Decay(tt.money, 1))
		})
	}
}

func TestEconomyService_ApplyDecay(t *testing.T) {
	ctx := context.Background()
	userRepo := new(MockUserRepository)
	publisher := new(MockEventPublisher)

	userRepo.On("ListDecayable", ctx).Return([]*models.User{
		{ID: 1, Money: -1000},
		{ID: 2, Money: 100000},
	}, nil)
	userRepo.On("SetMoney", ctx, int64(1), int64(-951)).Return(nil)
	userRepo.On("SetMoney", ctx, int64(2), int64(95123)).Return(nil)
	publisher.On("Publish", events.DecayAppliedEvent{UsersAffected: 2, TotalDelta: 49 - 4877}).Return(nil)

	svc := NewEconomyService(userRepo, publisher)
	result, err := svc.ApplyDecay(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, 2, result.UsersAffected)
	assert.Equal(t, int64(49-4877), result.TotalDelta)
	userRepo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestEconomyService_Credit(t *testing.T) {
	ctx := context.Background()
	userRepo := new(MockUserRepository)

	userRepo.On("Ensure", ctx, int64(7)).Return(&models.User{ID: 7, Money: models.StartingMoney}, nil)
	userRepo.On("AddMoney", ctx, int64(7), int64(500)).Return(int64(700), nil)

	svc := NewEconomyService(userRepo, new(MockEventPublisher))
	balance, err := svc.Credit(ctx, 7, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(700), balance)
}
