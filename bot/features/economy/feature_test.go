package economy

import (
	"context"
	"testing"
	"time"

	"github.com/Fuyukai/Jokusoramame-sub000/bot/features/featuretest"
	"github.com/Fuyukai/Jokusoramame-sub000/events"
	"github.com/Fuyukai/Jokusoramame-sub000/gateway"
	"github.com/Fuyukai/Jokusoramame-sub000/models"
	"github.com/Fuyukai/Jokusoramame-sub000/plugin"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const user = featuretest.UserID

func newHarness(t *testing.T) (*featuretest.Harness, *Feature) {
	t.Helper()
	var feature *Feature
	h := featuretest.New(t, plugin.Catalog{
		"economy": func(env *plugin.Env) (*plugin.Manifest, error) {
			feature = New(env)
			return feature.Manifest(), nil
		},
	})
	h.Load("economy")
	return h, feature
}

func TestEconomy_Money(t *testing.T) {
	h, _ := newHarness(t)
	h.UoW.Users.On("Ensure", mock.Anything, user).Return(&models.User{ID: user, Money: 12345}, nil)

	h.Send(user, "j!money")
	assert.Equal(t, "You have **§12,345**.", h.LastContent())
}

func TestEconomy_MoneyOfOther(t *testing.T) {
	h, _ := newHarness(t)
	h.Client.Users[77] = &gateway.User{ID: 77, Username: "bob"}
	h.Client.Users[78] = &gateway.User{ID: 78, Username: "robot", Bot: true}
	h.UoW.Users.On("Ensure", mock.Anything, int64(77)).Return(&models.User{ID: 77, Money: 200}, nil)

	h.Send(user, "j!bal <@77>")
	assert.Equal(t, "bob has **§200**.", h.LastContent())

	h.Send(user, "j!bal <@78>")
	assert.Equal(t, "❌ bots don't have money", h.LastContent())
}

func TestEconomy_Daily(t *testing.T) {
	h, _ := newHarness(t)
	h.UoW.Users.On("Ensure", mock.Anything, user).Return(&models.User{ID: user, Money: 200}, nil)
	h.UoW.Users.On("AddMoney", mock.Anything, user, DailyReward).Return(int64(700), nil).Once()

	h.Send(user, "j!daily")
	assert.Equal(t, "✅ You claimed **§500**. You now have **§700**.", h.LastContent())

	h.Send(user, "j!daily")
	assert.Contains(t, h.LastContent(), "❌ you already claimed today. Try again in 2")
	h.UoW.Users.AssertNumberOfCalls(t, "AddMoney", 1)

	h.Redis.FastForward(24*time.Hour + time.Second)
	h.UoW.Users.On("AddMoney", mock.Anything, user, DailyReward).Return(int64(1200), nil).Once()
	h.Send(user, "j!daily")
	assert.Equal(t, "✅ You claimed **§500**. You now have **§1,200**.", h.LastContent())
}

func TestEconomy_Decay(t *testing.T) {
	h, f := newHarness(t)

	h.UoW.Users.On("ListDecayable", mock.Anything).Return([]*models.User{
		{ID: 1, Money: 10000},
		{ID: 2, Money: -500},
	}, nil)
	// 10000 * e^-0.05 = 9512.29 -> 9513; -500 * e^-0.05 = -475.6 -> -475
	h.UoW.Users.On("SetMoney", mock.Anything, int64(1), int64(9513)).Return(nil).Once()
	h.UoW.Users.On("SetMoney", mock.Anything, int64(2), int64(-475)).Return(nil).Once()
	h.UoW.Bus.On("Publish", events.DecayAppliedEvent{UsersAffected: 2, TotalDelta: -487 + 25}).Return(nil).Once()

	require.NoError(t, f.runDecay(context.Background()))

	h.UoW.Users.AssertExpectations(t)
	h.UoW.Bus.AssertExpectations(t)
	h.UoW.AssertCalled(t, "Commit")
}
