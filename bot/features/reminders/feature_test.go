package reminders

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Fuyukai/Jokusoramame-sub000/bot/features/featuretest"
	"github.com/Fuyukai/Jokusoramame-sub000/events"
	"github.com/Fuyukai/Jokusoramame-sub000/models"
	"github.com/Fuyukai/Jokusoramame-sub000/plugin"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const user = featuretest.UserID

// loaded returns a harness with the plugin loaded. The startup scan finds nothing.
func loaded(t *testing.T) (*featuretest.Harness, *Feature) {
	t.Helper()
	var feature *Feature
	h := featuretest.New(t, plugin.Catalog{
		"reminders": func(env *plugin.Env) (*plugin.Manifest, error) {
			feature = New(env)
			return feature.Manifest(), nil
		},
	})
	h.UoW.Reminders.On("ListDue", mock.Anything, mock.Anything).Return([]*models.Reminder{}, nil).Maybe()
	h.Load("reminders")
	return h, feature
}

// standalone returns a feature that is not loaded, so no worker competes with the test
func standalone(t *testing.T) (*featuretest.Harness, *Feature) {
	t.Helper()
	h := featuretest.New(t, plugin.Catalog{})
	f := New(h.Env)
	t.Cleanup(func() { _ = f.release() })
	return h, f
}

func delivered(h *featuretest.Harness) []string {
	var out []string
	for _, c := range h.Client.Contents() {
		if strings.Contains(c, "you asked me to remind you") {
			out = append(out, c)
		}
	}
	return out
}

func TestRemind_Schedules(t *testing.T) {
	h, _ := loaded(t)
	h.UoW.Reminders.On("Create", mock.Anything, mock.MatchedBy(func(r *models.Reminder) bool {
		return r.UserID == user && r.ChannelID == featuretest.ChannelID && r.Text == "take out the bins" && r.Enabled
	})).Return(nil).Once()

	h.Send(user, "j!remind 3600 take out the bins")

	assert.True(t, strings.HasPrefix(h.LastContent(), "✅ I'll remind you <t:"), h.LastContent())
	h.UoW.Reminders.AssertExpectations(t)
}

func TestRemind_Validation(t *testing.T) {
	h, _ := loaded(t)

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"zero delay", "j!remind 0 tea", "❌ the delay must be a positive number of seconds"},
		{"negative delay", "j!remind -5 tea", "❌ the delay must be a positive number of seconds"},
		{"too far", "j!remind 99999999999 tea", "❌ reminders can be at most a year away"},
		{"not a number", "j!remind soon tea", "❌ Invalid value for `seconds`: expected a whole number"},
		{"too long", "j!remind 60 " + strings.Repeat("a", 1501), "❌ reminders are limited to 1500 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.Send(user, tt.content)
			assert.Equal(t, tt.want, h.LastContent())
		})
	}
	h.UoW.Reminders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRemind_ShortDelayFiresWithoutScan(t *testing.T) {
	h, _ := loaded(t)
	h.UoW.Reminders.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		args.Get(1).(*models.Reminder).ID = 9
	}).Return(nil).Once()
	h.UoW.Reminders.On("Disable", mock.Anything, int64(9)).Return(true, nil).Once()
	h.UoW.Bus.On("Publish", mock.Anything).Return(nil)

	h.Send(user, "j!remind 1 tea")

	assert.Eventually(t, func() bool { return len(delivered(h)) == 1 }, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, "⏰ <@42>, you asked me to remind you: tea", delivered(h)[0])
}

func TestRemind_List(t *testing.T) {
	h, _ := loaded(t)
	h.UoW.Reminders.On("ListByUser", mock.Anything, user).Return([]*models.Reminder{}, nil).Once()
	h.Send(user, "j!reminders")
	assert.Equal(t, "You have no pending reminders.", h.LastContent())

	at := time.Unix(1700000000, 0)
	h.UoW.Reminders.On("ListByUser", mock.Anything, user).Return([]*models.Reminder{
		{ID: 1, UserID: user, ChannelID: 10, RemindingAt: at, Text: "feed the cat"},
	}, nil).Once()
	h.Send(user, "j!reminders")
	assert.Equal(t, "<t:1700000000:R> in <#10>: feed the cat", h.LastContent())
}

func TestScan_FiresDueReminder(t *testing.T) {
	h, f := standalone(t)
	due := &models.Reminder{ID: 3, UserID: user, ChannelID: featuretest.ChannelID, RemindingAt: time.Now().Add(-time.Second), Text: "stretch", Enabled: true}
	h.UoW.Reminders.On("ListDue", mock.Anything, mock.Anything).Return([]*models.Reminder{due}, nil)
	h.UoW.Reminders.On("Disable", mock.Anything, int64(3)).Return(true, nil).Once()
	h.UoW.Bus.On("Publish", events.ReminderFiredEvent{ReminderID: 3, UserID: user, ChannelID: featuretest.ChannelID, Delivered: true}).Return(nil).Once()

	require.NoError(t, f.scan(context.Background()))
	f.wg.Wait()

	assert.Equal(t, []string{"⏰ <@42>, you asked me to remind you: stretch"}, delivered(h))
	h.UoW.Bus.AssertExpectations(t)
}

func TestScan_LooksAheadOneInterval(t *testing.T) {
	h, f := standalone(t)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return now }
	h.UoW.Reminders.On("ListDue", mock.Anything, now.Add(ScanInterval)).Return([]*models.Reminder{}, nil).Once()

	require.NoError(t, f.scan(context.Background()))
	h.UoW.Reminders.AssertExpectations(t)
}

func TestScan_OverlappingScansFireOnce(t *testing.T) {
	h, first := standalone(t)
	second := New(h.Env)
	t.Cleanup(func() { _ = second.release() })

	due := &models.Reminder{ID: 4, UserID: user, ChannelID: featuretest.ChannelID, RemindingAt: time.Now().Add(50 * time.Millisecond), Text: "meeting", Enabled: true}
	h.UoW.Reminders.On("ListDue", mock.Anything, mock.Anything).Return([]*models.Reminder{due}, nil)
	h.UoW.Reminders.On("Disable", mock.Anything, int64(4)).Return(true, nil).Once()
	h.UoW.Reminders.On("Disable", mock.Anything, int64(4)).Return(false, nil)
	h.UoW.Bus.On("Publish", mock.Anything).Return(nil).Once()

	// the same feature scanning twice arms a single sleeper
	require.NoError(t, first.scan(context.Background()))
	require.NoError(t, first.scan(context.Background()))
	first.mu.Lock()
	assert.Len(t, first.pending, 1)
	first.mu.Unlock()

	// a second scheduler races for the same reminder
	require.NoError(t, second.scan(context.Background()))

	first.wg.Wait()
	second.wg.Wait()

	assert.Len(t, delivered(h), 1)
	h.UoW.Reminders.AssertNumberOfCalls(t, "Disable", 2)
	h.UoW.Bus.AssertNumberOfCalls(t, "Publish", 1)
}

func TestScan_MissingChannelCancels(t *testing.T) {
	h, f := standalone(t)
	due := &models.Reminder{ID: 5, UserID: user, ChannelID: 999, RemindingAt: time.Now().Add(-time.Minute), Text: "gone", Enabled: true}
	h.UoW.Reminders.On("ListDue", mock.Anything, mock.Anything).Return([]*models.Reminder{due}, nil)
	h.UoW.Reminders.On("Disable", mock.Anything, int64(5)).Return(true, nil).Once()
	h.UoW.Bus.On("Publish", events.ReminderFiredEvent{ReminderID: 5, UserID: user, ChannelID: 999, Delivered: false}).Return(nil).Once()

	require.NoError(t, f.scan(context.Background()))
	f.wg.Wait()

	assert.Empty(t, h.Client.Sent())
	h.UoW.Reminders.AssertExpectations(t)
	h.UoW.Bus.AssertExpectations(t)
}

func TestScan_UnreachableChannelIsStillClaimed(t *testing.T) {
	h, f := standalone(t)
	forbidden := errors.New("HTTP 403 Forbidden, Missing Access")
	h.Client.ChannelErr = forbidden
	h.Client.SendErr = forbidden

	due := &models.Reminder{ID: 7, UserID: user, ChannelID: featuretest.ChannelID, RemindingAt: time.Now().Add(-time.Minute), Text: "locked out", Enabled: true}
	h.UoW.Reminders.On("ListDue", mock.Anything, mock.Anything).Return([]*models.Reminder{due}, nil)
	h.UoW.Reminders.On("Disable", mock.Anything, int64(7)).Return(true, nil).Once()
	h.UoW.Reminders.On("Disable", mock.Anything, int64(7)).Return(false, nil)
	h.UoW.Bus.On("Publish", events.ReminderFiredEvent{ReminderID: 7, UserID: user, ChannelID: featuretest.ChannelID, Delivered: true}).Return(nil).Once()

	// later scans lose the claim instead of retrying the delivery
	for range 3 {
		require.NoError(t, f.scan(context.Background()))
		f.wg.Wait()
	}

	assert.Empty(t, h.Client.Sent())
	h.UoW.Reminders.AssertNumberOfCalls(t, "Disable", 3)
	h.UoW.Bus.AssertExpectations(t)
}

func TestRelease_CancelsSleepers(t *testing.T) {
	h, f := standalone(t)
	later := &models.Reminder{ID: 6, UserID: user, ChannelID: featuretest.ChannelID, RemindingAt: time.Now().Add(time.Hour), Text: "later", Enabled: true}
	h.UoW.Reminders.On("ListDue", mock.Anything, mock.Anything).Return([]*models.Reminder{later}, nil)

	require.NoError(t, f.scan(context.Background()))

	done := make(chan struct{})
	go func() {
		_ = f.release()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("release did not return")
	}

	h.UoW.Reminders.AssertNotCalled(t, "Disable", mock.Anything, mock.Anything)

	// nothing new is armed after release
	require.NoError(t, f.scan(context.Background()))
	f.mu.Lock()
	assert.Empty(t, f.pending)
	f.mu.Unlock()
}
