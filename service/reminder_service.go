package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Fuyukai/Jokusoramame-sub000/events"
	"github.com/Fuyukai/Jokusoramame-sub000/models"
)

// MaxReminderLength is the longest reminder text accepted
const MaxReminderLength = 1500

// reminderService implements the ReminderService interface
type reminderService struct {
	reminderRepo   ReminderRepository
	eventPublisher EventPublisher
	now            func() time.Time
}

// NewReminderService creates a new reminder service
func NewReminderService(reminderRepo ReminderRepository, eventPublisher EventPublisher) ReminderService {
	return &reminderService{
		reminderRepo:   reminderRepo,
		eventPublisher: eventPublisher,
		now:            time.Now,
	}
}

func (s *reminderService) Schedule(ctx context.Context, userID, channelID int64, at time.Time, text string) (*models.Reminder, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("reminder text cannot be empty")
	}
	if len(text) > MaxReminderLength {
		return nil, fmt.Errorf("reminder text exceeds %d characters", MaxReminderLength)
	}
	if !at.After(s.now()) {
		return nil, fmt.Errorf("reminder time must be in the future")
	}

	reminder := &models.Reminder{
		UserID:      userID,
		ChannelID:   channelID,
		RemindingAt: at.UTC(),
		Text:        text,
		Enabled:     true,
	}
	if err := s.reminderRepo.Create(ctx, reminder); err != nil {
		return nil, fmt.Errorf("failed to create reminder: %w", err)
	}
	return reminder, nil
}

func (s *reminderService) Due(ctx context.Context, horizon time.Time) ([]*models.Reminder, error) {
	reminders, err := s.reminderRepo.ListDue(ctx, horizon)
	if err != nil {
		return nil, fmt.Errorf("failed to list due reminders: %w", err)
	}
	return reminders, nil
}

// Claim flips the enabled flag. Only the caller that flipped it gets true.
func (s *reminderService) Claim(ctx context.Context, reminder *models.Reminder, delivered bool) (bool, error) {
	claimed, err := s.reminderRepo.Disable(ctx, reminder.ID)
	if err != nil {
		return false, fmt.Errorf("failed to claim reminder %d: %w", reminder.ID, err)
	}
	if !claimed {
		return false, nil
	}

	if err := s.eventPublisher.Publish(events.ReminderFiredEvent{
		ReminderID: reminder.ID,
		UserID:     reminder.UserID,
		ChannelID:  reminder.ChannelID,
		Delivered:  delivered,
	}); err != nil {
		return false, fmt.Errorf("failed to publish reminder event: %w", err)
	}
	return true, nil
}

func (s *reminderService) ListForUser(ctx context.Context, userID int64) ([]*models.Reminder, error) {
	reminders, err := s.reminderRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders for user %d: %w", userID, err)
	}
	return reminders, nil
}
