package service

import (
	"context"
	"fmt"
	"math"

	"github.com/Fuyukai/Jokusoramame-sub000/events"
)

const (
	// DecayFloor and DecayCeiling bound the exempt bracket
	DecayFloor   int64 = 0
	DecayCeiling int64 = 1343

	decayRate = 0.05
)

// economyService implements the EconomyService interface
type economyService struct {
	userRepo       UserRepository
	eventPublisher EventPublisher
}

// NewEconomyService creates a new economy service
func NewEconomyService(userRepo UserRepository, eventPublisher EventPublisher) EconomyService {
	return &economyService{
		userRepo:       userRepo,
		eventPublisher: eventPublisher,
	}
}

// Decay returns the balance after h hours of decay. Balances inside
// [DecayFloor, DecayCeiling] are returned unchanged.
func Decay(money int64, hours int) int64 {
	if money >= DecayFloor && money <= DecayCeiling {
		return money
	}
	delta := money - int64(math.Ceil(float64(money)*math.Exp(-decayRate*float64(hours))))
	return money - delta
}

func (s *economyService) GetBalance(ctx context.Context, userID int64) (int64, error) {
	user, err := s.userRepo.Ensure(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	return user.Money, nil
}

func (s *economyService) Credit(ctx context.Context, userID int64, amount int64) (int64, error) {
	if _, err := s.userRepo.Ensure(ctx, userID); err != nil {
		return 0, fmt.Errorf("failed to ensure user %d: %w", userID, err)
	}
	balance, err := s.userRepo.AddMoney(ctx, userID, amount)
	if err != nil {
		return 0, fmt.Errorf("failed to credit user %d: %w", userID, err)
	}
	return balance, nil
}

// ApplyDecay must run inside a unit of work; every affected row is locked by ListDecayable
func (s *economyService) ApplyDecay(ctx context.Context, hours int) (*DecayResult, error) {
	users, err := s.userRepo.ListDecayable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list decayable users: %w", err)
	}

	result := &DecayResult{}
	for _, user := range users {
		newMoney := Decay(user.Money, hours)
		if newMoney == user.Money {
			continue
		}
		if err := s.userRepo.SetMoney(ctx, user.ID, newMoney); err != nil {
			return nil, fmt.Errorf("failed to decay user %d: %w", user.ID, err)
		}
		result.UsersAffected++
		result.TotalDelta += newMoney - user.Money
	}

	if result.UsersAffected > 0 {
		if err := s.eventPublisher.Publish(events.DecayAppliedEvent{
			UsersAffected: result.UsersAffected,
			TotalDelta:    result.TotalDelta,
		}); err != nil {
			return nil, fmt.Errorf("failed to publish decay event: %w", err)
		}
	}

	return result, nil
}
