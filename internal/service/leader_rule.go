package service

import (
	"context"
	"fmt"

	"github.com/hongdnn/leadsync/internal/model"
	"github.com/hongdnn/leadsync/internal/store"
)

// LeaderRuleService stores free-form tech lead rules submitted over the
// prefs slash command. Rules are recorded without a label so every
// ticket's reasoning pass picks them up.
type LeaderRuleService interface {
	Save(ctx context.Context, text string) error
}

type leaderRuleService struct {
	stores  *store.Stores
	enabled bool
}

func NewLeaderRuleService(stores *store.Stores, enabled bool) LeaderRuleService {
	return &leaderRuleService{stores: stores, enabled: enabled}
}

func (s *leaderRuleService) Save(ctx context.Context, text string) error {
	if !s.enabled || s.stores == nil {
		return Preconditionf("Memory is disabled.")
	}
	if _, err := s.stores.MemoryItems().Create(ctx, &model.MemoryItem{
		Workflow: model.WorkflowSlackPrefs,
		ItemType: model.MemoryItemTypeLeaderRule,
		Summary:  text,
	}); err != nil {
		return fmt.Errorf("save leader rule: %w", err)
	}
	return nil
}
