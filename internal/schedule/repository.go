package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type BlockFilter struct {
	ProfessionalID *uuid.UUID
	From           *time.Time
	Until          *time.Time
}

type Repository interface {
	RuleReader

	InsertRules(ctx context.Context, rules []Rule) error
	// ReplaceGroup deletes every row of the group and inserts rules in one transaction.
	ReplaceGroup(ctx context.Context, groupID uuid.UUID, rules []Rule) error
	DeleteGroup(ctx context.Context, groupID uuid.UUID) (int64, error)
	ListGroupRules(ctx context.Context, groupID uuid.UUID) ([]Rule, error)
	ListRules(ctx context.Context, f RuleFilter) ([]Rule, error)
	CountGroupConflicts(ctx context.Context, groupID uuid.UUID, today time.Time) (int, error)

	InsertBlock(ctx context.Context, b Block) error
	DeleteBlock(ctx context.Context, id uuid.UUID) error
	ListBlocks(ctx context.Context, f BlockFilter) ([]Block, error)
	// ListBlocksOn returns blocks that may cover the date for the professional,
	// including clinic-wide and yearly ones. Callers filter with Block.Covers.
	ListBlocksOn(ctx context.Context, professionalID uuid.UUID, date time.Time) ([]Block, error)
}
