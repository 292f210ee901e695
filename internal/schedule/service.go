package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo   Repository
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger
}

func NewService(repo Repository, loc *time.Location, logger *slog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, loc: loc, now: time.Now, logger: logger}
}

// today is the clinic's current calendar date.
func (s *Service) today() time.Time {
	return Date(s.now().In(s.loc))
}

func (s *Service) CreateGroup(ctx context.Context, in GroupInput) (uuid.UUID, []Rule, error) {
	groupID := uuid.New()
	rules, err := BuildRules(groupID, in, s.now())
	if err != nil {
		return uuid.Nil, nil, err
	}
	if err := s.repo.InsertRules(ctx, rules); err != nil {
		return uuid.Nil, nil, fmt.Errorf("insert availability group: %w", err)
	}

	s.logger.Info("availability group created",
		"group_id", groupID,
		"professional_id", in.ProfessionalID,
		"kind", in.Kind,
		"rules", len(rules),
	)
	return groupID, rules, nil
}

// ReplaceGroup swaps every rule of the group for the new pattern. The group
// stays attached to its original professional and specialty.
func (s *Service) ReplaceGroup(ctx context.Context, groupID uuid.UUID, in GroupInput) ([]Rule, error) {
	old, err := s.repo.ListGroupRules(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("load availability group: %w", err)
	}
	if len(old) == 0 {
		return nil, ErrGroupNotFound
	}

	in.ProfessionalID = old[0].ProfessionalID
	in.SpecialtyID = old[0].SpecialtyID

	rules, err := BuildRules(groupID, in, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.ReplaceGroup(ctx, groupID, rules); err != nil {
		if errors.Is(err, ErrGroupNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("replace availability group: %w", err)
	}

	s.logger.Info("availability group replaced", "group_id", groupID, "rules", len(rules))
	return rules, nil
}

func (s *Service) DeleteGroup(ctx context.Context, groupID uuid.UUID) error {
	n, err := s.repo.DeleteGroup(ctx, groupID)
	if err != nil {
		return fmt.Errorf("delete availability group: %w", err)
	}
	if n == 0 {
		return ErrGroupNotFound
	}
	s.logger.Info("availability group deleted", "group_id", groupID, "rules", n)
	return nil
}

func (s *Service) GetGroup(ctx context.Context, groupID uuid.UUID) (*Group, error) {
	rules, err := s.repo.ListGroupRules(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("load availability group: %w", err)
	}
	if len(rules) == 0 {
		return nil, ErrGroupNotFound
	}
	g := GroupFromRules(groupID, rules)
	return &g, nil
}

func (s *Service) ListRules(ctx context.Context, f RuleFilter) ([]Rule, error) {
	if f.Today.IsZero() {
		f.Today = s.today()
	}
	rules, err := s.repo.ListRules(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list availability rules: %w", err)
	}
	return rules, nil
}

// ConflictCount reports how many upcoming live bookings would be affected by
// editing or removing the group.
func (s *Service) ConflictCount(ctx context.Context, groupID uuid.UUID) (int, error) {
	n, err := s.repo.CountGroupConflicts(ctx, groupID, s.today())
	if err != nil {
		return 0, fmt.Errorf("count group conflicts: %w", err)
	}
	return n, nil
}

func (s *Service) CreateBlock(ctx context.Context, b Block) (*Block, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	b.ID = uuid.New()
	b.DateFrom = Date(b.DateFrom)
	b.DateUntil = Date(b.DateUntil)
	b.CreatedAt = s.now()

	if err := s.repo.InsertBlock(ctx, b); err != nil {
		return nil, fmt.Errorf("insert schedule block: %w", err)
	}
	s.logger.Info("schedule block created",
		"block_id", b.ID,
		"kind", b.Kind,
		"from", FormatDate(b.DateFrom),
		"until", FormatDate(b.DateUntil),
	)
	return &b, nil
}

func (s *Service) ListBlocks(ctx context.Context, f BlockFilter) ([]Block, error) {
	blocks, err := s.repo.ListBlocks(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list schedule blocks: %w", err)
	}
	return blocks, nil
}

func (s *Service) DeleteBlock(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteBlock(ctx, id); err != nil {
		if errors.Is(err, ErrBlockNotFound) {
			return err
		}
		return fmt.Errorf("delete schedule block: %w", err)
	}
	return nil
}

// IsBlocked reports whether any block closes the professional's slot.
func (s *Service) IsBlocked(ctx context.Context, professionalID uuid.UUID, date time.Time, at TimeOfDay) (bool, error) {
	blocks, err := s.repo.ListBlocksOn(ctx, professionalID, date)
	if err != nil {
		return false, fmt.Errorf("load schedule blocks: %w", err)
	}
	for _, b := range blocks {
		if b.Covers(professionalID, date, at) {
			return true, nil
		}
	}
	return false, nil
}
