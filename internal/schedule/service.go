package schedule

import (
	"context"
	"fmt"

	"github.com/nerrad567/garage-core/internal/door"
)

// Listed is a definition annotated with its registry membership.
type Listed struct {
	Definition
	Active bool `json:"active"`
}

// Service ties the schedule store to the registry for API callers.
type Service struct {
	repo     Repository
	registry *Registry
}

// NewService returns a Service over repo and registry.
func NewService(repo Repository, registry *Registry) *Service {
	return &Service{repo: repo, registry: registry}
}

// Create validates, persists and registers an enabled schedule owned by
// userID. Registration failure does not undo the insert; callers can check
// Listed.Active.
func (s *Service) Create(ctx context.Context, userID string, action door.Action, cronExpr string) (*Definition, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("%w: %q", door.ErrInvalidAction, action)
	}
	if err := ValidateCron(cronExpr); err != nil {
		return nil, err
	}

	def := &Definition{
		UserID:   userID,
		Action:   action,
		CronExpr: cronExpr,
		Enabled:  true,
	}
	if err := s.repo.Create(ctx, def); err != nil {
		return nil, err
	}

	_ = s.registry.AddJob(*def) //nolint:errcheck // logged by the registry
	return def, nil
}

// List returns userID's schedules with their live status.
func (s *Service) List(ctx context.Context, userID string) ([]Listed, error) {
	defs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]Listed, 0, len(defs))
	for _, def := range defs {
		out = append(out, Listed{Definition: def, Active: s.registry.Has(def.ID)})
	}
	return out, nil
}

// Delete removes id if userID owns it, then drops its job.
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	if err := s.repo.DeleteOwned(ctx, id, userID); err != nil {
		return err
	}
	s.registry.RemoveJob(id)
	return nil
}
