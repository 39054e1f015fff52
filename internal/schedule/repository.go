package schedule

import "context"

// Repository is the relational persistence contract the Schedule
// Engine depends on (§1: the relational store is an external
// collaborator).
type Repository interface {
	Create(ctx context.Context, s TestJobSchedule) error
	Get(ctx context.Context, id, lobID string) (TestJobSchedule, error)
	Update(ctx context.Context, s TestJobSchedule) error
	Delete(ctx context.Context, id, lobID string) error
	List(ctx context.Context, lobID, teamID string) ([]TestJobSchedule, error)

	// ListActive returns every is_active schedule across all tenants,
	// the read the engine's tick starts from.
	ListActive(ctx context.Context) ([]TestJobSchedule, error)
}
