package schedule

import (
	"context"
	"sync"
)

// FakeRepository is an in-memory Repository used by tests.
type FakeRepository struct {
	mu        sync.Mutex
	schedules map[string]TestJobSchedule
}

// NewFakeRepository returns an empty FakeRepository.
func NewFakeRepository() *FakeRepository {
	return &FakeRepository{schedules: map[string]TestJobSchedule{}}
}

func (f *FakeRepository) Create(ctx context.Context, s TestJobSchedule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schedules[s.ID] = s
	return nil
}

func (f *FakeRepository) Get(ctx context.Context, id, lobID string) (TestJobSchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.schedules[id]
	if !ok || s.LobID != lobID {
		return TestJobSchedule{}, ErrScheduleNotFound
	}
	return s, nil
}

func (f *FakeRepository) Update(ctx context.Context, s TestJobSchedule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.schedules[s.ID]; !ok {
		return ErrScheduleNotFound
	}
	f.schedules[s.ID] = s
	return nil
}

func (f *FakeRepository) Delete(ctx context.Context, id, lobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.schedules[id]
	if !ok || s.LobID != lobID {
		return ErrScheduleNotFound
	}
	delete(f.schedules, id)
	return nil
}

func (f *FakeRepository) List(ctx context.Context, lobID, teamID string) ([]TestJobSchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []TestJobSchedule
	for _, s := range f.schedules {
		if s.LobID == lobID && s.TeamID == teamID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *FakeRepository) ListActive(ctx context.Context) ([]TestJobSchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []TestJobSchedule
	for _, s := range f.schedules {
		if s.IsActive {
			out = append(out, s)
		}
	}
	return out, nil
}

var _ Repository = (*FakeRepository)(nil)
