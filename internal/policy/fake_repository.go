package policy

import (
	"context"
	"sync"
)

// FakeRepository is an in-memory Repository used by tests across the
// control plane.
type FakeRepository struct {
	mu     sync.Mutex
	admin  []AdminConfigRow
	users  map[string]UserConfigRow // key: lob/team/user
}

// NewFakeRepository returns an empty FakeRepository.
func NewFakeRepository() *FakeRepository {
	return &FakeRepository{users: map[string]UserConfigRow{}}
}

func userKey(lobID, teamID, userID string) string { return lobID + "/" + teamID + "/" + userID }

func (f *FakeRepository) LatestAdminConfiguration(ctx context.Context) (AdminConfigRow, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.admin) == 0 {
		return AdminConfigRow{}, false, nil
	}
	latest := f.admin[0]
	for _, row := range f.admin[1:] {
		if row.CreatedAt.After(latest.CreatedAt) {
			latest = row
		}
	}
	return latest, true, nil
}

func (f *FakeRepository) UpsertAdminConfiguration(ctx context.Context, row AdminConfigRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.admin {
		if existing.ID == row.ID {
			f.admin[i] = row
			return nil
		}
	}
	f.admin = append(f.admin, row)
	return nil
}

func (f *FakeRepository) InsertUserConfiguration(ctx context.Context, row UserConfigRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[userKey(row.LobID, row.TeamID, row.UserID)] = row
	return nil
}

func (f *FakeRepository) UpdateUserConfiguration(ctx context.Context, row UserConfigRow) error {
	return f.InsertUserConfiguration(ctx, row)
}

func (f *FakeRepository) GetUserConfiguration(ctx context.Context, lobID, teamID, userID string) (UserConfigRow, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.users[userKey(lobID, teamID, userID)]
	return row, ok, nil
}

func (f *FakeRepository) ListUserConfigurations(ctx context.Context, lobID, teamID string) ([]UserConfigRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]UserConfigRow, 0)
	for _, row := range f.users {
		if row.LobID == lobID && row.TeamID == teamID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *FakeRepository) DeleteUserConfiguration(ctx context.Context, lobID, teamID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, userKey(lobID, teamID, userID))
	return nil
}

var _ Repository = (*FakeRepository)(nil)
