package policy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gopkg.in/yaml.v2"
	"k8s.io/klog/v2"

	"github.com/contoso-cloud/testexec-controlplane/internal/clock"
)

const cacheTTL = 5 * time.Minute

// AdminConfigRow is the persisted shape of one AdminConfigurations row:
// identity/metadata columns plus the YAML policy blob.
type AdminConfigRow struct {
	ID         string    `db:"id"`
	Name       string    `db:"name"`
	ConfigYAML string    `db:"config_yaml"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// UserConfigRow is the persisted shape of one UserConfigurations row.
type UserConfigRow struct {
	ID         string    `db:"id"`
	LobID      string    `db:"lob_id"`
	TeamID     string    `db:"team_id"`
	UserID     string    `db:"user_id"`
	ConfigYAML string    `db:"config_yaml"`
	CreatedAt  time.Time `db:"created_at"`
}

// Repository is the narrow persistence contract the Store needs. The
// relational store itself is an external collaborator per §1; this
// interface is the only surface Store depends on.
type Repository interface {
	LatestAdminConfiguration(ctx context.Context) (AdminConfigRow, bool, error)
	UpsertAdminConfiguration(ctx context.Context, row AdminConfigRow) error

	InsertUserConfiguration(ctx context.Context, row UserConfigRow) error
	UpdateUserConfiguration(ctx context.Context, row UserConfigRow) error
	GetUserConfiguration(ctx context.Context, lobID, teamID, userID string) (UserConfigRow, bool, error)
	ListUserConfigurations(ctx context.Context, lobID, teamID string) ([]UserConfigRow, error)
	DeleteUserConfiguration(ctx context.Context, lobID, teamID, userID string) error
}

// IDGenerator mints identifiers for newly created rows.
type IDGenerator func() string

// Store is the Policy Store (C3): cached admin configuration plus
// per-tenant user configuration CRUD, with the validation guarantees
// §4.3 requires.
type Store struct {
	repo  Repository
	clock clock.Clock
	newID IDGenerator

	mu          sync.RWMutex
	cached      *AdminConfiguration
	cachedAt    time.Time
}

// NewStore builds a Store over repo. newID mints identifiers for newly
// created rows (production wiring passes uuid.NewString).
func NewStore(repo Repository, clk clock.Clock, newID IDGenerator) *Store {
	return &Store{repo: repo, clock: clk, newID: newID}
}

// GetAdminConfiguration returns the cached configuration when useCache is
// true and the cache is within its TTL; otherwise it reads the most
// recent row, self-healing by writing a default configuration when none
// exists yet.
func (s *Store) GetAdminConfiguration(ctx context.Context, useCache bool) (AdminConfiguration, error) {
	if useCache {
		if cfg, ok := s.cachedConfig(); ok {
			return cfg, nil
		}
	}

	row, found, err := s.repo.LatestAdminConfiguration(ctx)
	if err != nil {
		return AdminConfiguration{}, fmt.Errorf("policy: loading admin configuration: %w", err)
	}

	var cfg AdminConfiguration
	if !found {
		cfg = Default()
		cfg.ID = s.newID()
		now := s.clock.Now()
		cfg.CreatedAt = now
		cfg.UpdatedAt = now
		if err := s.saveRow(ctx, &cfg); err != nil {
			return AdminConfiguration{}, err
		}
		klog.Infof("policy: no admin configuration found, wrote default %s", cfg.ID)
	} else {
		if err := yaml.Unmarshal([]byte(row.ConfigYAML), &cfg); err != nil {
			return AdminConfiguration{}, fmt.Errorf("policy: unmarshaling admin configuration: %w", err)
		}
		cfg.ID = row.ID
		cfg.Name = row.Name
		cfg.CreatedAt = row.CreatedAt
		cfg.UpdatedAt = row.UpdatedAt
	}

	s.refreshCache(cfg)
	return cfg, nil
}

// SaveAdminConfiguration serializes cfg to YAML, upserts it by ID, and
// invalidates the cache.
func (s *Store) SaveAdminConfiguration(ctx context.Context, cfg AdminConfiguration) error {
	if err := ValidateAdminConfiguration(cfg); err != nil {
		return err
	}
	if cfg.ID == "" {
		cfg.ID = s.newID()
		cfg.CreatedAt = s.clock.Now()
	}
	cfg.UpdatedAt = s.clock.Now()

	if err := s.saveRow(ctx, &cfg); err != nil {
		return err
	}

	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
	return nil
}

func (s *Store) saveRow(ctx context.Context, cfg *AdminConfiguration) error {
	body, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("policy: marshaling admin configuration: %w", err)
	}
	row := AdminConfigRow{
		ID:         cfg.ID,
		Name:       cfg.Name,
		ConfigYAML: string(body),
		CreatedAt:  cfg.CreatedAt,
		UpdatedAt:  cfg.UpdatedAt,
	}
	if err := s.repo.UpsertAdminConfiguration(ctx, row); err != nil {
		return fmt.Errorf("policy: saving admin configuration: %w", err)
	}
	return nil
}

func (s *Store) cachedConfig() (AdminConfiguration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cached == nil {
		return AdminConfiguration{}, false
	}
	if s.clock.Now().Sub(s.cachedAt) > cacheTTL {
		return AdminConfiguration{}, false
	}
	return *s.cached, true
}

func (s *Store) refreshCache(cfg AdminConfiguration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = &cfg
	s.cachedAt = s.clock.Now()
}

// CreateUserConfigurationFromYaml parses body, assigns server-owned
// identity fields (the YAML body cannot forge lobID/teamID/userID/id),
// validates it against the current admin configuration, and persists it.
func (s *Store) CreateUserConfigurationFromYaml(ctx context.Context, lobID, teamID, userID string, body []byte) (UserConfiguration, error) {
	var cfg UserConfiguration
	if err := yaml.Unmarshal(body, &cfg); err != nil {
		return UserConfiguration{}, ErrInvalidRequest(fmt.Sprintf("invalid configuration yaml: %v", err))
	}

	cfg.ID = s.newID()
	cfg.LobID = lobID
	cfg.TeamID = teamID
	cfg.UserID = userID
	cfg.CreatedAt = s.clock.Now()

	admin, err := s.GetAdminConfiguration(ctx, true)
	if err != nil {
		return UserConfiguration{}, err
	}
	if err := ValidateUserConfiguration(cfg, admin); err != nil {
		return UserConfiguration{}, err
	}

	row, err := toUserRow(cfg)
	if err != nil {
		return UserConfiguration{}, err
	}
	if err := s.repo.InsertUserConfiguration(ctx, row); err != nil {
		return UserConfiguration{}, fmt.Errorf("policy: inserting user configuration: %w", err)
	}
	return cfg, nil
}

// UpdateUserConfigurationFromYaml re-parses body over the existing
// identity, revalidates, and persists the update.
func (s *Store) UpdateUserConfigurationFromYaml(ctx context.Context, lobID, teamID, userID string, body []byte) (UserConfiguration, error) {
	existingRow, found, err := s.repo.GetUserConfiguration(ctx, lobID, teamID, userID)
	if err != nil {
		return UserConfiguration{}, fmt.Errorf("policy: loading user configuration: %w", err)
	}
	if !found {
		return UserConfiguration{}, ErrConfigNotFound
	}

	var cfg UserConfiguration
	if err := yaml.Unmarshal(body, &cfg); err != nil {
		return UserConfiguration{}, ErrInvalidRequest(fmt.Sprintf("invalid configuration yaml: %v", err))
	}
	cfg.ID = existingRow.ID
	cfg.LobID = lobID
	cfg.TeamID = teamID
	cfg.UserID = userID
	cfg.CreatedAt = existingRow.CreatedAt

	admin, err := s.GetAdminConfiguration(ctx, true)
	if err != nil {
		return UserConfiguration{}, err
	}
	if err := ValidateUserConfiguration(cfg, admin); err != nil {
		return UserConfiguration{}, err
	}

	row, err := toUserRow(cfg)
	if err != nil {
		return UserConfiguration{}, err
	}
	if err := s.repo.UpdateUserConfiguration(ctx, row); err != nil {
		return UserConfiguration{}, fmt.Errorf("policy: updating user configuration: %w", err)
	}
	return cfg, nil
}

// GetUserConfiguration returns the (lob,team,user)-scoped configuration.
func (s *Store) GetUserConfiguration(ctx context.Context, lobID, teamID, userID string) (UserConfiguration, error) {
	row, found, err := s.repo.GetUserConfiguration(ctx, lobID, teamID, userID)
	if err != nil {
		return UserConfiguration{}, fmt.Errorf("policy: loading user configuration: %w", err)
	}
	if !found {
		return UserConfiguration{}, ErrConfigNotFound
	}
	return fromUserRow(row)
}

// ListUserConfigurations returns every configuration for a (lob,team).
func (s *Store) ListUserConfigurations(ctx context.Context, lobID, teamID string) ([]UserConfiguration, error) {
	rows, err := s.repo.ListUserConfigurations(ctx, lobID, teamID)
	if err != nil {
		return nil, fmt.Errorf("policy: listing user configurations: %w", err)
	}
	out := make([]UserConfiguration, 0, len(rows))
	for _, row := range rows {
		cfg, err := fromUserRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}

// DeleteUserConfiguration removes the (lob,team,user)-scoped configuration.
func (s *Store) DeleteUserConfiguration(ctx context.Context, lobID, teamID, userID string) error {
	if err := s.repo.DeleteUserConfiguration(ctx, lobID, teamID, userID); err != nil {
		return fmt.Errorf("policy: deleting user configuration: %w", err)
	}
	return nil
}

func toUserRow(cfg UserConfiguration) (UserConfigRow, error) {
	body, err := yaml.Marshal(cfg)
	if err != nil {
		return UserConfigRow{}, fmt.Errorf("policy: marshaling user configuration: %w", err)
	}
	return UserConfigRow{
		ID:         cfg.ID,
		LobID:      cfg.LobID,
		TeamID:     cfg.TeamID,
		UserID:     cfg.UserID,
		ConfigYAML: string(body),
		CreatedAt:  cfg.CreatedAt,
	}, nil
}

func fromUserRow(row UserConfigRow) (UserConfiguration, error) {
	var cfg UserConfiguration
	if err := yaml.Unmarshal([]byte(row.ConfigYAML), &cfg); err != nil {
		return UserConfiguration{}, fmt.Errorf("policy: unmarshaling user configuration: %w", err)
	}
	cfg.ID = row.ID
	cfg.LobID = row.LobID
	cfg.TeamID = row.TeamID
	cfg.UserID = row.UserID
	cfg.CreatedAt = row.CreatedAt
	return cfg, nil
}

// ErrConfigNotFound is returned when a user configuration lookup misses.
var ErrConfigNotFound = fmt.Errorf("policy: configuration not found")
