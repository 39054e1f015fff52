package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/contoso-cloud/testexec-controlplane/internal/policy"
)

// PolicyRepository implements policy.Repository against the embedded
// sqlite schema.
type PolicyRepository struct {
	db *sqlx.DB
}

// NewPolicyRepository builds a PolicyRepository over db.
func NewPolicyRepository(db *sqlx.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

func (repo *PolicyRepository) LatestAdminConfiguration(ctx context.Context) (policy.AdminConfigRow, bool, error) {
	var row policy.AdminConfigRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM AdminConfigurations ORDER BY updated_at DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return policy.AdminConfigRow{}, false, nil
	}
	if err != nil {
		return policy.AdminConfigRow{}, false, fmt.Errorf("db: loading latest admin configuration: %w", err)
	}
	return row, true, nil
}

func (repo *PolicyRepository) UpsertAdminConfiguration(ctx context.Context, row policy.AdminConfigRow) error {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO AdminConfigurations (id, name, config_yaml, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, config_yaml = excluded.config_yaml, updated_at = excluded.updated_at`,
		row.ID, row.Name, row.ConfigYAML, row.CreatedAt, row.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("db: upserting admin configuration: %w", err)
	}
	return nil
}

func (repo *PolicyRepository) InsertUserConfiguration(ctx context.Context, row policy.UserConfigRow) error {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO UserConfigurations (id, lob_id, team_id, user_id, config_yaml, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		row.ID, row.LobID, row.TeamID, row.UserID, row.ConfigYAML, row.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("db: inserting user configuration: %w", err)
	}
	return nil
}

func (repo *PolicyRepository) UpdateUserConfiguration(ctx context.Context, row policy.UserConfigRow) error {
	result, err := repo.db.ExecContext(ctx, `
		UPDATE UserConfigurations SET config_yaml = ? WHERE lob_id = ? AND team_id = ? AND user_id = ?`,
		row.ConfigYAML, row.LobID, row.TeamID, row.UserID,
	)
	if err != nil {
		return fmt.Errorf("db: updating user configuration: %w", err)
	}
	return requireRowAffected(result, policy.ErrConfigNotFound)
}

func (repo *PolicyRepository) GetUserConfiguration(ctx context.Context, lobID, teamID, userID string) (policy.UserConfigRow, bool, error) {
	var row policy.UserConfigRow
	err := repo.db.GetContext(ctx, &row, `
		SELECT * FROM UserConfigurations WHERE lob_id = ? AND team_id = ? AND user_id = ?`,
		lobID, teamID, userID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return policy.UserConfigRow{}, false, nil
	}
	if err != nil {
		return policy.UserConfigRow{}, false, fmt.Errorf("db: loading user configuration: %w", err)
	}
	return row, true, nil
}

func (repo *PolicyRepository) ListUserConfigurations(ctx context.Context, lobID, teamID string) ([]policy.UserConfigRow, error) {
	var rows []policy.UserConfigRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM UserConfigurations WHERE lob_id = ? AND team_id = ?`, lobID, teamID)
	if err != nil {
		return nil, fmt.Errorf("db: listing user configurations: %w", err)
	}
	return rows, nil
}

func (repo *PolicyRepository) DeleteUserConfiguration(ctx context.Context, lobID, teamID, userID string) error {
	result, err := repo.db.ExecContext(ctx, `
		DELETE FROM UserConfigurations WHERE lob_id = ? AND team_id = ? AND user_id = ?`,
		lobID, teamID, userID,
	)
	if err != nil {
		return fmt.Errorf("db: deleting user configuration: %w", err)
	}
	return requireRowAffected(result, policy.ErrConfigNotFound)
}

var _ policy.Repository = (*PolicyRepository)(nil)
