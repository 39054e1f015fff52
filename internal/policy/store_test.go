package policy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contoso-cloud/testexec-controlplane/internal/clock"
)

func newTestStore() (*Store, *clock.Fixed) {
	clk := clock.NewFixed(time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC))
	id := 0
	idGen := func() string {
		id++
		return time.Now().Format("20060102") + "-fake-id"
	}
	return NewStore(NewFakeRepository(), clk, idGen), clk
}

func TestGetAdminConfiguration_SelfHealsOnFirstBoot(t *testing.T) {
	store, _ := newTestStore()
	cfg, err := store.GetAdminConfiguration(context.Background(), true)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.ID)
	assert.Equal(t, Default().ResourceManagement.DefaultJobTimeoutMinutes, cfg.ResourceManagement.DefaultJobTimeoutMinutes)
}

func TestGetAdminConfiguration_SaveInvalidatesCache(t *testing.T) {
	store, clk := newTestStore()
	ctx := context.Background()

	first, err := store.GetAdminConfiguration(ctx, true)
	require.NoError(t, err)

	// Save through the store; the next read must observe it even within the TTL.
	first.ResourceManagement.DefaultJobTimeoutMinutes = 999
	require.NoError(t, store.SaveAdminConfiguration(ctx, first))

	clk.Advance(1 * time.Minute)
	cached, err := store.GetAdminConfiguration(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 999, cached.ResourceManagement.DefaultJobTimeoutMinutes, "save invalidates the cache immediately")

	clk.Advance(6 * time.Minute)
	fresh, err := store.GetAdminConfiguration(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 999, fresh.ResourceManagement.DefaultJobTimeoutMinutes)
}

func TestSaveAdminConfiguration_RejectsInvalid(t *testing.T) {
	store, _ := newTestStore()
	cfg := Default()
	cfg.ResourceManagement.DefaultJobTimeoutMinutes = 0
	err := store.SaveAdminConfiguration(context.Background(), cfg)
	assert.Error(t, err)
}

func TestUserConfiguration_IdentityIsServerAssigned(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	body := []byte("limits:\n  cpuLimit: \"500m\"\n  memoryLimit: \"256Mi\"\nid: attacker-supplied\nlobId: forged\n")
	cfg, err := store.CreateUserConfigurationFromYaml(ctx, "acme", "pay", "u1", body)
	require.NoError(t, err)

	assert.NotEqual(t, "attacker-supplied", cfg.ID)
	assert.Equal(t, "acme", cfg.LobID)
	assert.Equal(t, "pay", cfg.TeamID)
	assert.Equal(t, "u1", cfg.UserID)

	got, err := store.GetUserConfiguration(ctx, "acme", "pay", "u1")
	require.NoError(t, err)
	assert.Equal(t, cfg.ID, got.ID)
}

func TestUserConfiguration_RejectsOverCapOnCreate(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()
	body := []byte("limits:\n  cpuLimit: \"4\"\n")
	_, err := store.CreateUserConfigurationFromYaml(ctx, "acme", "pay", "u1", body)
	assert.Error(t, err)
}

func TestAdminConfiguration_YAMLRoundTrip(t *testing.T) {
	original := Default()
	original.Cluster.LobNamespacePrefix = "custom-"
	original.Alerts.Rules = append(original.Alerts.Rules, AlertRule{
		ID: "extra", Metric: "TestExecution.Duration", Operator: OperatorGreaterThan,
		Threshold: 600, Severity: SeverityWarning, Enabled: true,
	})

	store, _ := newTestStore()
	ctx := context.Background()
	original.ID = "fixed-id"
	require.NoError(t, store.SaveAdminConfiguration(ctx, original))

	roundTripped, err := store.GetAdminConfiguration(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, original.Cluster.LobNamespacePrefix, roundTripped.Cluster.LobNamespacePrefix)
	assert.Equal(t, original.ResourceManagement, roundTripped.ResourceManagement)
	assert.Equal(t, original.Alerts.Rules, roundTripped.Alerts.Rules)
}
