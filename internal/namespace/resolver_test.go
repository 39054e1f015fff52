package namespace

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contoso-cloud/testexec-controlplane/internal/clock"
	"github.com/contoso-cloud/testexec-controlplane/internal/cluster"
	"github.com/contoso-cloud/testexec-controlplane/internal/policy"
)

func TestGetNamespaceForLob_LowercasesAndUsesCompiledDefault(t *testing.T) {
	store := policy.NewStore(policy.NewFakeRepository(), clock.Real{}, func() string { return "id-1" })
	r := NewResolver(cluster.NewFake(), store)

	assert.Equal(t, "testexec-acme", r.GetNamespaceForLob("ACME"))
	assert.Equal(t, "testexec-acme", r.GetNamespaceForLob("acme"))
}

func TestGetNamespaceForLob_PurityAcrossCalls(t *testing.T) {
	store := policy.NewStore(policy.NewFakeRepository(), clock.Real{}, func() string { return "id-1" })
	r := NewResolver(cluster.NewFake(), store)

	first := r.GetNamespaceForLob("Acme")
	second := r.GetNamespaceForLob("Acme")
	assert.Equal(t, first, second)
}

func TestEnsureNamespaceExists_CreatesOnBackend(t *testing.T) {
	backend := cluster.NewFake()
	store := policy.NewStore(policy.NewFakeRepository(), clock.Real{}, func() string { return "id-1" })
	r := NewResolver(backend, store)

	name, err := r.EnsureNamespaceExists(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "testexec-acme", name)

	namespaces, err := backend.ListNamespaces(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, namespaces, 1)
	assert.Equal(t, "testexec-acme", namespaces[0].Name)
}

func TestRefresh_PicksUpPrefixFromPolicy(t *testing.T) {
	clk := clock.NewFixed(time.Now())
	store := policy.NewStore(policy.NewFakeRepository(), clk, func() string { return "id-1" })
	cfg := policy.Default()
	cfg.Cluster.LobNamespacePrefix = "custom-"
	cfg.ID = "id-1"
	require.NoError(t, store.SaveAdminConfiguration(context.Background(), cfg))

	r := NewResolver(cluster.NewFake(), store)
	r.refresh(context.Background())

	assert.Equal(t, "custom-acme", r.GetNamespaceForLob("acme"))
}
