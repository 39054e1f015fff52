package reporting

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestJobsFilterConditions_BindsThroughPlaceholders guards §9's flagged
// SQL-injection bug: an adversarial filter value must never appear in
// the generated SQL text, only in the bound argument list.
func TestJobsFilterConditions_BindsThroughPlaceholders(t *testing.T) {
	reader := NewReader(nil)

	malicious := "acme'; DROP TABLE TestJobs; --"
	f := Filter{LobID: malicious, Status: "Failed"}

	query := reader.builder.Select("id").From("TestJobs").Where(reader.jobsFilterConditions(f))
	sqlStr, args, err := query.ToSql()
	require.NoError(t, err)

	assert.NotContains(t, sqlStr, malicious)
	assert.Contains(t, sqlStr, "?")
	assert.Contains(t, args, malicious)
}

func TestGetJobsQuery_PaginatesWithLimitAndOffset(t *testing.T) {
	reader := NewReader(nil)
	f := Filter{LobID: "acme"}

	query := reader.builder.Select("id").From("TestJobs").Where(reader.jobsFilterConditions(f)).
		OrderBy("start_time DESC").Limit(50).Offset(50)
	sqlStr, _, err := query.ToSql()
	require.NoError(t, err)

	assert.True(t, strings.Contains(sqlStr, "LIMIT") && strings.Contains(sqlStr, "OFFSET"))
}

func TestJobsFilterConditions_BindsStatusFilter(t *testing.T) {
	reader := NewReader(nil)
	cond := reader.jobsFilterConditions(Filter{Status: "Failed"})
	sqlStr, args, err := reader.builder.Select("1").From("TestJobs").Where(cond).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sqlStr, "status = ?")
	assert.Contains(t, args, "Failed")
}
