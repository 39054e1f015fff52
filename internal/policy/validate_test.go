package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateUserConfiguration_RejectsOverCapCPU(t *testing.T) {
	admin := Default()
	admin.ResourceManagement.DefaultContainerLimits.CPULimit = "1"

	user := UserConfiguration{Limits: ContainerLimits{CPULimit: "4"}}
	err := ValidateUserConfiguration(user, admin)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CPU limit (4) exceeds maximum allowed (1)")
}

func TestValidateUserConfiguration_RejectsOverCapMemory(t *testing.T) {
	admin := Default()
	admin.ResourceManagement.DefaultContainerLimits.MemoryLimit = "512Mi"

	user := UserConfiguration{Limits: ContainerLimits{MemoryLimit: "1Gi"}}
	err := ValidateUserConfiguration(user, admin)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds maximum allowed")
}

func TestValidateUserConfiguration_AllowsWithinCap(t *testing.T) {
	admin := Default()
	user := UserConfiguration{Limits: ContainerLimits{CPULimit: "500m", MemoryLimit: "256Mi"}}
	assert.NoError(t, ValidateUserConfiguration(user, admin))
}
