package policy

import "fmt"

// ValidateUserConfiguration enforces that a user's resource overrides
// never exceed the admin-configured caps. It is deliberately narrow: it
// checks only the two fields §4.3 names, not the full configuration
// shape, because everything else in a UserConfiguration is additive
// (env vars) rather than cap-bounded.
func ValidateUserConfiguration(user UserConfiguration, admin AdminConfiguration) error {
	adminCPU, err := ParseCPU(admin.ResourceManagement.DefaultContainerLimits.CPULimit)
	if err != nil {
		return fmt.Errorf("policy: admin cpu limit is invalid: %w", err)
	}
	adminMemory, err := ParseMemory(admin.ResourceManagement.DefaultContainerLimits.MemoryLimit)
	if err != nil {
		return fmt.Errorf("policy: admin memory limit is invalid: %w", err)
	}

	if user.Limits.CPULimit != "" {
		userCPU, err := ParseCPU(user.Limits.CPULimit)
		if err != nil {
			return err
		}
		if userCPU > adminCPU {
			return ErrInvalidRequest(fmt.Sprintf(
				"CPU limit (%s) exceeds maximum allowed (%s)",
				user.Limits.CPULimit, admin.ResourceManagement.DefaultContainerLimits.CPULimit))
		}
	}

	if user.Limits.MemoryLimit != "" {
		userMemory, err := ParseMemory(user.Limits.MemoryLimit)
		if err != nil {
			return err
		}
		if userMemory > adminMemory {
			return ErrInvalidRequest(fmt.Sprintf(
				"memory limit (%s) exceeds maximum allowed (%s)",
				user.Limits.MemoryLimit, admin.ResourceManagement.DefaultContainerLimits.MemoryLimit))
		}
	}

	return nil
}

// ValidateAdminConfiguration checks the invariants an admin document must
// satisfy before it can be persisted.
func ValidateAdminConfiguration(cfg AdminConfiguration) error {
	if cfg.ResourceManagement.DefaultJobTimeoutMinutes <= 0 {
		return ErrInvalidRequest("defaultJobTimeoutMinutes must be positive")
	}
	if cfg.Cluster.LobNamespacePrefix == "" {
		return ErrInvalidRequest("cluster.lobNamespacePrefix must not be empty")
	}
	if _, err := ParseCPU(cfg.ResourceManagement.DefaultContainerLimits.CPULimit); err != nil {
		return err
	}
	if _, err := ParseMemory(cfg.ResourceManagement.DefaultContainerLimits.MemoryLimit); err != nil {
		return err
	}
	for _, rule := range cfg.Alerts.Rules {
		switch rule.Operator {
		case OperatorGreaterThan, OperatorLessThan, OperatorEquals:
		default:
			return ErrInvalidRequest(fmt.Sprintf("alert rule %q has invalid operator %q", rule.Name, rule.Operator))
		}
	}
	return nil
}
