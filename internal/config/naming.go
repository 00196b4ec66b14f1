package config

import (
	"fmt"
	"regexp"
)

// MaxInstanceNameLength is the maximum length for a history instance name.
const MaxInstanceNameLength = 63

// InstanceNamePattern is the pattern for valid instance names: lowercase
// alphanumeric, hyphens allowed (but not at start/end).
var InstanceNamePattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// ValidateInstanceName checks a redis history namespace. The name becomes
// part of every key, so it is restricted to a DNS-style label.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("instance name cannot be empty")
	}

	if len(name) > MaxInstanceNameLength {
		return fmt.Errorf("instance name too long: %d characters (max: %d)", len(name), MaxInstanceNameLength)
	}

	if !InstanceNamePattern.MatchString(name) {
		return fmt.Errorf("invalid instance name '%s': must be lowercase alphanumeric with hyphens (not at start/end)", name)
	}

	return nil
}
