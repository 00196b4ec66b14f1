package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateInstanceName(t *testing.T) {
	testCases := []struct {
		name      string
		inputName string
		wantErr   bool
		errMsg    string
	}{
		{
			name:      "valid simple name",
			inputName: "study1",
			wantErr:   false,
		},
		{
			name:      "valid name with hyphens",
			inputName: "hct-pilot-2",
			wantErr:   false,
		},
		{
			name:      "single character",
			inputName: "a",
			wantErr:   false,
		},
		{
			name:      "empty name",
			inputName: "",
			wantErr:   true,
			errMsg:    "cannot be empty",
		},
		{
			name:      "name with uppercase",
			inputName: "Study",
			wantErr:   true,
			errMsg:    "must be lowercase",
		},
		{
			name:      "name starting with hyphen",
			inputName: "-study",
			wantErr:   true,
			errMsg:    "not at start/end",
		},
		{
			name:      "name with colon",
			inputName: "study:1",
			wantErr:   true,
			errMsg:    "must be lowercase alphanumeric",
		},
		{
			name:      "name too long",
			inputName: strings.Repeat("a", MaxInstanceNameLength+1),
			wantErr:   true,
			errMsg:    "too long",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateInstanceName(tc.inputName)
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateRejectsBadInstance(t *testing.T) {
	c := &Config{
		Version: "1.0",
		Archive: ArchiveConfig{Driver: "redis", Redis: &RedisConfig{Instance: "Study_1"}},
	}
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive.redis.instance")
}
