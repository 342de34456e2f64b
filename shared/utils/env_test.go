package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue string
		expected     string
	}{
		{name: "environment variable set", envValue: "test_value", defaultValue: "default", expected: "test_value"},
		{name: "environment variable not set", envValue: "", defaultValue: "default", expected: "default"},
		{name: "whitespace only returns default", envValue: "   ", defaultValue: "fallback", expected: "fallback"},
		{name: "surrounding whitespace trimmed", envValue: "  value ", defaultValue: "fallback", expected: "value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_ENV_VAR", tt.envValue)
			assert.Equal(t, tt.expected, GetEnv("TEST_ENV_VAR", tt.defaultValue))
		})
	}
}

func TestFirstEnv(t *testing.T) {
	t.Run("first key wins", func(t *testing.T) {
		t.Setenv("TEST_PRIMARY", "primary")
		t.Setenv("TEST_ALIAS", "alias")
		assert.Equal(t, "primary", FirstEnv("default", "TEST_PRIMARY", "TEST_ALIAS"))
	})

	t.Run("falls through to alias", func(t *testing.T) {
		t.Setenv("TEST_PRIMARY", "")
		t.Setenv("TEST_ALIAS", "alias")
		assert.Equal(t, "alias", FirstEnv("default", "TEST_PRIMARY", "TEST_ALIAS"))
	})

	t.Run("default when none set", func(t *testing.T) {
		t.Setenv("TEST_PRIMARY", "")
		t.Setenv("TEST_ALIAS", "")
		assert.Equal(t, "default", FirstEnv("default", "TEST_PRIMARY", "TEST_ALIAS"))
	})
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue int
		expected     int
	}{
		{name: "valid integer", envValue: "42", defaultValue: 10, expected: 42},
		{name: "negative integer", envValue: "-100", defaultValue: 10, expected: -100},
		{name: "invalid integer returns default", envValue: "not_a_number", defaultValue: 10, expected: 10},
		{name: "empty value returns default", envValue: "", defaultValue: 25, expected: 25},
		{name: "float value returns default", envValue: "3.14", defaultValue: 10, expected: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_INT", tt.envValue)
			assert.Equal(t, tt.expected, GetEnvInt("TEST_INT", tt.defaultValue))
		})
	}
}

func TestGetEnvInt64(t *testing.T) {
	t.Setenv("TEST_INT64", "10737418240")
	assert.Equal(t, int64(10737418240), GetEnvInt64("TEST_INT64", 1))

	t.Setenv("TEST_INT64", "ten")
	assert.Equal(t, int64(1), GetEnvInt64("TEST_INT64", 1))
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		expected     bool
	}{
		{name: "true lowercase", envValue: "true", defaultValue: false, expected: true},
		{name: "true uppercase", envValue: "TRUE", defaultValue: false, expected: true},
		{name: "true as 1", envValue: "1", defaultValue: false, expected: true},
		{name: "false lowercase", envValue: "false", defaultValue: true, expected: false},
		{name: "false as 0", envValue: "0", defaultValue: true, expected: false},
		{name: "invalid bool returns default", envValue: "yes", defaultValue: true, expected: true},
		{name: "empty value returns default", envValue: "", defaultValue: true, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.envValue)
			assert.Equal(t, tt.expected, GetEnvBool("TEST_BOOL", tt.defaultValue))
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue time.Duration
		expected     time.Duration
	}{
		{name: "valid duration seconds", envValue: "30s", defaultValue: 10 * time.Second, expected: 30 * time.Second},
		{name: "complex duration", envValue: "2h45m30s", defaultValue: time.Hour, expected: 2*time.Hour + 45*time.Minute + 30*time.Second},
		{name: "milliseconds", envValue: "500ms", defaultValue: 100 * time.Millisecond, expected: 500 * time.Millisecond},
		{name: "zero disables", envValue: "0", defaultValue: time.Minute, expected: 0},
		{name: "invalid duration returns default", envValue: "not_a_duration", defaultValue: 15 * time.Second, expected: 15 * time.Second},
		{name: "empty value returns default", envValue: "", defaultValue: time.Minute, expected: time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.envValue)
			assert.Equal(t, tt.expected, GetEnvDuration("TEST_DURATION", tt.defaultValue))
		})
	}
}

func TestGetEnvFloat64(t *testing.T) {
	t.Setenv("TEST_FLOAT", "2.5")
	assert.Equal(t, 2.5, GetEnvFloat64("TEST_FLOAT", 1.0))

	t.Setenv("TEST_FLOAT", "fast")
	assert.Equal(t, 1.0, GetEnvFloat64("TEST_FLOAT", 1.0))
}
