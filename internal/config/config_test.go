package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvIntRange(t *testing.T) {
	t.Setenv("TEST_INT_RANGE", "5")
	assert.Equal(t, 5, getEnvIntRange("TEST_INT_RANGE", 2, 0, 10))

	t.Setenv("TEST_INT_RANGE", "-1")
	assert.Equal(t, 2, getEnvIntRange("TEST_INT_RANGE", 2, 0, 10))

	t.Setenv("TEST_INT_RANGE", "99")
	assert.Equal(t, 2, getEnvIntRange("TEST_INT_RANGE", 2, 0, 10))

	t.Setenv("TEST_INT_RANGE", "not-a-number")
	assert.Equal(t, 2, getEnvIntRange("TEST_INT_RANGE", 2, 0, 10))
}

func TestGetEnvFloatRange(t *testing.T) {
	t.Setenv("TEST_FLOAT_RANGE", "0.5")
	assert.Equal(t, 0.5, getEnvFloatRange("TEST_FLOAT_RANGE", 0.7, 0, 1))

	t.Setenv("TEST_FLOAT_RANGE", "1.5")
	assert.Equal(t, 0.7, getEnvFloatRange("TEST_FLOAT_RANGE", 0.7, 0, 1))
}

func TestTTSMaxRetriesRejectsNegative(t *testing.T) {
	t.Setenv("TTS_MAX_RETRIES", "-1")
	cfg := Load()
	assert.Equal(t, 2, cfg.TTSMaxRetries)
}
