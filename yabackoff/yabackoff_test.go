package yabackoff_test

import (
	"testing"
	"time"

	"github.com/YaCodeDev/GoVKTeamsBot/yabackoff"
	"github.com/stretchr/testify/assert"
)

func TestExponential_DoublesAndCaps(t *testing.T) {
	backoff := yabackoff.NewExponential(2*time.Second, 2, 10*time.Second)

	assert.Equal(t, 2*time.Second, backoff.Next())
	assert.Equal(t, 4*time.Second, backoff.Next())
	assert.Equal(t, 8*time.Second, backoff.Next())
	assert.Equal(t, 10*time.Second, backoff.Next())
	assert.Equal(t, 10*time.Second, backoff.Next())
}

func TestExponential_ResetRestoresInitial(t *testing.T) {
	backoff := yabackoff.NewExponential(time.Second, 2, time.Minute)

	_ = backoff.Next()
	_ = backoff.Next()

	backoff.Reset()

	assert.Equal(t, 0, backoff.Attempts())
	assert.Equal(t, time.Second, backoff.Next())
}

func TestExponential_ZeroValueUsesDefaults(t *testing.T) {
	var backoff yabackoff.Exponential

	assert.Equal(t, yabackoff.DefaultInitialInterval, backoff.Next())
	assert.Equal(t, 1, backoff.Attempts())
}

func TestExponential_AttemptsCount(t *testing.T) {
	var backoff yabackoff.Exponential

	for i := 0; i < 3; i++ {
		_ = backoff.Next()
	}

	assert.Equal(t, 3, backoff.Attempts())
}
