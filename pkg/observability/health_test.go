package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestHealthCheckHealthy(t *testing.T) {
	checker := NewHealthChecker(fakePinger{}, 0)
	status := checker.Check(context.Background())
	assert.Equal(t, StatusHealthy, status.Status)
	assert.Empty(t, status.Message)
	assert.True(t, checker.Healthy(context.Background()))
}

func TestHealthCheckUnhealthy(t *testing.T) {
	checker := NewHealthChecker(fakePinger{err: errors.New("connection refused")}, 0)
	status := checker.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, status.Status)
	assert.Contains(t, status.Message, "connection refused")
	assert.False(t, checker.Healthy(context.Background()))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLogLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLogLevel("WARNING"))
	assert.Equal(t, ErrorLevel, ParseLogLevel(" error "))
	assert.Equal(t, InfoLevel, ParseLogLevel(""))
	assert.Equal(t, InfoLevel, ParseLogLevel("bogus"))
}
