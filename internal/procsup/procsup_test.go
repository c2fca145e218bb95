package procsup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHealth struct{ healthy bool }

func (f *fakeHealth) HealthCheck(ctx context.Context) bool { return f.healthy }

func TestStartAndStop(t *testing.T) {
	s := New("sleep", []string{"30"}, "127.0.0.1", 9999, nil)
	health := &fakeHealth{healthy: true}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.Start(ctx, health, 3*time.Second)
	require.NoError(t, err)
	assert.True(t, s.IsRunning())

	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.IsRunning())
}

func TestStartTimesOutWhenUnhealthy(t *testing.T) {
	s := New("sleep", []string{"30"}, "127.0.0.1", 9999, nil)
	health := &fakeHealth{healthy: false}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := s.Start(ctx, health, 2*time.Second)
	require.Error(t, err)
	assert.False(t, s.IsRunning())
}

func TestServerURL(t *testing.T) {
	s := New("true", nil, "127.0.0.1", 8080, nil)
	assert.Equal(t, "http://127.0.0.1:8080", s.ServerURL())
}
