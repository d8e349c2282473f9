package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeperDeactivatesExpiredGrants(t *testing.T) {
	f := newAccessFixture(t)
	grant := f.createGrant(t, validCreateRequest(f.clock.Now()))
	f.clock.Advance(48 * time.Hour)

	sweeper := NewSweeper(f.service, 10*time.Millisecond, nil)
	sweeper.Start(context.Background())
	defer sweeper.Stop()

	require.Eventually(t, func() bool {
		return !f.repo.grantActive(grant.ID)
	}, time.Second, 10*time.Millisecond)
}

func TestSweeperStopIsIdempotent(t *testing.T) {
	f := newAccessFixture(t)
	sweeper := NewSweeper(f.service, time.Hour, nil)

	sweeper.Start(context.Background())
	sweeper.Stop()
	sweeper.Stop()
	assert.NotPanics(t, func() { sweeper.Stop() })
}
