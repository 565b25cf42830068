package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanup(t *testing.T) {
	cases := []struct {
		name        string
		setup       func(reg *Registry, clk *fakeClock)
		wantDeleted bool
		wantRetry   time.Duration
	}{
		{
			name: "occupied room stays",
			setup: func(reg *Registry, clk *fakeClock) {
				clk.Advance(time.Hour)
			},
		},
		{
			name: "pending reconnect keeps room",
			setup: func(reg *Registry, clk *fakeClock) {
				_, _ = reg.Disconnect("h")
				clk.Advance(time.Hour)
			},
		},
		{
			name: "young empty room is retried at minimum age",
			setup: func(reg *Registry, clk *fakeClock) {
				_, _ = reg.Leave("h")
				clk.Advance(30 * time.Second)
			},
			wantRetry: DefaultMinRoomAge - 30*time.Second,
		},
		{
			name: "old empty room is deleted",
			setup: func(reg *Registry, clk *fakeClock) {
				_, _ = reg.Leave("h")
				clk.Advance(DefaultMinRoomAge)
			},
			wantDeleted: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg, clk := newTestRegistry("ROOM01")
			_, err := reg.Create("h")
			require.NoError(t, err)
			tc.setup(reg, clk)

			d := reg.Cleanup("ROOM01")
			assert.Equal(t, tc.wantDeleted, d.Deleted)
			assert.Equal(t, tc.wantRetry, d.RetryIn)

			_, err = reg.Lookup("ROOM01")
			if tc.wantDeleted {
				assert.ErrorIs(t, err, ErrRoomNotFound)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCleanup_MissingRoom(t *testing.T) {
	reg, _ := newTestRegistry()
	d := reg.Cleanup("GONE00")
	assert.True(t, d.Missing)
	assert.False(t, d.Deleted)
}

func TestCleanup_AfterGraceExpiry(t *testing.T) {
	reg, clk := newTestRegistry("ROOM01")
	_, err := reg.Create("h")
	require.NoError(t, err)
	_, ok := reg.Disconnect("h")
	require.True(t, ok)

	clk.Advance(DefaultGrace)
	assert.False(t, reg.Cleanup("ROOM01").Deleted)

	_, ok = reg.ExpireRecord("h")
	require.True(t, ok)
	assert.True(t, reg.Cleanup("ROOM01").Deleted)
}
