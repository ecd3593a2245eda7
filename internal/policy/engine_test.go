package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	require.NoError(t, err)

	cases := []struct {
		name  string
		input Input
		allow bool
	}{
		{"anonymous", Input{Action: "GET_THREADS"}, false},
		{"user reads own threads", Input{Action: "GET_THREADS", Authenticated: true, UID: "u1", UserID: "u1"}, true},
		{"user reads other threads", Input{Action: "GET_THREADS", Authenticated: true, UID: "u1", UserID: "u2"}, false},
		{"admin reads user threads", Input{Action: "GET_THREADS", Authenticated: true, Admin: true, UID: "a1", UserID: "u2"}, true},
		{"user creates assistant", Input{Action: "CREATE_ASSISTANT", Authenticated: true, UID: "u1", UserID: "u1"}, false},
		{"admin creates assistant", Input{Action: "CREATE_ASSISTANT", Authenticated: true, Admin: true, UID: "a1", UserID: "a1"}, true},
		{"admin lists other admin agents", Input{Action: "GET_AGENTS", Authenticated: true, Admin: true, UID: "a1", UserID: "a2"}, false},
		{"user runs without subject", Input{Action: "RUN_ASSISTANT", Authenticated: true, UID: "u1"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision, err := engine.Authorize(ctx, tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.allow, decision.Allow, decision.Reason)
			if !tc.allow {
				assert.NotEmpty(t, decision.Reason)
			}
		})
	}
}

func TestNewEngineRejectsInvalidPolicy(t *testing.T) {
	_, err := NewEngine(context.Background(), "package broken\n\nallow if {")
	assert.Error(t, err)
}
