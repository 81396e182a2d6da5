package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/iamrotate/internal/keystore"
)

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func keyAged(id string, ageDays int, status keystore.KeyStatus) keystore.AccessKey {
	return keystore.AccessKey{
		ID:        id,
		CreatedAt: testNow.Add(-time.Duration(ageDays) * 24 * time.Hour),
		Status:    status,
	}
}

func TestDecide(t *testing.T) {
	t.Parallel()

	pol := Policy{MaxKeyAgeDays: 90, GracePeriodDays: 7}

	tests := []struct {
		name        string
		keys        []keystore.AccessKey
		found       bool
		wantState   State
		wantActions []Action
	}{
		{
			name:      "user not found",
			keys:      nil,
			found:     false,
			wantState: StateUserNotFound,
		},
		{
			name:      "no credentials",
			keys:      []keystore.AccessKey{},
			found:     true,
			wantState: StateNoCredentials,
		},
		{
			name: "three keys fail closed",
			keys: []keystore.AccessKey{
				keyAged("AKIA1", 10, keystore.StatusActive),
				keyAged("AKIA2", 20, keystore.StatusActive),
				keyAged("AKIA3", 30, keystore.StatusInactive),
			},
			found:     true,
			wantState: StateManyCredentials,
		},
		{
			name: "single fresh key is ideal",
			keys: []keystore.AccessKey{
				keyAged("AKIA1", 30, keystore.StatusActive),
			},
			found:       true,
			wantState:   StateIdeal,
			wantActions: nil,
		},
		{
			name: "single key exactly at max age is still ideal",
			keys: []keystore.AccessKey{
				keyAged("AKIA1", 90, keystore.StatusActive),
			},
			found:     true,
			wantState: StateIdeal,
		},
		{
			name: "single key past max age gets a new one",
			keys: []keystore.AccessKey{
				keyAged("AKIA1", 91, keystore.StatusActive),
			},
			found:       true,
			wantState:   StateOldCredentials,
			wantActions: []Action{Create()},
		},
		{
			name: "very old key still only gets a create",
			keys: []keystore.AccessKey{
				keyAged("AKIA1", 730, keystore.StatusActive),
			},
			found:       true,
			wantState:   StateOldCredentials,
			wantActions: []Action{Create()},
		},
		{
			name: "two active keys inside grace period",
			keys: []keystore.AccessKey{
				keyAged("AKIAOLD", 95, keystore.StatusActive),
				keyAged("AKIANEW", 3, keystore.StatusActive),
			},
			found:     true,
			wantState: StateGracePeriod,
		},
		{
			name: "newest exactly at grace boundary still in grace",
			keys: []keystore.AccessKey{
				keyAged("AKIAOLD", 95, keystore.StatusActive),
				keyAged("AKIANEW", 7, keystore.StatusActive),
			},
			found:     true,
			wantState: StateGracePeriod,
		},
		{
			name: "two active keys past grace disable the oldest",
			keys: []keystore.AccessKey{
				keyAged("AKIANEW", 8, keystore.StatusActive),
				keyAged("AKIAOLD", 95, keystore.StatusActive),
			},
			found:       true,
			wantState:   StateAllCredentialsActive,
			wantActions: []Action{Disable("AKIAOLD")},
		},
		{
			name: "only inactive keys are deleted and the row passes",
			keys: []keystore.AccessKey{
				keyAged("AKIA1", 200, keystore.StatusInactive),
				keyAged("AKIA2", 100, keystore.StatusInactive),
			},
			found:       true,
			wantState:   StateNoCredentialsActive,
			wantActions: []Action{Delete("AKIA1"), Delete("AKIA2")},
		},
		{
			name: "inactive key deleted alongside an old active one",
			keys: []keystore.AccessKey{
				keyAged("AKIADEAD", 200, keystore.StatusInactive),
				keyAged("AKIALIVE", 120, keystore.StatusActive),
			},
			found:       true,
			wantState:   StateOldCredentials,
			wantActions: []Action{Delete("AKIADEAD"), Create()},
		},
		{
			name: "inactive key deleted alongside an ideal active one",
			keys: []keystore.AccessKey{
				keyAged("AKIADEAD", 200, keystore.StatusInactive),
				keyAged("AKIALIVE", 10, keystore.StatusActive),
			},
			found:       true,
			wantState:   StateIdeal,
			wantActions: []Action{Delete("AKIADEAD")},
		},
		{
			name: "unknown status counts as active",
			keys: []keystore.AccessKey{
				keyAged("AKIA1", 30, keystore.KeyStatus("Unexpected")),
			},
			found:     true,
			wantState: StateIdeal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, actions := Decide(tt.keys, tt.found, pol, testNow)
			assert.Equal(t, tt.wantState, state)
			if tt.wantActions != nil {
				assert.Equal(t, tt.wantActions, actions)
			}
		})
	}
}

func TestDecideDeletionsPrecedeEverything(t *testing.T) {
	t.Parallel()

	keys := []keystore.AccessKey{
		keyAged("AKIANEW", 10, keystore.StatusActive),
		keyAged("AKIADEAD", 50, keystore.StatusInactive),
		keyAged("AKIAOLD", 100, keystore.StatusActive),
	}
	// Three keys total trips the hard limit even though one is inactive.
	state, actions := Decide(keys, true, DefaultPolicy(), testNow)
	assert.Equal(t, StateManyCredentials, state)
	assert.Empty(t, actions)
}

func TestDecideConvergesAcrossRuns(t *testing.T) {
	t.Parallel()

	// A user with one 120-day-old key converges over three simulated
	// runs: create, then (past grace) disable the old key, then delete
	// the disabled key.
	pol := DefaultPolicy()
	old := keyAged("AKIAOLD", 120, keystore.StatusActive)

	state, actions := Decide([]keystore.AccessKey{old}, true, pol, testNow)
	require.Equal(t, StateOldCredentials, state)
	require.Equal(t, []Action{Create()}, actions)

	// Run two, eight days later: the new key exists and is out of grace.
	later := testNow.Add(8 * 24 * time.Hour)
	fresh := keystore.AccessKey{ID: "AKIANEW", CreatedAt: testNow, Status: keystore.StatusActive}
	state, actions = Decide([]keystore.AccessKey{old, fresh}, true, pol, later)
	require.Equal(t, StateAllCredentialsActive, state)
	require.Equal(t, []Action{Disable("AKIAOLD")}, actions)

	// Run three: the old key shows up inactive and is pruned.
	old.Status = keystore.StatusInactive
	state, actions = Decide([]keystore.AccessKey{old, fresh}, true, pol, later)
	require.Equal(t, StateIdeal, state)
	require.Equal(t, []Action{Delete("AKIAOLD")}, actions)
}

func TestWholeDays(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, wholeDays(23*time.Hour))
	assert.Equal(t, 1, wholeDays(24*time.Hour))
	assert.Equal(t, 7, wholeDays(7*24*time.Hour+time.Minute))
	assert.Equal(t, 90, wholeDays(90*24*time.Hour+23*time.Hour))
}

func TestStateFailed(t *testing.T) {
	t.Parallel()

	assert.True(t, StateUserNotFound.Failed())
	assert.True(t, StateNoCredentials.Failed())
	assert.True(t, StateManyCredentials.Failed())
	assert.True(t, StateUnknown.Failed())

	assert.False(t, StateIdeal.Failed())
	assert.False(t, StateGracePeriod.Failed())
	assert.False(t, StateAllCredentialsActive.Failed())
	assert.False(t, StateNoCredentialsActive.Failed())
	assert.False(t, StateOldCredentials.Failed())
}
