package lifecycle

import (
	"sort"
	"time"

	"github.com/systmms/iamrotate/internal/keystore"
)

// Decide maps one user's key snapshot to a lifecycle state and an ordered
// action list. It is pure: no I/O, no clock access beyond the now
// argument, so re-running it against the post-execution snapshot is how
// rotation converges across repeated runs.
//
// Deletions of inactive keys always come first, in snapshot order:
// removing dead weight is safe and never conflicts with a pending disable
// or create on a different key id. Disabling the older of two active keys
// is deferred behind the grace period so a user mid-rotation is never
// locked out. A new key is created only when exactly one active key
// exists and it is provably too old, which keeps the key count bounded;
// the hard limit of two keys is the backstop against proliferation.
func Decide(keys []keystore.AccessKey, found bool, pol Policy, now time.Time) (State, []Action) {
	if !found {
		return StateUserNotFound, nil
	}
	if len(keys) == 0 {
		return StateNoCredentials, nil
	}
	// A user must only ever have 0, 1 or 2 keys. Three or more means a
	// program error somewhere; fail closed, never partially remediate.
	if len(keys) >= 3 {
		return StateManyCredentials, nil
	}

	var active, inactive []keystore.AccessKey
	for _, key := range keys {
		if key.Inactive() {
			inactive = append(inactive, key)
		} else {
			active = append(active, key)
		}
	}

	// Prune disabled keys unconditionally, preserving snapshot order.
	var actions []Action
	for _, key := range inactive {
		actions = append(actions, Delete(key.ID))
	}

	switch len(active) {
	case 0:
		return StateNoCredentialsActive, actions

	case 2:
		// Either the user holds two live key sets (no longer supported)
		// or a previous run granted them a fresh one. Only the oldest is
		// disabled per run; gradual rotation is intentional.
		pair := []keystore.AccessKey{active[0], active[1]}
		sort.Slice(pair, func(i, j int) bool {
			return pair[i].CreatedAt.Before(pair[j].CreatedAt)
		})
		oldest, newest := pair[0], pair[1]
		if wholeDays(now.Sub(newest.CreatedAt)) > int(pol.GracePeriodDays) {
			return StateAllCredentialsActive, append(actions, Disable(oldest.ID))
		}
		// Transition window, both keys coexist deliberately.
		return StateGracePeriod, actions

	case 1:
		if wholeDays(now.Sub(active[0].CreatedAt)) > int(pol.MaxKeyAgeDays) {
			return StateOldCredentials, append(actions, Create())
		}
		return StateIdeal, actions
	}

	// Unreachable given the count checks above; degrade rather than
	// coerce to a success path.
	return StateUnknown, nil
}

// wholeDays truncates a duration to whole days, matching calendar-age
// policy arithmetic: a key is "8 days old" only once a full 8×24h have
// elapsed.
func wholeDays(d time.Duration) int {
	return int(d.Hours() / 24)
}
