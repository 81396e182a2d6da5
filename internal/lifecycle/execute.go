package lifecycle

import (
	"context"

	"github.com/systmms/iamrotate/internal/keystore"
	"github.com/systmms/iamrotate/internal/logging"
	"github.com/systmms/iamrotate/internal/secure"
)

// Result records the outcome of one executed action.
type Result struct {
	OK    bool   `json:"ok"`
	KeyID string `json:"key_id,omitempty"`
	Error string `json:"error,omitempty"`

	// NewKeyID is set for a successful create.
	NewKeyID string `json:"new_key_id,omitempty"`

	// Secret holds the created key's secret, sealed. Excluded from any
	// serialization; destroyed by the notification pipeline right after
	// a successful publish.
	Secret *secure.Enclave `json:"-"`
}

// Results maps action kind to its outcome. Known weakness, carried by
// design: if the same kind ever appeared twice in one user's sequence the
// later result would overwrite the earlier one. The decision engine never
// emits such a sequence today; keying by action instance instead needs a
// semantics decision for duplicates first.
type Results map[ActionKind]Result

// Created returns the create result if the sequence produced a new key.
func (r Results) Created() (Result, bool) {
	res, ok := r[ActionCreate]
	if !ok || !res.OK {
		return Result{}, false
	}
	return res, true
}

// Execute applies a decided action sequence for one user, strictly in
// input order, one gateway call per action. There is no retry and no
// rollback: a failed action is recorded and the sequence continues,
// because later actions never depend on an earlier one succeeding within
// the same run (cross-action dependencies are expressed across runs, via
// re-observation of the key snapshot).
func Execute(ctx context.Context, gw keystore.Gateway, username string, actions []Action, logger *logging.Logger) Results {
	results := make(Results, len(actions))

	for _, action := range actions {
		switch action.Kind {
		case ActionDelete:
			err := gw.DeleteKey(ctx, username, action.KeyID)
			results[ActionDelete] = actionResult(action, err)
			logOutcome(logger, username, action, err)

		case ActionDisable:
			err := gw.DisableKey(ctx, username, action.KeyID)
			results[ActionDisable] = actionResult(action, err)
			logOutcome(logger, username, action, err)

		case ActionCreate:
			newKey, err := gw.CreateKey(ctx, username)
			if err != nil {
				results[ActionCreate] = Result{Error: err.Error()}
				logOutcome(logger, username, action, err)
				continue
			}
			results[ActionCreate] = Result{
				OK:       true,
				NewKeyID: newKey.ID,
				Secret:   newKey.Secret,
			}
			logOutcome(logger, username, action, nil)
		}
	}

	return results
}

func actionResult(action Action, err error) Result {
	if err != nil {
		return Result{KeyID: action.KeyID, Error: err.Error()}
	}
	return Result{OK: true, KeyID: action.KeyID}
}

func logOutcome(logger *logging.Logger, username string, action Action, err error) {
	if logger == nil {
		return
	}
	if err != nil {
		logger.Error("%s: %s failed: %v", username, action, err)
		return
	}
	logger.Info("%s: %s", username, action)
}
