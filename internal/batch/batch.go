// Package batch runs one rotation pass: decide every roster row, then —
// only when explicitly authorized — execute the decided actions and
// notify users who received new credentials.
package batch

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/systmms/iamrotate/internal/keystore"
	"github.com/systmms/iamrotate/internal/lifecycle"
	"github.com/systmms/iamrotate/internal/logging"
	"github.com/systmms/iamrotate/internal/metrics"
	"github.com/systmms/iamrotate/internal/notify"
	"github.com/systmms/iamrotate/internal/roster"
)

// Notifier delivers new credentials out-of-band. Satisfied by
// notify.Pipeline; fakes stand in during tests.
type Notifier interface {
	Notify(ctx context.Context, notice notify.NewCredentialNotice) (notify.Delivery, error)
}

// ProcessedUser is one roster row carried through the pipeline stages.
// Each stage owns the record exclusively while it holds it; records are
// never shared between stages or between users.
type ProcessedUser struct {
	roster.User

	Success bool               `json:"success"`
	State   lifecycle.State    `json:"state"`
	Reason  string             `json:"reason"`
	Actions []lifecycle.Action `json:"actions"`

	// Results is set once the row has been executed.
	Results lifecycle.Results `json:"results,omitempty"`

	// Notified and Delivery are set by the notification stage. A row
	// whose execution produced no new key is simply not notified; that
	// is not an error.
	Notified bool             `json:"notified"`
	Delivery *notify.Delivery `json:"notification,omitempty"`
}

// Options configures one batch pass.
type Options struct {
	Policy lifecycle.Policy

	// Execute applies the decided actions. The confirmation gate lives
	// with the caller; by the time Run sees true, the human (or --yes)
	// has already spoken.
	Execute bool

	// Concurrency bounds parallel key lookups. Execution is always
	// sequential per user and across users.
	Concurrency int
}

// Outcome partitions the processed roster.
type Outcome struct {
	Passes []ProcessedUser `json:"passes"`
	Fails  []ProcessedUser `json:"fails"`
}

// Orchestrator wires the pipeline stages together.
type Orchestrator struct {
	gateway  keystore.Gateway
	notifier Notifier
	logger   *logging.Logger
	now      func() time.Time
}

// New creates an orchestrator. notifier may be nil for dry-runs.
func New(gateway keystore.Gateway, notifier Notifier, logger *logging.Logger) *Orchestrator {
	return &Orchestrator{
		gateway:  gateway,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock fixes the orchestrator's clock (tests).
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Run performs one pass over the roster. Lookup and decision happen for
// every row regardless of Options.Execute, with zero provider mutations;
// execution and notification run afterwards for passing rows only.
func (o *Orchestrator) Run(ctx context.Context, users []roster.User, opts Options) (*Outcome, error) {
	outcome, err := o.Decide(ctx, users, opts)
	if err != nil {
		return nil, err
	}
	if opts.Execute {
		if err := o.Execute(ctx, outcome, opts); err != nil {
			return nil, err
		}
	}
	return outcome, nil
}

// Decide resolves and decides every roster row. No provider mutations
// happen here, so a caller can show the plan, hold it at a confirmation
// gate and abort with the provider state untouched.
func (o *Orchestrator) Decide(ctx context.Context, users []roster.User, opts Options) (*Outcome, error) {
	now := o.now().UTC()

	rows := make([]ProcessedUser, len(users))

	g, gctx := errgroup.WithContext(ctx)
	limit := opts.Concurrency
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, user := range users {
		i, user := i, user
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows[i] = o.decideRow(gctx, user, opts.Policy, now)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	outcome := &Outcome{}
	for _, row := range rows {
		metrics.IncUser(string(row.State))
		if row.Success {
			outcome.Passes = append(outcome.Passes, row)
		} else {
			outcome.Fails = append(outcome.Fails, row)
		}
	}

	return outcome, nil
}

// Execute applies the decided actions of every passing row, in roster
// order, strictly sequentially. Failed rows are never executed.
func (o *Orchestrator) Execute(ctx context.Context, outcome *Outcome, opts Options) error {
	now := o.now().UTC()

	for i := range outcome.Passes {
		if err := ctx.Err(); err != nil {
			return err
		}
		o.executeRow(ctx, &outcome.Passes[i], opts.Policy, now)
	}

	return nil
}

// decideRow resolves one user's keys and runs the decision engine. A
// lookup failure degrades the row to user-not-found rather than aborting
// the batch; the provider state is re-observed next run anyway.
func (o *Orchestrator) decideRow(ctx context.Context, user roster.User, pol lifecycle.Policy, now time.Time) ProcessedUser {
	keys, found, err := o.gateway.ListKeys(ctx, user.IAMUsername)
	if err != nil {
		o.logger.Warn("%s: key lookup failed, treating as not found: %v", user.IAMUsername, err)
		found = false
	}

	state, actions := lifecycle.Decide(keys, found, pol, now)
	o.logger.Debug("%s: %s, %d action(s)", user.IAMUsername, state, len(actions))

	return ProcessedUser{
		User:    user,
		Success: !state.Failed(),
		State:   state,
		Reason:  state.Description(),
		Actions: actions,
	}
}

// executeRow applies one passing row's actions and, when a new key came
// out of them, pushes the credentials through the notification pipeline.
func (o *Orchestrator) executeRow(ctx context.Context, row *ProcessedUser, pol lifecycle.Policy, now time.Time) {
	if len(row.Actions) == 0 {
		return
	}

	row.Results = lifecycle.Execute(ctx, o.gateway, row.IAMUsername, row.Actions, o.logger)
	for kind, result := range row.Results {
		metrics.IncAction(string(kind), result.OK)
	}

	created, ok := row.Results.Created()
	if !ok {
		return
	}
	if o.notifier == nil {
		o.logger.Warn("%s: new key %s created but no notifier is configured", row.IAMUsername, created.NewKeyID)
		return
	}

	delivery, err := o.notifier.Notify(ctx, notify.NewCredentialNotice{
		Name:        row.Name,
		Email:       row.Email,
		IAMUsername: row.IAMUsername,
		AccessKeyID: created.NewKeyID,
		Secret:      created.Secret,
		ExpiresAt:   now.AddDate(0, 0, int(pol.GracePeriodDays)),
	})
	if err != nil {
		// The user keeps working credentials either way; the old key
		// is not disabled until a later run observes the new one.
		o.logger.Error("%s: notification failed, user left unnotified: %v", row.IAMUsername, err)
		metrics.IncNotification(false)
		return
	}

	row.Notified = true
	row.Delivery = &delivery
	metrics.IncNotification(true)
}
