// Package report serializes the outcome of a batch pass. Reports never
// contain secrets or paste URLs; those are redacted upstream before any
// row reaches this package.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/systmms/iamrotate/internal/batch"
	"github.com/systmms/iamrotate/internal/lifecycle"
)

// Report is the persisted result of one run.
type Report struct {
	RunID       string                `json:"run_id"`
	GeneratedAt time.Time             `json:"generated_at"`
	Policy      lifecycle.Policy      `json:"policy"`
	Executed    bool                  `json:"executed"`
	Passes      []batch.ProcessedUser `json:"passes"`
	Fails       []batch.ProcessedUser `json:"fails"`
}

// New assembles a report from a batch outcome.
func New(outcome *batch.Outcome, pol lifecycle.Policy, executed bool) *Report {
	return &Report{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Policy:      pol,
		Executed:    executed,
		Passes:      outcome.Passes,
		Fails:       outcome.Fails,
	}
}

// Write serializes the report to path, mode 0600. The report carries
// account names and email addresses, so it is not world-readable.
func (r *Report) Write(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
