package keystore

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
)

// CredentialReportRow is one account from the IAM credential report,
// reduced to the fields the roster builder cares about.
type CredentialReportRow struct {
	User             string
	AccessKey1Active bool
	AccessKey2Active bool
	PasswordEnabled  bool
}

// HasAccess reports whether the account has any live credential at all.
// Accounts without access are excluded from the roster, they have nothing
// to rotate.
func (r CredentialReportRow) HasAccess() bool {
	return r.AccessKey1Active || r.AccessKey2Active || r.PasswordEnabled
}

// CredentialReport is the parsed account-wide report.
type CredentialReport struct {
	GeneratedAt time.Time
	Rows        []CredentialReportRow
}

// CredentialReport asks IAM to generate the account credential report,
// polls until it is ready and parses the CSV payload. IAM regenerates the
// report at most every four hours; a cached one is returned immediately.
func (g *IAMGateway) CredentialReport(ctx context.Context, pollInterval time.Duration) (*CredentialReport, error) {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	for {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		out, err := g.client.GenerateCredentialReport(ctx, &iam.GenerateCredentialReportInput{})
		if err != nil {
			return nil, fmt.Errorf("generating credential report: %w", err)
		}
		if out.State == iamtypes.ReportStateTypeComplete {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	out, err := g.client.GetCredentialReport(ctx, &iam.GetCredentialReportInput{})
	if err != nil {
		return nil, fmt.Errorf("downloading credential report: %w", err)
	}
	if out.ReportFormat != iamtypes.ReportFormatTypeTextCsv {
		return nil, fmt.Errorf("unexpected credential report format %q", out.ReportFormat)
	}

	rows, err := parseCredentialReport(out.Content)
	if err != nil {
		return nil, err
	}

	report := &CredentialReport{Rows: rows}
	if out.GeneratedTime != nil {
		report.GeneratedAt = *out.GeneratedTime
	}
	return report, nil
}

func parseCredentialReport(content []byte) ([]CredentialReportRow, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing credential report: %w", err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("credential report is empty")
	}

	col := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		col[name] = i
	}
	for _, required := range []string{"user", "access_key_1_active", "access_key_2_active", "password_enabled"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("credential report is missing column %q", required)
		}
	}

	rows := make([]CredentialReportRow, 0, len(records)-1)
	for _, record := range records[1:] {
		rows = append(rows, CredentialReportRow{
			User:             record[col["user"]],
			AccessKey1Active: reportBool(record[col["access_key_1_active"]]),
			AccessKey2Active: reportBool(record[col["access_key_2_active"]]),
			PasswordEnabled:  reportBool(record[col["password_enabled"]]),
		})
	}
	return rows, nil
}

// reportBool coerces credential report cells. Besides true/false the
// report emits "N/A" and "no_information", both of which mean no.
func reportBool(s string) bool {
	return s == "true"
}
