package keystore

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reportCSV = `user,arn,user_creation_time,password_enabled,access_key_1_active,access_key_2_active
<root_account>,arn:aws:iam::1:root,2020-01-01T00:00:00+00:00,not_supported,false,false
AdaLovelace,arn:aws:iam::1:user/AdaLovelace,2021-01-01T00:00:00+00:00,true,true,false
ci-deployer,arn:aws:iam::1:user/ci-deployer,2021-01-01T00:00:00+00:00,false,true,true
gone-user,arn:aws:iam::1:user/gone-user,2021-01-01T00:00:00+00:00,false,N/A,no_information
`

func TestCredentialReportPollsUntilComplete(t *testing.T) {
	t.Parallel()

	generated := time.Date(2026, 8, 1, 6, 0, 0, 0, time.UTC)
	client := &fakeIAMClient{
		generateOuts: []*iam.GenerateCredentialReportOutput{
			{State: iamtypes.ReportStateTypeStarted},
			{State: iamtypes.ReportStateTypeInprogress},
			{State: iamtypes.ReportStateTypeComplete},
		},
		getReportOut: &iam.GetCredentialReportOutput{
			Content:       []byte(reportCSV),
			ReportFormat:  iamtypes.ReportFormatTypeTextCsv,
			GeneratedTime: aws.Time(generated),
		},
	}

	gw := newTestGateway(t, client)
	report, err := gw.CredentialReport(context.Background(), time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, generated, report.GeneratedAt)
	require.Len(t, report.Rows, 4)

	root := report.Rows[0]
	assert.Equal(t, "<root_account>", root.User)
	assert.False(t, root.HasAccess())

	ada := report.Rows[1]
	assert.True(t, ada.PasswordEnabled)
	assert.True(t, ada.AccessKey1Active)
	assert.True(t, ada.HasAccess())

	// N/A and no_information both mean no credential.
	gone := report.Rows[3]
	assert.False(t, gone.AccessKey1Active)
	assert.False(t, gone.AccessKey2Active)
	assert.False(t, gone.HasAccess())
}

func TestCredentialReportRejectsNonCSV(t *testing.T) {
	t.Parallel()

	client := &fakeIAMClient{
		generateOuts: []*iam.GenerateCredentialReportOutput{
			{State: iamtypes.ReportStateTypeComplete},
		},
		getReportOut: &iam.GetCredentialReportOutput{
			Content:      []byte("{}"),
			ReportFormat: iamtypes.ReportFormatType("application/json"),
		},
	}

	gw := newTestGateway(t, client)
	_, err := gw.CredentialReport(context.Background(), time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "format")
}

func TestParseCredentialReportMissingColumn(t *testing.T) {
	t.Parallel()

	_, err := parseCredentialReport([]byte("user,arn\nAdaLovelace,arn:aws:iam::1:user/AdaLovelace\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing column")
}

func TestCredentialReportCancelledWhilePolling(t *testing.T) {
	t.Parallel()

	client := &fakeIAMClient{
		generateOuts: []*iam.GenerateCredentialReportOutput{
			{State: iamtypes.ReportStateTypeStarted},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gw := newTestGateway(t, client)
	_, err := gw.CredentialReport(ctx, time.Minute)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
