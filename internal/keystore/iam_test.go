package keystore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIAMClient implements IAMClientAPI with canned responses.
type fakeIAMClient struct {
	listKeysOut  *iam.ListAccessKeysOutput
	listKeysErr  error
	listUsersOut *iam.ListUsersOutput

	deletedKeys  []string
	updatedKeys  map[string]iamtypes.StatusType
	createKeyOut *iam.CreateAccessKeyOutput
	createKeyErr error

	generateCalls int
	generateOuts  []*iam.GenerateCredentialReportOutput
	getReportOut  *iam.GetCredentialReportOutput
}

func (f *fakeIAMClient) ListAccessKeys(ctx context.Context, params *iam.ListAccessKeysInput, optFns ...func(*iam.Options)) (*iam.ListAccessKeysOutput, error) {
	if f.listKeysErr != nil {
		return nil, f.listKeysErr
	}
	return f.listKeysOut, nil
}

func (f *fakeIAMClient) DeleteAccessKey(ctx context.Context, params *iam.DeleteAccessKeyInput, optFns ...func(*iam.Options)) (*iam.DeleteAccessKeyOutput, error) {
	f.deletedKeys = append(f.deletedKeys, aws.ToString(params.AccessKeyId))
	return &iam.DeleteAccessKeyOutput{}, nil
}

func (f *fakeIAMClient) UpdateAccessKey(ctx context.Context, params *iam.UpdateAccessKeyInput, optFns ...func(*iam.Options)) (*iam.UpdateAccessKeyOutput, error) {
	if f.updatedKeys == nil {
		f.updatedKeys = map[string]iamtypes.StatusType{}
	}
	f.updatedKeys[aws.ToString(params.AccessKeyId)] = params.Status
	return &iam.UpdateAccessKeyOutput{}, nil
}

func (f *fakeIAMClient) CreateAccessKey(ctx context.Context, params *iam.CreateAccessKeyInput, optFns ...func(*iam.Options)) (*iam.CreateAccessKeyOutput, error) {
	if f.createKeyErr != nil {
		return nil, f.createKeyErr
	}
	return f.createKeyOut, nil
}

func (f *fakeIAMClient) ListUsers(ctx context.Context, params *iam.ListUsersInput, optFns ...func(*iam.Options)) (*iam.ListUsersOutput, error) {
	return f.listUsersOut, nil
}

func (f *fakeIAMClient) GenerateCredentialReport(ctx context.Context, params *iam.GenerateCredentialReportInput, optFns ...func(*iam.Options)) (*iam.GenerateCredentialReportOutput, error) {
	out := f.generateOuts[f.generateCalls]
	if f.generateCalls < len(f.generateOuts)-1 {
		f.generateCalls++
	}
	return out, nil
}

func (f *fakeIAMClient) GetCredentialReport(ctx context.Context, params *iam.GetCredentialReportInput, optFns ...func(*iam.Options)) (*iam.GetCredentialReportOutput, error) {
	return f.getReportOut, nil
}

func newTestGateway(t *testing.T, client IAMClientAPI) *IAMGateway {
	t.Helper()
	gw, err := NewIAMGateway(context.Background(), AWSSettings{},
		WithIAMClient(client),
		WithRateLimit(1000, 1000),
	)
	require.NoError(t, err)
	return gw
}

func TestListKeysMapsMetadata(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	client := &fakeIAMClient{
		listKeysOut: &iam.ListAccessKeysOutput{
			AccessKeyMetadata: []iamtypes.AccessKeyMetadata{
				{AccessKeyId: aws.String("AKIA1"), CreateDate: aws.Time(created), Status: iamtypes.StatusTypeActive},
				{AccessKeyId: aws.String("AKIA2"), CreateDate: aws.Time(created), Status: iamtypes.StatusTypeInactive},
			},
		},
	}

	gw := newTestGateway(t, client)
	keys, found, err := gw.ListKeys(context.Background(), "AdaLovelace")
	require.NoError(t, err)
	assert.True(t, found)
	require.Len(t, keys, 2)

	assert.Equal(t, AccessKey{ID: "AKIA1", CreatedAt: created, Status: StatusActive}, keys[0])
	assert.True(t, keys[1].Inactive())
}

func TestListKeysUnknownUser(t *testing.T) {
	t.Parallel()

	client := &fakeIAMClient{
		listKeysErr: &iamtypes.NoSuchEntityException{Message: aws.String("no such user")},
	}

	gw := newTestGateway(t, client)
	keys, found, err := gw.ListKeys(context.Background(), "Ghost")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, keys)
}

func TestListKeysOtherErrorsPropagate(t *testing.T) {
	t.Parallel()

	client := &fakeIAMClient{listKeysErr: fmt.Errorf("throttled")}

	gw := newTestGateway(t, client)
	_, _, err := gw.ListKeys(context.Background(), "AdaLovelace")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AdaLovelace")
}

func TestDisableKeySetsInactive(t *testing.T) {
	t.Parallel()

	client := &fakeIAMClient{}
	gw := newTestGateway(t, client)

	require.NoError(t, gw.DisableKey(context.Background(), "AdaLovelace", "AKIA1"))
	assert.Equal(t, iamtypes.StatusTypeInactive, client.updatedKeys["AKIA1"])
}

func TestDeleteKey(t *testing.T) {
	t.Parallel()

	client := &fakeIAMClient{}
	gw := newTestGateway(t, client)

	require.NoError(t, gw.DeleteKey(context.Background(), "AdaLovelace", "AKIA1"))
	assert.Equal(t, []string{"AKIA1"}, client.deletedKeys)
}

func TestCreateKeySealsSecret(t *testing.T) {
	t.Parallel()

	client := &fakeIAMClient{
		createKeyOut: &iam.CreateAccessKeyOutput{
			AccessKey: &iamtypes.AccessKey{
				AccessKeyId:     aws.String("AKIAFRESH"),
				SecretAccessKey: aws.String("super-secret-value"),
			},
		},
	}

	gw := newTestGateway(t, client)
	newKey, err := gw.CreateKey(context.Background(), "AdaLovelace")
	require.NoError(t, err)
	assert.Equal(t, "AKIAFRESH", newKey.ID)

	require.NotNil(t, newKey.Secret)
	locked, err := newKey.Secret.Open()
	require.NoError(t, err)
	defer locked.Destroy()
	assert.Equal(t, "super-secret-value", locked.String())
}

func TestCreateKeyIncompleteResponse(t *testing.T) {
	t.Parallel()

	client := &fakeIAMClient{
		createKeyOut: &iam.CreateAccessKeyOutput{
			AccessKey: &iamtypes.AccessKey{AccessKeyId: aws.String("AKIAFRESH")},
		},
	}

	gw := newTestGateway(t, client)
	_, err := gw.CreateKey(context.Background(), "AdaLovelace")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incomplete")
}

func TestListUsernames(t *testing.T) {
	t.Parallel()

	client := &fakeIAMClient{
		listUsersOut: &iam.ListUsersOutput{
			Users: []iamtypes.User{
				{UserName: aws.String("AdaLovelace")},
				{UserName: aws.String("ci-deployer")},
			},
		},
	}

	gw := newTestGateway(t, client)
	names, err := gw.ListUsernames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AdaLovelace", "ci-deployer"}, names)
}
