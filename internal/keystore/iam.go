package keystore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"golang.org/x/time/rate"

	"github.com/systmms/iamrotate/internal/secure"
)

// IAMClientAPI defines the interface for the AWS IAM operations the
// gateway needs. This allows for mocking in tests.
type IAMClientAPI interface {
	ListAccessKeys(ctx context.Context, params *iam.ListAccessKeysInput, optFns ...func(*iam.Options)) (*iam.ListAccessKeysOutput, error)
	DeleteAccessKey(ctx context.Context, params *iam.DeleteAccessKeyInput, optFns ...func(*iam.Options)) (*iam.DeleteAccessKeyOutput, error)
	UpdateAccessKey(ctx context.Context, params *iam.UpdateAccessKeyInput, optFns ...func(*iam.Options)) (*iam.UpdateAccessKeyOutput, error)
	CreateAccessKey(ctx context.Context, params *iam.CreateAccessKeyInput, optFns ...func(*iam.Options)) (*iam.CreateAccessKeyOutput, error)
	ListUsers(ctx context.Context, params *iam.ListUsersInput, optFns ...func(*iam.Options)) (*iam.ListUsersOutput, error)
	GenerateCredentialReport(ctx context.Context, params *iam.GenerateCredentialReportInput, optFns ...func(*iam.Options)) (*iam.GenerateCredentialReportOutput, error)
	GetCredentialReport(ctx context.Context, params *iam.GetCredentialReportInput, optFns ...func(*iam.Options)) (*iam.GetCredentialReportOutput, error)
}

// AWSSettings carries the provider connection settings from configuration.
// Endpoint and the static credential pair exist for LocalStack and tests.
type AWSSettings struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// IAMGateway implements Gateway against AWS IAM. All calls share one rate
// limiter so a large roster cannot trip the IAM API throttle.
type IAMGateway struct {
	client  IAMClientAPI
	limiter *rate.Limiter
}

// IAMOption is a functional option for configuring the gateway
type IAMOption func(*IAMGateway)

// WithIAMClient sets a custom IAM client (for testing)
func WithIAMClient(client IAMClientAPI) IAMOption {
	return func(g *IAMGateway) {
		g.client = client
	}
}

// WithRateLimit overrides the default request rate limit.
func WithRateLimit(perSecond float64, burst int) IAMOption {
	return func(g *IAMGateway) {
		g.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewIAMGateway creates a gateway backed by a real IAM client unless one
// was injected via options.
func NewIAMGateway(ctx context.Context, settings AWSSettings, opts ...IAMOption) (*IAMGateway, error) {
	g := &IAMGateway{
		// IAM allows far more, but rotation is not latency sensitive.
		limiter: rate.NewLimiter(rate.Limit(10), 5),
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.client == nil {
		var configOpts []func(*awsconfig.LoadOptions) error
		if settings.Region != "" {
			configOpts = append(configOpts, awsconfig.WithRegion(settings.Region))
		}
		if settings.AccessKeyID != "" && settings.SecretAccessKey != "" {
			configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(settings.AccessKeyID, settings.SecretAccessKey, ""),
			))
		}

		cfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}

		var clientOpts []func(*iam.Options)
		if settings.Endpoint != "" {
			endpoint := settings.Endpoint
			clientOpts = append(clientOpts, func(o *iam.Options) {
				o.BaseEndpoint = &endpoint
			})
		}
		g.client = iam.NewFromConfig(cfg, clientOpts...)
	}

	return g, nil
}

// ListKeys returns the user's access keys in the order IAM reports them.
// A NoSuchEntity response maps to found=false rather than an error.
func (g *IAMGateway) ListKeys(ctx context.Context, username string) ([]AccessKey, bool, error) {
	var keys []AccessKey

	paginator := iam.NewListAccessKeysPaginator(g.client, &iam.ListAccessKeysInput{
		UserName: aws.String(username),
	})
	for paginator.HasMorePages() {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, false, err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			if isNoSuchEntity(err) {
				return nil, false, nil
			}
			return nil, false, fmt.Errorf("listing access keys for %s: %w", username, err)
		}
		for _, md := range page.AccessKeyMetadata {
			keys = append(keys, AccessKey{
				ID:        aws.ToString(md.AccessKeyId),
				CreatedAt: aws.ToTime(md.CreateDate),
				Status:    KeyStatus(md.Status),
			})
		}
	}

	return keys, true, nil
}

// DeleteKey permanently removes an access key.
func (g *IAMGateway) DeleteKey(ctx context.Context, username, keyID string) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := g.client.DeleteAccessKey(ctx, &iam.DeleteAccessKeyInput{
		UserName:    aws.String(username),
		AccessKeyId: aws.String(keyID),
	})
	if err != nil {
		return fmt.Errorf("deleting access key %s for %s: %w", keyID, username, err)
	}
	return nil
}

// DisableKey marks an access key Inactive. The key keeps existing and is
// deleted on a later run once the decision engine sees it inactive.
func (g *IAMGateway) DisableKey(ctx context.Context, username, keyID string) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := g.client.UpdateAccessKey(ctx, &iam.UpdateAccessKeyInput{
		UserName:    aws.String(username),
		AccessKeyId: aws.String(keyID),
		Status:      iamtypes.StatusTypeInactive,
	})
	if err != nil {
		return fmt.Errorf("disabling access key %s for %s: %w", keyID, username, err)
	}
	return nil
}

// CreateKey mints a new access key and seals the secret immediately.
func (g *IAMGateway) CreateKey(ctx context.Context, username string) (NewKey, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return NewKey{}, err
	}
	out, err := g.client.CreateAccessKey(ctx, &iam.CreateAccessKeyInput{
		UserName: aws.String(username),
	})
	if err != nil {
		return NewKey{}, fmt.Errorf("creating access key for %s: %w", username, err)
	}
	if out.AccessKey == nil || out.AccessKey.AccessKeyId == nil || out.AccessKey.SecretAccessKey == nil {
		return NewKey{}, fmt.Errorf("creating access key for %s: provider returned an incomplete key", username)
	}

	// memguard wipes the input slice when sealing, so the plaintext
	// secret does not outlive this function.
	enclave := secure.NewEnclave([]byte(*out.AccessKey.SecretAccessKey))

	return NewKey{
		ID:     *out.AccessKey.AccessKeyId,
		Secret: enclave,
	}, nil
}

// ListUsernames returns every IAM user name in the account.
func (g *IAMGateway) ListUsernames(ctx context.Context) ([]string, error) {
	var names []string

	paginator := iam.NewListUsersPaginator(g.client, &iam.ListUsersInput{})
	for paginator.HasMorePages() {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing users: %w", err)
		}
		for _, u := range page.Users {
			names = append(names, aws.ToString(u.UserName))
		}
	}

	return names, nil
}

func isNoSuchEntity(err error) bool {
	var nse *iamtypes.NoSuchEntityException
	return errors.As(err, &nse)
}
