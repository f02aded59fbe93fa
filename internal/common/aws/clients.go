// Package aws builds the SES and SNS clients from the default credential
// chain. Callers depend on the narrow interfaces in notify/mail and events;
// the concrete SDK clients satisfy both.
package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	apperrors "beacon/internal/common/errors"
)

// MaxAttempts bounds the SDK's own retryer for every call.
const MaxAttempts = 5

func load(ctx context.Context, service, region string) (aws.Config, error) {
	if region == "" {
		return aws.Config{}, apperrors.NewConfigInvalidError(service + ": region is required")
	}
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithRetryMaxAttempts(MaxAttempts),
	)
	if err != nil {
		return aws.Config{}, apperrors.NewExternalServiceError(service, fmt.Errorf("load aws config: %w", err))
	}
	return cfg, nil
}

// NewSESClient returns an SES client for region.
func NewSESClient(ctx context.Context, region string) (*ses.Client, error) {
	cfg, err := load(ctx, "ses", region)
	if err != nil {
		return nil, err
	}
	return ses.NewFromConfig(cfg), nil
}

// NewSNSClient returns an SNS client for region.
func NewSNSClient(ctx context.Context, region string) (*sns.Client, error) {
	cfg, err := load(ctx, "sns", region)
	if err != nil {
		return nil, err
	}
	return sns.NewFromConfig(cfg), nil
}
