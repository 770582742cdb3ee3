// Package ses implements a Provider that sends emails via AWS SES v2.
package ses

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/smithy-go"

	"github.com/shineum/graph-sendmail/internal/email"
	"github.com/shineum/graph-sendmail/internal/provider"
)

// SESProviderConfig holds the configuration for creating a SESProvider.
type SESProviderConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// SESProvider sends emails via the AWS SES v2 API.
type SESProvider struct {
	client API
}

// API is the subset of the SES v2 client used by SESProvider.
type API interface {
	GetEmailIdentity(ctx context.Context, params *sesv2.GetEmailIdentityInput, optFns ...func(*sesv2.Options)) (*sesv2.GetEmailIdentityOutput, error)
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// New creates a new SESProvider with the given configuration. Static
// credentials are used when both keys are set, otherwise the default AWS
// credential chain applies. SDK retries are disabled.
func New(ctx context.Context, cfg SESProviderConfig) (*SESProvider, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithRetryMaxAttempts(1),
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESProvider{client: sesv2.NewFromConfig(awsCfg)}, nil
}

// NewWithClient creates a SESProvider with a custom client, used for testing.
func NewWithClient(client API) *SESProvider {
	return &SESProvider{client: client}
}

// Name returns the provider name.
func (s *SESProvider) Name() string {
	return "ses"
}

// ResolveIdentity finds the SES identity that allows sending as principal:
// the address itself, then its domain. An identity that exists but is not
// verified for sending counts as not found.
func (s *SESProvider) ResolveIdentity(ctx context.Context, principal string) (*provider.Identity, error) {
	if principal == "" {
		return nil, errors.New("empty sending address")
	}

	candidates := []string{principal}
	if at := strings.LastIndex(principal, "@"); at >= 0 && at < len(principal)-1 {
		candidates = append(candidates, principal[at+1:])
	}

	for _, name := range candidates {
		out, err := s.client.GetEmailIdentity(ctx, &sesv2.GetEmailIdentityInput{
			EmailIdentity: aws.String(name),
		})
		var notFound *types.NotFoundException
		if errors.As(err, &notFound) {
			slog.Debug("SES identity not found", "identity", name)
			continue
		}
		if err != nil {
			return nil, describe("GetEmailIdentity", err)
		}
		if !out.VerifiedForSendingStatus {
			slog.Debug("SES identity not verified for sending", "identity", name)
			continue
		}

		return &provider.Identity{
			ID:            name,
			PrincipalName: principal,
			DisplayName:   string(out.IdentityType),
			Mail:          principal,
		}, nil
	}

	return nil, nil
}

// Send delivers msg from the resolved identity's address. When the parsed
// From differs it becomes the Reply-To address.
func (s *SESProvider) Send(ctx context.Context, id *provider.Identity, msg *email.Outbound) error {
	if id == nil || id.PrincipalName == "" {
		return errors.New("send requires a resolved identity")
	}

	if _, err := s.client.SendEmail(ctx, buildSimpleInput(id.PrincipalName, msg)); err != nil {
		return describe("SendEmail", err)
	}
	return nil
}

// buildSimpleInput creates a plain-text SES SendEmailInput.
func buildSimpleInput(from string, msg *email.Outbound) *sesv2.SendEmailInput {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: append([]string(nil), msg.To...),
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(msg.Subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Text: &types.Content{
						Data:    aws.String(msg.Body.Content),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	if msg.From != "" && !strings.EqualFold(msg.From, from) {
		input.ReplyToAddresses = []string{msg.From}
	}
	return input
}

// describe wraps an SES error, naming the API error code when there is one.
func describe(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("SES %s failed (%s): %w", op, apiErr.ErrorCode(), err)
	}
	return fmt.Errorf("SES %s failed: %w", op, err)
}
