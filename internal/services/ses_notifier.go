package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	pkglogger "github.com/tripledger/tripledger/pkg/logger"
)

// SESClient is the subset of the SES API the notifier uses
type SESClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESNotifier emails login codes to the allow-listed address using AWS SES
type SESNotifier struct {
	client      SESClient
	fromAddress string
	toAddress   string
	codeTTL     time.Duration
	logger      *slog.Logger
}

// NewAWSSESNotifier loads the default AWS configuration for region and
// returns a notifier backed by a real SES client
func NewAWSSESNotifier(ctx context.Context, region, fromAddress, toAddress string, codeTTL time.Duration, logger *slog.Logger) (*SESNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewSESNotifier(ses.NewFromConfig(cfg), fromAddress, toAddress, codeTTL, logger), nil
}

// NewSESNotifier creates a notifier around an existing SES client
func NewSESNotifier(client SESClient, fromAddress, toAddress string, codeTTL time.Duration, logger *slog.Logger) *SESNotifier {
	return &SESNotifier{
		client:      client,
		fromAddress: fromAddress,
		toAddress:   toAddress,
		codeTTL:     codeTTL,
		logger:      logger,
	}
}

func (n *SESNotifier) Send(ctx context.Context, code string) error {
	textBody := fmt.Sprintf(`Your Trip Ledger login code is %s

Enter this code on the website to sign in. It expires in %s.

If you did not request this code, you can ignore this email.
`, code, n.codeTTL)

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
    <p>Your Trip Ledger login code is</p>
    <p style="font-size: 28px; letter-spacing: 6px;"><strong>%s</strong></p>
    <p>It expires in %s. If you did not request this code, you can ignore this email.</p>
</body>
</html>
`, code, n.codeTTL)

	input := &ses.SendEmailInput{
		Source: aws.String(n.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{n.toAddress},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String("Your login code"),
			},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlBody)},
				Text: &types.Content{Data: aws.String(textBody)},
			},
		},
	}

	result, err := n.client.SendEmail(ctx, input)
	if err != nil {
		n.logger.Error("failed to send login code via SES",
			slog.String("email", pkglogger.SanitizedEmail(n.toAddress)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	n.logger.Info("login code sent via SES",
		slog.String("email", pkglogger.SanitizedEmail(n.toAddress)),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}
