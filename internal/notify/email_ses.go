package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
)

type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender sends through Amazon SES v2.
type SESSender struct {
	client sesAPI
	from   string
	logger *logging.Logger
}

// SESConfig configures SESSender.
type SESConfig struct {
	FromEmail string
	FromName  string
}

// NewSESSender returns nil when client is nil.
func NewSESSender(client *sesv2.Client, cfg SESConfig, logger *logging.Logger) *SESSender {
	if client == nil {
		return nil
	}
	return newSESSender(client, cfg, logger)
}

func newSESSender(client sesAPI, cfg SESConfig, logger *logging.Logger) *SESSender {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	return &SESSender{client: client, from: fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromEmail), logger: logger}
}

func utf8Content(v string) *types.Content {
	return &types.Content{Data: aws.String(v), Charset: aws.String("UTF-8")}
}

func (s *SESSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("notify: ses client not configured")
	}
	body := &types.Body{}
	if msg.Body != "" {
		body.Text = utf8Content(msg.Body)
	}
	if msg.HTML != "" {
		body.Html = utf8Content(msg.HTML)
	}
	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{Subject: utf8Content(msg.Subject), Body: body},
		},
	})
	if err != nil {
		return fmt.Errorf("notify: ses send: %w", err)
	}
	s.logger.Info("email sent via ses", "subject", msg.Subject, "message_id", aws.ToString(out.MessageId))
	return nil
}

var _ EmailSender = (*SESSender)(nil)
