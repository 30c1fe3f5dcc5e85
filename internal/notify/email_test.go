package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSendGrid struct {
	sent   []*mail.SGMailV3
	status int
	err    error
}

func (f *fakeSendGrid) SendWithContext(_ context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, email)
	return &rest.Response{StatusCode: f.status}, nil
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestNewSendGridSender_NilWithoutAPIKey(t *testing.T) {
	assert.Nil(t, NewSendGridSender(SendGridConfig{FromEmail: "bookings@nailit.example"}, nil))
}

func TestSendGridSender_Send(t *testing.T) {
	fake := &fakeSendGrid{status: 202}
	sender := newSendGridSender(fake, SendGridConfig{FromEmail: "bookings@nailit.example"}, nil)
	assert.Equal(t, defaultFromName, sender.fromName)

	err := sender.Send(context.Background(), EmailMessage{To: "sara@example.com", Subject: "Hi", Body: "Body"})
	require.NoError(t, err)
	require.Len(t, fake.sent, 1)
	assert.Equal(t, "Hi", fake.sent[0].Subject)
}

func TestSendGridSender_ErrorStatus(t *testing.T) {
	sender := newSendGridSender(&fakeSendGrid{status: 401}, SendGridConfig{}, nil)
	err := sender.Send(context.Background(), EmailMessage{To: "sara@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestSESSender_Send(t *testing.T) {
	fake := &fakeSES{}
	sender := newSESSender(fake, SESConfig{FromEmail: "bookings@nailit.example", FromName: "NailIt"}, nil)

	require.NoError(t, sender.Send(context.Background(), EmailMessage{To: "sara@example.com", Subject: "S", Body: "text", HTML: "<p>x</p>"}))
	assert.Equal(t, "NailIt <bookings@nailit.example>", aws.ToString(fake.input.FromEmailAddress))
	assert.Equal(t, []string{"sara@example.com"}, fake.input.Destination.ToAddresses)
	assert.Equal(t, "text", aws.ToString(fake.input.Content.Simple.Body.Text.Data))
	assert.NotNil(t, fake.input.Content.Simple.Body.Html)
}

func TestSESSender_WrapsError(t *testing.T) {
	boom := errors.New("throttled")
	sender := newSESSender(&fakeSES{err: boom}, SESConfig{}, nil)
	require.ErrorIs(t, sender.Send(context.Background(), EmailMessage{To: "a@b.c"}), boom)
}
