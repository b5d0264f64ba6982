package notify

import (
	"context"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/gridvolt/auth-service/internal/utils"
)

type twilioNotifier struct {
	client    *twilio.RestClient
	fromPhone string
}

// NewTwilioNotifier returns an SMS Notifier backed by Twilio. The subject is
// dropped; SMS carries only the body.
func NewTwilioNotifier(accountSID, authToken, fromPhone string) Notifier {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &twilioNotifier{client: client, fromPhone: fromPhone}
}

func (n *twilioNotifier) Send(_ context.Context, recipient, _ string, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(recipient)
	params.SetFrom(n.fromPhone)
	params.SetBody(body)

	if _, err := n.client.Api.CreateMessage(params); err != nil {
		utils.Logger.WithError(err).Errorf("Failed to send SMS to %s via Twilio", recipient)
		return err
	}
	return nil
}
