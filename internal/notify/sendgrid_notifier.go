package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/gridvolt/auth-service/internal/utils"
)

type sendgridNotifier struct {
	client      *sendgrid.Client
	fromName    string
	fromEmail   string
	sandboxMode bool
}

// NewSendGridNotifier returns an email Notifier backed by SendGrid.
func NewSendGridNotifier(apiKey, fromName, fromEmail string, sandboxMode bool) Notifier {
	return &sendgridNotifier{
		client:      sendgrid.NewSendClient(apiKey),
		fromName:    fromName,
		fromEmail:   fromEmail,
		sandboxMode: sandboxMode,
	}
}

func (n *sendgridNotifier) Send(_ context.Context, recipient, subject, body string) error {
	from := mail.NewEmail(n.fromName, n.fromEmail)
	to := mail.NewEmail("", recipient)
	message := mail.NewSingleEmail(from, subject, to, body, fmt.Sprintf("<p>%s</p>", body))

	if n.sandboxMode {
		ms := mail.NewMailSettings()
		ms.SetSandboxMode(mail.NewSetting(true))
		message.MailSettings = ms
	}

	if _, err := n.client.Send(message); err != nil {
		utils.Logger.WithError(err).Errorf("Failed to send email to %s via SendGrid", recipient)
		return err
	}
	return nil
}
