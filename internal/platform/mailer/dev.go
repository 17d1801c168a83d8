package mailer

import (
	"github.com/google/uuid"

	"github.com/diagnosis/museum-tickets/pkg/logger"
)

// DevMailer logs emails instead of sending them.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) Send(toEmail, toName, subject, text, html string) (string, error) {
	id := uuid.NewString()
	logger.Info("[DEV MAIL] email",
		"id", id,
		"to", toEmail,
		"name", toName,
		"subject", subject,
		"text", text,
	)
	return id, nil
}

var _ Service = (*DevMailer)(nil)
