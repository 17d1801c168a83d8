package mailer

// Service delivers one email. The returned id is provider specific and may be empty.
type Service interface {
	Send(toEmail, toName, subject, text, html string) (string, error)
}
