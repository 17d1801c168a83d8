package reservation

import (
	"bytes"
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/diagnosis/museum-tickets/internal/domain"
)

const confirmationSubject = "Your reservation"

const confirmationText = `Thank you for your visit reservation.

Reservation: {{.Order.ConfirmationCode}}
Date: {{.VisitDate}} ({{.Duration}})
{{range .Order.Tickets}}
- {{.FirstName}} {{.LastName}}: {{.Price.StringFixed 2}} EUR{{end}}

Total: {{.Order.TotalAmount.StringFixed 2}} EUR

Present this email at the entrance.
`

const confirmationHTML = `<!doctype html>
<html>
<body style="font-family: sans-serif">
  <h1>Your reservation</h1>
  <p>Reservation <strong>{{.Order.ConfirmationCode}}</strong></p>
  <p>Visit on {{.VisitDate}}, {{.Duration}}</p>
  <table cellpadding="4">
    <tr><th align="left">Visitor</th><th align="left">Country</th><th align="right">Price</th></tr>
    {{range .Order.Tickets}}<tr><td>{{.FirstName}} {{.LastName}}</td><td>{{.Country}}</td><td align="right">{{.Price.StringFixed 2}} &euro;</td></tr>
    {{end}}
  </table>
  <p>Total: <strong>{{.Order.TotalAmount.StringFixed 2}} &euro;</strong></p>
  <p>Present this email at the entrance.</p>
</body>
</html>
`

var (
	confirmationTextTmpl = texttemplate.Must(texttemplate.New("confirmation_text").Parse(confirmationText))
	confirmationHTMLTmpl = htmltemplate.Must(htmltemplate.New("confirmation_html").Parse(confirmationHTML))
)

type confirmationData struct {
	Order     *domain.Order
	VisitDate string
	Duration  string
}

func durationLabel(d domain.VisitDuration) string {
	if d == domain.DurationHalf {
		return "half day"
	}
	return "full day"
}

// renderConfirmation returns the plain text and HTML bodies of the
// confirmation email for a confirmed order.
func renderConfirmation(o *domain.Order) (text, html string, err error) {
	data := confirmationData{
		Order:     o,
		VisitDate: o.VisitDate.Format(domain.DateLayout),
		Duration:  durationLabel(o.VisitDuration),
	}

	var tb, hb bytes.Buffer
	if err := confirmationTextTmpl.Execute(&tb, data); err != nil {
		return "", "", err
	}
	if err := confirmationHTMLTmpl.Execute(&hb, data); err != nil {
		return "", "", err
	}
	return tb.String(), hb.String(), nil
}
