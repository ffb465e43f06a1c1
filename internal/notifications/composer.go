package notifications

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/eventportal/backend/internal/models"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

const (
	confirmationTemplate = "subscription_confirmation.html"
	certificateTemplate  = "certificate.html"
)

// Composer renders the confirmation and certificate emails.
type Composer struct {
	siteURL  string
	location *time.Location
}

// NewComposer creates a composer. Links are built on siteURL; dates are shown in loc (UTC when nil).
func NewComposer(siteURL string, loc *time.Location) *Composer {
	if loc == nil {
		loc = time.UTC
	}
	return &Composer{siteURL: strings.TrimRight(siteURL, "/"), location: loc}
}

// ConfirmationLink returns <site>/confirmation/<token>.
func (c *Composer) ConfirmationLink(token string) string {
	return c.siteURL + "/confirmation/" + token
}

// ConfirmationEmail renders the message sent once when a registration is created.
func (c *Composer) ConfirmationEmail(d *models.RegistrationDetail) (Email, error) {
	subject := "Confirmação de Inscrição no Tutorial: " + d.Tutorial.Title
	start := d.Tutorial.StartAt.In(c.location)
	body, err := render(confirmationTemplate, map[string]string{
		"Subject":          subject,
		"Name":             d.Attendee.FullName,
		"TutorialTitle":    d.Tutorial.Title,
		"EventTitle":       d.Event.Title,
		"StartDate":        start.Format("02/01/2006"),
		"StartHour":        start.Format("15:04"),
		"Location":         d.Tutorial.Location,
		"ConfirmationLink": c.ConfirmationLink(d.Token.String()),
	})
	if err != nil {
		return Email{}, err
	}
	return Email{To: d.Attendee.Email, Subject: subject, HTML: body}, nil
}

// CertificateEmail renders the message carrying the certificate download link.
func (c *Composer) CertificateEmail(d *models.RegistrationDetail, downloadURL string) (Email, error) {
	subject := "Certificado de Participação: " + d.Tutorial.Title
	body, err := render(certificateTemplate, map[string]string{
		"Subject":       subject,
		"Name":          d.Attendee.FullName,
		"TutorialTitle": d.Tutorial.Title,
		"EventTitle":    d.Event.Title,
		"DownloadLink":  downloadURL,
		"Token":         d.Token.String(),
	})
	if err != nil {
		return Email{}, err
	}
	return Email{To: d.Attendee.Email, Subject: subject, HTML: body}, nil
}

func render(name string, data map[string]string) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
