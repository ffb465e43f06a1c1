// Package certificates turns a registration into a printable certificate document.
package certificates

import (
	"sort"

	"github.com/eventportal/backend/internal/models"
)

// DefaultLocation is shown when the event has no location.
const DefaultLocation = "Local a definir"

// Signer is one signature block printed on the certificate.
type Signer struct {
	Name         string
	Title        string
	SignatureURL string
	DisplayOrder int
}

// Context is the data a certificate template is executed with.
type Context struct {
	AttendeeName   string
	TutorialTitle  string
	EventTitle     string
	EventStartDate string
	EventLocation  string
	DurationHours  int
	Signers        []Signer
}

// BuildContext derives the template data for d. Signers are ordered by display order, then name.
func BuildContext(d *models.RegistrationDetail, signers []Signer) Context {
	location := d.Event.Location
	if location == "" {
		location = DefaultLocation
	}
	ordered := make([]Signer, len(signers))
	copy(ordered, signers)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].DisplayOrder != ordered[j].DisplayOrder {
			return ordered[i].DisplayOrder < ordered[j].DisplayOrder
		}
		return ordered[i].Name < ordered[j].Name
	})
	return Context{
		AttendeeName:   d.Attendee.FullName,
		TutorialTitle:  d.Tutorial.Title,
		EventTitle:     d.Event.Title,
		EventStartDate: d.Event.StartDate.Format("02/01/2006"),
		EventLocation:  location,
		DurationHours:  d.Tutorial.DurationHours(),
		Signers:        ordered,
	}
}
