package certificates

import (
	"bytes"
	"context"
	"html/template"
	"io"

	"github.com/eventportal/backend/pkg/apperror"
)

// A4 portrait page size in inches.
const (
	DefaultPageWidth  = 8.27
	DefaultPageHeight = 11.69
)

// Converter turns HTML markup into a paged document of the given size in inches.
type Converter interface {
	Convert(ctx context.Context, markup string, widthInches, heightInches float64) ([]byte, error)
}

// Renderer merges certificate templates and converts the result.
type Renderer struct {
	converter Converter
	width     float64
	height    float64
}

// NewRenderer creates a renderer. Non-positive sizes fall back to A4.
func NewRenderer(converter Converter, widthInches, heightInches float64) *Renderer {
	if widthInches <= 0 || heightInches <= 0 {
		widthInches, heightInches = DefaultPageWidth, DefaultPageHeight
	}
	return &Renderer{converter: converter, width: widthInches, height: heightInches}
}

// sampleContext has every field set so a template is exercised the way a real issue would.
var sampleContext = Context{
	AttendeeName:   "Maria da Silva",
	TutorialTitle:  "Tutorial",
	EventTitle:     "Event",
	EventStartDate: "01/01/2025",
	EventLocation:  DefaultLocation,
	DurationHours:  2,
	Signers:        []Signer{{Name: "Signer", Title: "Coordinator", SignatureURL: "https://example.com/signature.png", DisplayOrder: 1}},
}

func parse(markup string) (*template.Template, error) {
	tmpl, err := template.New("certificate").Option("missingkey=error").Parse(markup)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindValidation, apperror.CodeInvalidTemplate, "parse certificate template", err)
	}
	return tmpl, nil
}

// Merge executes the event template with data. A template that fails to parse or execute is a
// validation error of the stored template.
func Merge(markup string, data Context) (string, error) {
	tmpl, err := parse(markup)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", apperror.Wrap(apperror.KindValidation, apperror.CodeInvalidTemplate, "execute certificate template", err)
	}
	return buf.String(), nil
}

// Render merges markup with data and converts it into the certificate document.
func (r *Renderer) Render(ctx context.Context, markup string, data Context) ([]byte, error) {
	html, err := Merge(markup, data)
	if err != nil {
		return nil, err
	}
	doc, err := r.converter.Convert(ctx, html, r.width, r.height)
	if err != nil {
		return nil, apperror.External(apperror.CodeConversionFailed, "convert certificate", err)
	}
	if len(doc) == 0 {
		return nil, apperror.External(apperror.CodeConversionFailed, "converter returned empty document", nil)
	}
	return doc, nil
}

// ParseTemplate reports whether markup is a valid certificate template: it must parse and
// execute against sample data, so references to unknown fields are rejected up front.
func ParseTemplate(markup string) error {
	tmpl, err := parse(markup)
	if err != nil {
		return err
	}
	if err := tmpl.Execute(io.Discard, sampleContext); err != nil {
		return apperror.Wrap(apperror.KindValidation, apperror.CodeInvalidTemplate, "execute certificate template", err)
	}
	return nil
}
