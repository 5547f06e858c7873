package printing

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// PrintOptions carries everything the renderer needs to produce a preview.
// It travels inside PrintPreviewRequest.
type PrintOptions struct {
	// RequestID must be unique among outstanding requests
	RequestID RequestID `json:"request_id" validate:"gt=0"`
	// HTML content to render; mutually exclusive with URL
	HTML string `json:"html,omitempty" validate:"required_without=URL"`
	// URL to navigate to and render
	URL         string      `json:"url,omitempty" validate:"omitempty,url,excluded_with=HTML"`
	Title       string      `json:"title,omitempty" validate:"max=256"`
	PaperSize   PaperSize   `json:"paper_size,omitempty" validate:"omitempty,oneof=A3 A4 A5 LETTER LEGAL TABLOID"`
	Orientation Orientation `json:"orientation,omitempty" validate:"omitempty,oneof=PORTRAIT LANDSCAPE"`
	Margins     Margins     `json:"margins"`
	HeaderHTML  string      `json:"header_html,omitempty"`
	FooterHTML  string      `json:"footer_html,omitempty"`
	// PrintBackground prints background graphics
	PrintBackground bool `json:"print_background,omitempty"`
	// Scale of the page rendering; zero means 1.0
	Scale float64 `json:"scale,omitempty" validate:"omitempty,gte=0.1,lte=2"`
	// PageRanges such as "1-5, 8, 11-13"; empty prints all pages
	PageRanges string `json:"page_ranges,omitempty"`
}

var optionsValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the options and returns an ErrInvalidOptions-matching
// error that describes every offending field.
func (o *PrintOptions) Validate() error {
	if o == nil {
		return NewPreviewError(ErrCodeInvalidOptions, "print options are nil", nil)
	}
	if err := optionsValidator.Struct(o); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Namespace()+" ("+fe.Tag()+")")
			}
			return NewPreviewError(ErrCodeInvalidOptions,
				"invalid print options: "+strings.Join(fields, ", "), err)
		}
		return NewPreviewError(ErrCodeInvalidOptions, "invalid print options", err)
	}
	return nil
}

// WithDefaults returns a copy with zero values replaced by defaults
func (o PrintOptions) WithDefaults() PrintOptions {
	if o.PaperSize == "" {
		o.PaperSize = PaperSizeA4
	}
	if o.Orientation == "" {
		o.Orientation = OrientationPortrait
	}
	if o.Scale == 0 {
		o.Scale = 1.0
	}
	return o
}
