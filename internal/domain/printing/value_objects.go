package printing

// Margins represents the page margins in millimeters
type Margins struct {
	Top    int `json:"top" validate:"min=0,max=100"`
	Right  int `json:"right" validate:"min=0,max=100"`
	Bottom int `json:"bottom" validate:"min=0,max=100"`
	Left   int `json:"left" validate:"min=0,max=100"`
}

// NewMargins creates a new Margins value object
func NewMargins(top, right, bottom, left int) (Margins, error) {
	if top < 0 || right < 0 || bottom < 0 || left < 0 {
		return Margins{}, NewPreviewError(ErrCodeInvalidOptions, "Margins cannot be negative", nil)
	}
	if top > 100 || right > 100 || bottom > 100 || left > 100 {
		return Margins{}, NewPreviewError(ErrCodeInvalidOptions, "Margins cannot exceed 100mm", nil)
	}
	return Margins{
		Top:    top,
		Right:  right,
		Bottom: bottom,
		Left:   left,
	}, nil
}

// DefaultMargins returns the default page margins
func DefaultMargins() Margins {
	return Margins{
		Top:    10,
		Right:  10,
		Bottom: 10,
		Left:   10,
	}
}

// IsZero returns true if all margins are zero
func (m Margins) IsZero() bool {
	return m.Top == 0 && m.Right == 0 && m.Bottom == 0 && m.Left == 0
}

// Equals checks if two Margins are equal
func (m Margins) Equals(other Margins) bool {
	return m.Top == other.Top &&
		m.Right == other.Right &&
		m.Bottom == other.Bottom &&
		m.Left == other.Left
}
