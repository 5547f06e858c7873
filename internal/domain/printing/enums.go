package printing

// PaperSize represents the paper size used when rendering a preview
type PaperSize string

const (
	PaperSizeA3      PaperSize = "A3"      // 297mm x 420mm
	PaperSizeA4      PaperSize = "A4"      // 210mm x 297mm
	PaperSizeA5      PaperSize = "A5"      // 148mm x 210mm
	PaperSizeLetter  PaperSize = "LETTER"  // 216mm x 279mm
	PaperSizeLegal   PaperSize = "LEGAL"   // 216mm x 356mm
	PaperSizeTabloid PaperSize = "TABLOID" // 279mm x 432mm
)

// IsValid checks if the PaperSize is a valid value
func (p PaperSize) IsValid() bool {
	switch p {
	case PaperSizeA3, PaperSizeA4, PaperSizeA5, PaperSizeLetter, PaperSizeLegal, PaperSizeTabloid:
		return true
	}
	return false
}

// String returns the string representation of PaperSize
func (p PaperSize) String() string {
	return string(p)
}

// Dimensions returns the paper dimensions in millimeters (width, height)
func (p PaperSize) Dimensions() (width, height int) {
	switch p {
	case PaperSizeA3:
		return 297, 420
	case PaperSizeA4:
		return 210, 297
	case PaperSizeA5:
		return 148, 210
	case PaperSizeLetter:
		return 216, 279
	case PaperSizeLegal:
		return 216, 356
	case PaperSizeTabloid:
		return 279, 432
	default:
		return 210, 297 // Default to A4
	}
}

// AllPaperSizes returns all valid PaperSize values
func AllPaperSizes() []PaperSize {
	return []PaperSize{
		PaperSizeA3, PaperSizeA4, PaperSizeA5, PaperSizeLetter, PaperSizeLegal, PaperSizeTabloid,
	}
}

// Orientation represents the page orientation for printing
type Orientation string

const (
	OrientationPortrait  Orientation = "PORTRAIT"
	OrientationLandscape Orientation = "LANDSCAPE"
)

// IsValid checks if the Orientation is a valid value
func (o Orientation) IsValid() bool {
	switch o {
	case OrientationPortrait, OrientationLandscape:
		return true
	}
	return false
}

// String returns the string representation of Orientation
func (o Orientation) String() string {
	return string(o)
}

// RequestState is the lifecycle state of a single print-to-PDF request
type RequestState string

const (
	RequestStateIdle          RequestState = "IDLE"           // not yet issued
	RequestStateIssued        RequestState = "ISSUED"         // waiting for the renderer
	RequestStateMetafileReady RequestState = "METAFILE_READY" // renderer produced data
	RequestStateTransferring  RequestState = "TRANSFERRING"   // copying out of shared memory
	RequestStatePreviewFailed RequestState = "PREVIEW_FAILED" // renderer reported failure
	RequestStateResolved      RequestState = "RESOLVED"       // callback invoked
)

// IsValid checks if the RequestState is a valid value
func (s RequestState) IsValid() bool {
	switch s {
	case RequestStateIdle, RequestStateIssued, RequestStateMetafileReady,
		RequestStateTransferring, RequestStatePreviewFailed, RequestStateResolved:
		return true
	}
	return false
}

// String returns the string representation of RequestState
func (s RequestState) String() string {
	return string(s)
}

// IsTerminal returns true if this is a terminal state (no further transitions)
func (s RequestState) IsTerminal() bool {
	return s == RequestStateResolved
}

// CanTransitionTo checks if the state can transition to the target state.
// An issued request may also jump straight to RESOLVED when it is cancelled,
// expires, or is rejected for a protocol violation.
func (s RequestState) CanTransitionTo(target RequestState) bool {
	switch s {
	case RequestStateIdle:
		return target == RequestStateIssued
	case RequestStateIssued:
		return target == RequestStateMetafileReady ||
			target == RequestStatePreviewFailed ||
			target == RequestStateResolved
	case RequestStateMetafileReady:
		return target == RequestStateTransferring || target == RequestStateResolved
	case RequestStateTransferring:
		return target == RequestStateResolved
	case RequestStatePreviewFailed:
		return target == RequestStateResolved
	case RequestStateResolved:
		return false
	}
	return false
}
