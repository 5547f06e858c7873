package printing

import "bytes"

var (
	pageMarker  = []byte("/Type /Page")
	pagesMarker = []byte("/Type /Pages")
)

// estimatePageCount counts page objects in a PDF. "/Type /Page" also matches
// the "/Type /Pages" tree nodes, so those are subtracted. Never returns less
// than one for a non-empty document.
func estimatePageCount(pdfData []byte) int {
	if len(pdfData) == 0 {
		return 0
	}
	count := bytes.Count(pdfData, pageMarker) - bytes.Count(pdfData, pagesMarker)
	return max(count, 1)
}
