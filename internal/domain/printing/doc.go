// Package printing contains the print preview bounded context.
// It defines the identifiers, protocol messages and value objects that are
// exchanged between the host process, which issues print-to-PDF requests on
// behalf of scripts, and the rendering process, which produces the PDF.
package printing
