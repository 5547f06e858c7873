package handler

import (
	"github.com/erp/pdfpreview/internal/interfaces/http/router"
)

// PrintRoutes creates the route group for the print endpoints
func PrintRoutes(h *PrintHandler) *router.DomainGroup {
	group := router.NewDomainGroup("print", "/print")
	group.POST("/pdf", h.PrintPDF)
	group.GET("/pending", h.ListPending)
	group.DELETE("/requests/:id", h.CancelRequest)
	group.GET("/documents/*key", h.DownloadDocument)
	return group
}
