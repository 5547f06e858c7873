// Package script runs Lua scripts that request PDF previews.
//
// The Lua state belongs to the primary context. Scripts execute there,
// and completion callbacks are delivered there by the preview registry, so
// the state is never touched from two goroutines.
//
// Scripts see a single global:
//
//	local id, err = print_to_pdf({ html = "<p>hi</p>", paper_size = "A4" },
//	    function(err, pdf) ... end)
//
// err is nil or a message string, pdf is a string holding the document.
package script
