package script

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/erp/pdfpreview/internal/domain/printing"
)

// print_to_pdf(options, callback) -> id | nil, err
func (r *Runtime) printToPDF(L *lua.LState) int {
	tbl := L.CheckTable(1)
	fn := L.CheckFunction(2)

	options, err := optionsFromTable(tbl)
	if err != nil {
		L.ArgError(1, err.Error())
		return 0
	}
	if options.RequestID == 0 {
		options.RequestID, err = r.ids.Take()
		if err != nil {
			L.Push(lua.LNil)
			L.Push(lua.LString(err.Error()))
			return 2
		}
	}

	id := options.RequestID
	r.outstanding++
	if err := r.printer.Issue(r.ctx, options, func(err error, pdf []byte) {
		defer r.settle()
		r.deliver(id, fn, err, pdf)
	}); err != nil {
		r.settle()
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LNumber(id))
	return 1
}

func (r *Runtime) deliver(id printing.RequestID, fn *lua.LFunction, err error, pdf []byte) {
	if r.closed {
		return
	}
	if err == nil && r.sink != nil {
		r.sink(id, pdf)
	}

	errValue := lua.LValue(lua.LNil)
	pdfValue := lua.LValue(lua.LNil)
	if err != nil {
		errValue = lua.LString(err.Error())
	} else {
		pdfValue = lua.LString(pdf)
	}

	if callErr := r.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, errValue, pdfValue); callErr != nil {
		r.logger.Warn("script callback failed",
			zap.Int("request_id", int(id)),
			zap.Error(callErr))
		r.callbackErr = append(r.callbackErr, fmt.Errorf("callback for request %d: %w", id, callErr))
	}
}

func optionsFromTable(tbl *lua.LTable) (*printing.PrintOptions, error) {
	o := &printing.PrintOptions{
		HTML:            stringField(tbl, "html"),
		URL:             stringField(tbl, "url"),
		Title:           stringField(tbl, "title"),
		PaperSize:       printing.PaperSize(stringField(tbl, "paper_size")),
		Orientation:     printing.Orientation(stringField(tbl, "orientation")),
		HeaderHTML:      stringField(tbl, "header_html"),
		FooterHTML:      stringField(tbl, "footer_html"),
		PrintBackground: lua.LVAsBool(tbl.RawGetString("print_background")),
		PageRanges:      stringField(tbl, "page_ranges"),
	}
	if n, ok := tbl.RawGetString("request_id").(lua.LNumber); ok {
		if float64(n) != float64(int64(n)) {
			return nil, fmt.Errorf("request_id must be an integer")
		}
		o.RequestID = printing.RequestID(n)
	}
	if n, ok := tbl.RawGetString("scale").(lua.LNumber); ok {
		o.Scale = float64(n)
	}
	switch m := tbl.RawGetString("margins").(type) {
	case *lua.LTable:
		o.Margins = printing.Margins{
			Top:    intField(m, "top"),
			Right:  intField(m, "right"),
			Bottom: intField(m, "bottom"),
			Left:   intField(m, "left"),
		}
	case *lua.LNilType:
	default:
		return nil, fmt.Errorf("margins must be a table")
	}
	return o, nil
}

func stringField(tbl *lua.LTable, key string) string {
	if s, ok := tbl.RawGetString(key).(lua.LString); ok {
		return string(s)
	}
	return ""
}

func intField(tbl *lua.LTable, key string) int {
	if n, ok := tbl.RawGetString(key).(lua.LNumber); ok {
		return int(n)
	}
	return 0
}
