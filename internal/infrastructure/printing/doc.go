// Package printing is the rendering side of the preview pipeline.
//
// This package contains:
//   - PDFRenderer and its chromedp implementation
//   - QueryQueue, the registry of in-flight render workers keyed by document cookie
//   - RenderHost, which answers PrintPreviewRequest messages through shared memory
//   - PDFStorage with file system and S3 implementations for archiving results
//
// Example usage:
//
//	renderer, err := NewChromedpRenderer(&ChromedpConfig{NoSandbox: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer renderer.Close()
//
//	hostEnd, rendererEnd := ipc.Pipe(0, logger)
//	host := NewRenderHost(rendererEnd, renderer, regions, NewQueryQueue(), RenderHostConfig{}, logger)
//	go host.Run(ctx)
package printing
