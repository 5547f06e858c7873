// Package preview coordinates print-to-PDF requests between the scripting
// environment and the rendering process.
//
// A request is registered in the Registry under its caller-supplied id and a
// PrintPreviewRequest is sent to the renderer. The renderer later answers
// with MetafileReadyForPrinting or PrintPreviewFailed. The MessageRouter
// stops the render worker, copies the document out of shared memory on the
// background context when there is one, and hands the outcome to the
// ResultDispatcher, which resolves the request on the primary context.
//
// Registry, MessageRouter and ResultDispatcher must only be used from the
// primary context. BufferTransfer runs on the background context.
package preview
