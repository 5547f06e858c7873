// Package sharedmem moves rendered documents between the rendering process
// and the host through named, file-backed shared memory regions.
//
// The renderer writes a document with Store.Create and sends the returned
// handle to the host. The host maps the region read-only with Store.Map,
// copies what it needs, unmaps, and finally releases the handle.
package sharedmem
