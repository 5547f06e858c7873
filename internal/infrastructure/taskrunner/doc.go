// Package taskrunner provides the two execution contexts used by the print
// preview pipeline.
//
// Sequence is the primary context: a single goroutine that executes posted
// tasks one at a time, in order. State owned by the primary context (the
// request registry, the scripting runtime) is only ever touched from tasks
// running on it.
//
// Pool is the background context: a bounded set of goroutines that may block
// on I/O such as memory mapping.
//
// PostTaskAndReplyWithResult moves a value produced on one context to a reply
// running on another without sharing it.
package taskrunner
