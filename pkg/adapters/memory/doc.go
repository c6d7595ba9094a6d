// Package memory provides in-process implementations of the engine's
// storage and messaging ports. They are the zero-configuration defaults:
// an engine built without explicit adapters runs entirely on this
// package, which makes it suitable for tests, examples, and single-node
// deployments that can tolerate losing state on restart.
//
// All types are safe for concurrent use. Values are copied on the way in
// and out so callers can never mutate stored state through a retained
// pointer.
package memory
