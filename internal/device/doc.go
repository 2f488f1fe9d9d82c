// Package device defines the radio capability the fzone link core is built on.
//
// It contains:
//   - the Transport contract (scan, connect, discover, subscribe, read, write, event stream)
//   - the Handle and Advertisement abstractions
//   - UUID normalization shared by all layers
//   - the error taxonomy reported by the link pipeline (ErrorKind, StageError)
//
// The go-ble backed implementation lives in the go-ble subpackage.
package device
