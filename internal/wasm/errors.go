// Package wasm loads WebAssembly parser plugins and adapts them to
// frontend.Parser.
package wasm

import (
	"errors"
	"fmt"
)

var (
	// ErrABIVersionMismatch indicates the plugin speaks another ABI version.
	ErrABIVersionMismatch = errors.New("abi version mismatch")

	// ErrTimeout indicates the plugin exceeded its execution timeout.
	ErrTimeout = errors.New("plugin timeout")

	// ErrFileTooLarge indicates the Wasm file exceeds MaxWasmFileSize.
	ErrFileTooLarge = errors.New("wasm file too large")

	// ErrClosed is returned by Parse after Close.
	ErrClosed = errors.New("plugin is closed")
)

// ABIError reports a plugin export that does not follow the host ABI.
type ABIError struct {
	Export string
	Reason string
}

func (e *ABIError) Error() string {
	return fmt.Sprintf("parser plugin export %s: %s", e.Export, e.Reason)
}

// PluginError is a parse failure reported by the plugin itself. Code is the
// plugin's own classification and may be empty.
type PluginError struct {
	Code    string
	Message string
}

func (e *PluginError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("parser plugin failed (%s): %s", e.Code, e.Message)
	}
	return "parser plugin failed: " + e.Message
}

// RuntimeError is a wazero failure while loading or calling a plugin.
type RuntimeError struct {
	Operation string
	Err       error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("parser plugin %s: %v", e.Operation, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}
