// Package utils provides shared helpers used across corevm, including
// the typed error kinds threaded through the kernel (spec §7): every
// failure surfaced across a call-frame boundary carries one of these
// kinds plus a machine-readable code, rather than a bare string.
package utils

import "fmt"

// Wrap adds context to an error message. It returns nil if err is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Kind tags which layer of the engine originated a RuntimeError.
type Kind string

const (
	KindKernel         Kind = "KernelError"
	KindSystem         Kind = "SystemError"
	KindSystemUpstream Kind = "SystemUpstreamError"
	KindApplication    Kind = "ApplicationError"
	KindModule         Kind = "ModuleError"
)

// RuntimeError is the single tagged result type threaded through the
// kernel, system service, native blueprints and kernel modules. Code
// is a short machine-readable identifier (e.g. "InsufficientBalance",
// "MaxCallDepthLimitReached"); NodeID and BlueprintID are populated
// where the failure is attributable to a specific node or blueprint.
type RuntimeError struct {
	Kind        Kind
	Code        string
	Message     string
	NodeID      string
	BlueprintID string
	Err         error
}

func (e *RuntimeError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("%s::%s (node=%s): %s", e.Kind, e.Code, e.NodeID, e.Message)
	}
	return fmt.Sprintf("%s::%s: %s", e.Kind, e.Code, e.Message)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// NewError constructs a RuntimeError for the given kind and code.
func NewError(kind Kind, code, message string) *RuntimeError {
	return &RuntimeError{Kind: kind, Code: code, Message: message}
}

// WithNode attaches the originating node id to a RuntimeError copy.
func (e *RuntimeError) WithNode(nodeID string) *RuntimeError {
	cp := *e
	cp.NodeID = nodeID
	return &cp
}

// WithBlueprint attaches the originating blueprint id to a RuntimeError copy.
func (e *RuntimeError) WithBlueprint(blueprintID string) *RuntimeError {
	cp := *e
	cp.BlueprintID = blueprintID
	return &cp
}

// Kernel/System/Application/Module are convenience constructors
// mirroring the five error kinds of spec §7.
func Kernel(code, message string) *RuntimeError { return NewError(KindKernel, code, message) }
func System(code, message string) *RuntimeError { return NewError(KindSystem, code, message) }
func SystemUpstream(code, message string) *RuntimeError {
	return NewError(KindSystemUpstream, code, message)
}
func Application(code, message string) *RuntimeError {
	return NewError(KindApplication, code, message)
}
func Module(code, message string) *RuntimeError { return NewError(KindModule, code, message) }
