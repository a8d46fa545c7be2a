// Package kerrors defines the error taxonomy shared by the kubernix packages.
//
// Every fatal failure surfaced to the CLI belongs to exactly one [Kind]. Errors keep
// their cause reachable through Unwrap, so callers classify with [KindOf] or errors.As
// regardless of how many times the error was wrapped on the way up.
package kerrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// KindUnknown is returned by KindOf for errors outside the taxonomy.
	KindUnknown Kind = iota
	// KindConfig marks invalid or unreadable configuration.
	KindConfig
	// KindNetwork marks a CIDR that cannot satisfy the node count.
	KindNetwork
	// KindProvision marks a node that failed to reach the running state.
	KindProvision
	// KindIO marks filesystem access failures.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindNetwork:
		return "network"
	case KindProvision:
		return "provision"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Error is a classified error. Field names the configuration field or operation
// the failure originated from and may be empty.
type Error struct {
	Kind  Kind
	Field string
	Err   error
}

func (e *Error) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error (%s): %v", e.Kind, e.Field, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ConfigErr wraps err as a configuration error for the given field.
func ConfigErr(field string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindConfig, Field: field, Err: err}
}

// NetworkErr wraps err as a network allocation error.
func NetworkErr(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindNetwork, Err: err}
}

// IOErr wraps err as a filesystem error for the given operation.
func IOErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindIO, Field: op, Err: err}
}

// ProvisionError reports that a specific node failed to start.
type ProvisionError struct {
	Node int
	Err  error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provision error (node %d): %v", e.Node, e.Err)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// Provision wraps err as a provisioning failure of node index.
func Provision(index int, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProvisionError
	if errors.As(err, &pe) && pe.Node == index {
		return err
	}
	return &ProvisionError{Node: index, Err: err}
}

// KindOf returns the kind of the outermost classified error in err's chain.
// For joined errors the first classified member wins.
func KindOf(err error) Kind {
	switch e := err.(type) {
	case nil:
		return KindUnknown
	case *Error:
		return e.Kind
	case *ProvisionError:
		return KindProvision
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			if k := KindOf(inner); k != KindUnknown {
				return k
			}
		}
		return KindUnknown
	}
	return KindOf(errors.Unwrap(err))
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
