package tools

import "fmt"

// UnknownToolError is returned by Call for a name not in the registry.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// ArgumentError reports a schema violation for one argument.
type ArgumentError struct {
	Field  string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("argument %q %s", e.Field, e.Reason)
}

// ExecutionError is a handler failure that is safe to report to the
// caller. Kind is a short category such as "attachment", "auth" or
// "delivery"; PublicMessage must not contain secrets.
type ExecutionError interface {
	error
	Kind() string
	PublicMessage() string
}

// KindInternal is reported for handler failures that carry no kind.
const KindInternal = "internal"
