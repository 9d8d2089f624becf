package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLoad     Phase = "load"     // module parsing and compilation
	PhaseHost     Phase = "host"     // host definition registration
	PhaseLinking  Phase = "linking"  // import resolution
	PhaseInstance Phase = "instance" // instance construction
	PhaseRuntime  Phase = "runtime"  // calls, global access, memory access
)

// Kind categorizes the error
type Kind string

const (
	KindTypeMismatch       Kind = "type_mismatch"
	KindOutOfBounds        Kind = "out_of_bounds"
	KindInvalidData        Kind = "invalid_data"
	KindUnsupported        Kind = "unsupported"
	KindMissingImport      Kind = "missing_import"
	KindIncompatibleImport Kind = "incompatible_import"
	KindNotFound           Kind = "not_found"
	KindInvalidInput       Kind = "invalid_input"
	KindRegistration       Kind = "registration"
	KindInstantiation      Kind = "instantiation"
	KindImmutable          Kind = "immutable"
	KindTrap               Kind = "trap"
	KindDisposed           Kind = "disposed"
)

// Error is the structured error type used throughout the library
type Error struct {
	Value     any
	Cause     error
	Phase     Phase
	Kind      Kind
	GoType    string
	ValueType string
	Detail    string
	Path      []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.ValueType != "" {
		b.WriteString(": ")
		switch {
		case e.GoType != "" && e.ValueType != "":
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", wasm type ")
			b.WriteString(e.ValueType)
		case e.GoType != "":
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		default:
			b.WriteString("wasm type ")
			b.WriteString(e.ValueType)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.ValueType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// Empty Phase or Kind on the target match any value.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	return t.Phase != "" || t.Kind != ""
}

// Sentinels for errors.Is checks.
var (
	ErrInstantiation      = &Error{Kind: KindInstantiation}
	ErrLink               = &Error{Phase: PhaseLinking}
	ErrMissingImport      = &Error{Phase: PhaseLinking, Kind: KindMissingImport}
	ErrIncompatibleImport = &Error{Phase: PhaseLinking, Kind: KindIncompatibleImport}
	ErrLookupMiss         = &Error{Kind: KindNotFound}
	ErrTypeMismatch       = &Error{Kind: KindTypeMismatch}
	ErrImmutable          = &Error{Kind: KindImmutable}
	ErrDisposed           = &Error{Kind: KindDisposed}
	ErrTrap               = &Error{Kind: KindTrap}
)

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the location path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// ValueType sets the wasm value type name
func (b *Builder) ValueType(t string) *Builder {
	b.err.ValueType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, goType, valueType string) *Error {
	return &Error{
		Phase:     phase,
		Kind:      KindTypeMismatch,
		Path:      path,
		GoType:    goType,
		ValueType: valueType,
	}
}

// UnsupportedHostType reports a Go value that has no wasm value kind.
func UnsupportedHostType(phase Phase, path []string, v any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Path:   path,
		GoType: fmt.Sprintf("%T", v),
		Detail: "unsupported host type, expected one of int32, uint32, int64, uint64, float32, float64",
		Value:  v,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, offset, length uint64, size uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("range [%d, %d) out of bounds (size %d)", offset, offset+length, size),
		Value:  offset,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// QualifiedName renders an import as module::name.
func QualifiedName(module, name string) string {
	return "`" + module + "::" + name + "`"
}

// UnknownImport reports an import no definition satisfies.
func UnknownImport(module, name string) *Error {
	return &Error{
		Phase:  PhaseLinking,
		Kind:   KindMissingImport,
		Path:   []string{module, name},
		Detail: "unknown import: " + QualifiedName(module, name) + " has not been defined",
	}
}

// IncompatibleImport reports a definition whose type does not satisfy an import.
func IncompatibleImport(module, name, expected, found string) *Error {
	return &Error{
		Phase: PhaseLinking,
		Kind:  KindIncompatibleImport,
		Path:  []string{module, name},
		Detail: fmt.Sprintf("incompatible import type for %s specified: expected %s, found %s",
			QualifiedName(module, name), expected, found),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Path:   []string{name},
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Registration creates a registration error
func Registration(phase Phase, module, name string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindRegistration,
		Path:   []string{module, name},
		Detail: fmt.Sprintf("define %s", QualifiedName(module, name)),
		Cause:  cause,
	}
}

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseInstance,
		Kind:   KindInstantiation,
		Detail: "failed to create instance",
		Cause:  cause,
	}
}

// Immutable reports a write to a constant global.
func Immutable(name string) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindImmutable,
		Path:   []string{name},
		Detail: "immutable global cannot be set",
	}
}

// Disposed reports use of an extern whose owning instance has been closed.
func Disposed(what, name string) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindDisposed,
		Path:   []string{name},
		Detail: fmt.Sprintf("%s used after its instance was closed", what),
	}
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// TrapError is a runtime trap raised while executing guest code.
type TrapError struct {
	Cause   error
	Message string
	Frames  []string
}

func (e *TrapError) Error() string {
	if len(e.Frames) == 0 {
		return "trap: " + e.Message
	}
	var b strings.Builder
	b.WriteString("trap: ")
	b.WriteString(e.Message)
	b.WriteString("\nbacktrace:")
	for _, f := range e.Frames {
		b.WriteString("\n  ")
		b.WriteString(f)
	}
	return b.String()
}

func (e *TrapError) Unwrap() error {
	return e.Cause
}

// Is matches ErrTrap and any other *Error with KindTrap.
func (e *TrapError) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == KindTrap && (t.Phase == "" || t.Phase == PhaseRuntime)
}
