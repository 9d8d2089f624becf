package engine

import (
	stderrors "errors"
	"strings"

	"github.com/tetratelabs/wazero/sys"

	"github.com/wippyai/wasm-host/errors"
)

const (
	wasmErrorPrefix  = "wasm error: "
	stackTraceMarker = "\nwasm stack trace:"
	recoveredSuffix  = " (recovered by wazero)"
	goStackMarker    = "\n\nGo runtime stack trace:"
)

// TranslateError converts an error returned by a wazero call into a
// *errors.TrapError when it describes a trap or an interrupted call.
// Other errors are returned unchanged.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	var trap *errors.TrapError
	if stderrors.As(err, &trap) {
		return err
	}

	var exit *sys.ExitError
	if stderrors.As(err, &exit) {
		return &errors.TrapError{Cause: err, Message: exitMessage(exit)}
	}

	text := err.Error()
	head, trace, hasTrace := strings.Cut(text, stackTraceMarker)
	if !hasTrace && !strings.HasPrefix(text, wasmErrorPrefix) {
		return err
	}

	msg := strings.TrimSuffix(head, recoveredSuffix)
	if i := strings.Index(msg, wasmErrorPrefix); i >= 0 {
		msg = msg[i+len(wasmErrorPrefix):]
	}
	return &errors.TrapError{
		Cause:   err,
		Message: msg,
		Frames:  parseFrames(trace),
	}
}

// parseFrames splits a wazero stack trace into one entry per guest frame.
// Source positions, indented one level deeper, are folded into their frame.
func parseFrames(trace string) []string {
	trace, _, _ = strings.Cut(trace, goStackMarker)
	var frames []string
	for _, line := range strings.Split(trace, "\n") {
		source := strings.HasPrefix(line, "\t\t")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if source && len(frames) > 0 {
			frames[len(frames)-1] += " at " + line
			continue
		}
		frames = append(frames, line)
	}
	return frames
}

func exitMessage(exit *sys.ExitError) string {
	switch exit.ExitCode() {
	case sys.ExitCodeContextCanceled:
		return "interrupted: context canceled"
	case sys.ExitCodeDeadlineExceeded:
		return "interrupted: deadline exceeded"
	default:
		return exit.Error()
	}
}
