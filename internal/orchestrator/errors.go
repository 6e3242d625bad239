package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"screenshot-lambda/internal/process"
)

// Error kinds returned by Run, checked with errors.Is
var (
	ErrLaunchFailed  = errors.New("renderer launch failed")
	ErrRenderFailed  = errors.New("render failed")
	ErrRenderTimeout = errors.New("render timed out")
)

// RenderError carries the context of a failed invocation
type RenderError struct {
	Kind         error
	ArtifactPath string
	Exit         *process.ExitStatus
	Err          error
}

func (e *RenderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.ArtifactPath != "" {
		fmt.Fprintf(&b, " (artifact %s", e.ArtifactPath)
		if e.Exit != nil {
			fmt.Fprintf(&b, ", %s", e.Exit)
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *RenderError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// IsTimeout reports whether err is a render timeout
func IsTimeout(err error) bool {
	return errors.Is(err, ErrRenderTimeout)
}

// IsRenderFailure reports whether the renderer ran but produced no usable
// artifact. Launch failures are not render failures.
func IsRenderFailure(err error) bool {
	return errors.Is(err, ErrRenderFailed)
}
