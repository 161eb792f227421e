// Package simerrors collects the fatal-error taxonomy of the simulator
// (scenario, format, checkpoint, numeric, traced, cmd) and maps errors to
// process exit codes.
package simerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Exit codes, matching the classification in spec.md section 7.
const (
	ExitNone       = 0
	ExitDefault    = 64
	ExitScenario   = 65
	ExitFormat     = 66
	ExitCheckpoint = 67
	ExitNumeric    = 68
	ExitTraced     = 70
	ExitCmd        = 71
)

// Message templates, mirroring the teacher's errors.go constant-block
// style (one block per concern, printf-style templates).
const (
	InvalidFloatParameterError  = "invalid %s %f: %s"
	InvalidIntParameterError    = "invalid %s %d: %s"
	InvalidStringParameterError = "invalid %s %q: %s"
	UnsupportedFeatureError     = "%s is not supported: %s"
)

const (
	DurationUnitRequiredError = "duration %q requires a unit suffix (d, t, y)"
	InvalidDateError          = "invalid date %q: %s"
)

const (
	CheckpointMismatchError   = "checkpoint scenario checksum mismatch: want %x, got %x"
	CheckpointResidualError   = "checkpoint file has %d residual bytes after decode"
	CheckpointMarkerError     = "checkpoint marker file names unknown slot %q"
)

const (
	NonFiniteEIRError      = "EIR at step %d is non-finite: %v"
	NonFiniteKappaError    = "kappa at step %d is non-finite: %v"
	ZeroInitialKappaError  = "initialKappa[%d] is below 4*SmallestNonzeroFloat64 at warm-up/main switchover"
	SpectralRadiusError    = "emergence fixed point: spectral radius of X_thetap is >= 1 (rho=%f)"
	EmergenceFitNotConvergedError = "emergence rate fit did not converge after %d iterations, residual=%f"
)

// ScenarioError marks a fatal, pre-simulation configuration problem.
type ScenarioError struct{ err error }

func (e *ScenarioError) Error() string { return e.err.Error() }
func (e *ScenarioError) Unwrap() error { return e.err }

// NewScenario wraps err as a scenario-class fatal error.
func NewScenario(err error) error { return &ScenarioError{err} }

// FormatError marks a fatal date/duration parse problem.
type FormatError struct{ err error }

func (e *FormatError) Error() string { return e.err.Error() }
func (e *FormatError) Unwrap() error { return e.err }

// NewFormat wraps err as a format-class fatal error.
func NewFormat(err error) error { return &FormatError{err} }

// CheckpointError marks a structural checkpoint mismatch.
type CheckpointError struct{ err error }

func (e *CheckpointError) Error() string { return e.err.Error() }
func (e *CheckpointError) Unwrap() error { return e.err }

// NewCheckpoint wraps err as a checkpoint-class fatal error.
func NewCheckpoint(err error) error { return &CheckpointError{err} }

// NumericError marks a non-finite or degenerate numeric condition.
type NumericError struct{ err error }

func (e *NumericError) Error() string { return e.err.Error() }
func (e *NumericError) Unwrap() error { return e.err }

// NewNumeric wraps err as a numeric-class fatal error.
func NewNumeric(err error) error { return &NumericError{err} }

// TracedError marks an internal invariant violation; it carries the stack
// trace captured by github.com/pkg/errors at the point of creation.
type TracedError struct{ err error }

func (e *TracedError) Error() string { return e.err.Error() }
func (e *TracedError) Unwrap() error { return e.err }

// NewTraced wraps err with a stack trace as a traced-class fatal error.
func NewTraced(err error) error { return &TracedError{errors.WithStack(err)} }

// CmdError marks a non-error early exit, e.g. --print-interventions.
type CmdError struct{ err error }

func (e *CmdError) Error() string { return e.err.Error() }
func (e *CmdError) Unwrap() error { return e.err }

// NewCmd wraps err (may be nil-message) as a cmd-class early exit.
func NewCmd(msg string) error { return &CmdError{fmt.Errorf("%s", msg)} }

// ExitCode classifies err per spec.md section 6/7 and returns the process
// exit code that should be used for it. A nil err returns ExitNone.
func ExitCode(err error) int {
	if err == nil {
		return ExitNone
	}
	switch {
	case errors.As(err, new(*ScenarioError)):
		return ExitScenario
	case errors.As(err, new(*FormatError)):
		return ExitFormat
	case errors.As(err, new(*CheckpointError)):
		return ExitCheckpoint
	case errors.As(err, new(*NumericError)):
		return ExitNumeric
	case errors.As(err, new(*TracedError)):
		return ExitTraced
	case errors.As(err, new(*CmdError)):
		return ExitCmd
	default:
		return ExitDefault
	}
}
