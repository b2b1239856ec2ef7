package analysis

import "errors"

// Failure causes surfaced by the analysis chain. Every stage checks its
// preconditions before writing anything, so a returned error means the
// inputs were left untouched. Callers branch with errors.Is.
var (
	ErrUnknownCorrection   = errors.New("unknown correction key")
	ErrRunTypeMismatch     = errors.New("correction curve run type does not match spectrum")
	ErrExtraCorrectionType = errors.New("extra correction requires a synchronous scan")
	ErrBaselineRange       = errors.New("baseline window out of range")
	ErrUncorrectedInput    = errors.New("spectrum has no corrected intensities attached")
	ErrDegenerateQY        = errors.New("degenerate denominator in quantum yield")
)
