package cli

import (
	"errors"

	"github.com/roach88/glia/internal/coord"
	"github.com/roach88/glia/internal/glia"
	"github.com/roach88/glia/internal/resolve"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeConfig      = "E002" // Configuration could not be loaded
	ErrCodeDiscovery   = "E003" // Package discovery failed
	ErrCodeStore       = "E004" // Cache or preference store error
	ErrCodeNotFound    = "E005" // Package not found
	ErrCodeInvalidArgs = "E006" // Malformed arguments
	ErrCodeManifest    = "E007" // Package manifest invalid or not writable

	// Resolution errors
	ErrCodeUnknownAsset   = "E101" // Asset not in the index
	ErrCodeNoMatches      = "E102" // No candidate satisfies the constraints
	ErrCodeTooManyMatches = "E103" // Selection is ambiguous
	ErrCodeLookupFailed   = "E104" // Fully-qualified name not indexed

	// Build errors
	ErrCodeBuildFailed = "E201" // Compiler or catalogue builder failed
	ErrCodeNoToolchain = "E202" // No compiler or toolchain configured
)

// classify maps err to an error code and exit code.
func classify(err error) (code string, exit int) {
	switch {
	case resolve.IsUnknownAsset(err):
		return ErrCodeUnknownAsset, ExitFailure
	case resolve.IsNoMatches(err):
		return ErrCodeNoMatches, ExitFailure
	case resolve.IsTooManyMatches(err):
		return ErrCodeTooManyMatches, ExitFailure
	case resolve.IsLookupError(err):
		return ErrCodeLookupFailed, ExitFailure
	case errors.Is(err, glia.ErrPackageNotFound):
		return ErrCodeNotFound, ExitCommandError
	case errors.Is(err, glia.ErrNoCompiler), errors.Is(err, glia.ErrNoToolchain):
		return ErrCodeNoToolchain, ExitCommandError
	case errors.Is(err, coord.ErrBuild):
		return ErrCodeBuildFailed, ExitFailure
	default:
		return ErrCodeGeneric, ExitFailure
	}
}

// outputError reports err through formatter and returns the matching
// ExitError.
func outputError(formatter *OutputFormatter, err error) error {
	code, exit := classify(err)
	return outputCodeError(formatter, code, exit, err)
}

// outputCodeError reports err under an explicit code. Build failures
// carry their build id in the response.
func outputCodeError(formatter *OutputFormatter, code string, exit int, err error) error {
	var details interface{}
	var tooMany *resolve.TooManyMatchesError
	if errors.As(err, &tooMany) {
		details = map[string]interface{}{"candidates": tooMany.Candidates}
	}
	var buildID string
	var buildErr *coord.BuildError
	if errors.As(err, &buildErr) {
		buildID = buildErr.BuildID
	}

	_ = formatter.BuildFailure(buildID, code, err.Error(), details)
	return WrapExitError(exit, code, err)
}
