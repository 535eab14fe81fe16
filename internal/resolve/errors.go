package resolve

import (
	"errors"
	"fmt"
	"strings"
)

// ErrResolve is the root of the resolution error family: every error in
// this package matches errors.Is(err, ErrResolve).
var ErrResolve = errors.New("selection could not be resolved")

// Code categorizes resolution errors.
type Code string

const (
	// CodeUnknownAsset indicates the short name is not in the index.
	CodeUnknownAsset Code = "UNKNOWN_ASSET"

	// CodeNoMatches indicates no candidate satisfies the constraints.
	CodeNoMatches Code = "NO_MATCHES"

	// CodeTooManyMatches indicates the tie-break could not disambiguate.
	CodeTooManyMatches Code = "TOO_MANY_MATCHES"

	// CodeLookupFailed indicates a fully-qualified name is not indexed.
	CodeLookupFailed Code = "LOOKUP_FAILED"
)

// UnknownAssetError reports a short name with no index entry.
type UnknownAssetError struct {
	Asset string
}

func (e *UnknownAssetError) Error() string {
	return fmt.Sprintf("%s: asset '%s' not found", ErrResolve, e.Asset)
}

// Code returns CodeUnknownAsset.
func (e *UnknownAssetError) Code() Code { return CodeUnknownAsset }

// Is matches ErrResolve.
func (e *UnknownAssetError) Is(target error) bool { return target == ErrResolve }

// NoMatchesError reports constraints no candidate satisfies.
type NoMatchesError struct {
	Asset   string
	Package string
	Variant string
}

func (e *NoMatchesError) Error() string {
	return fmt.Sprintf("%s: no matches for %s", ErrResolve, selection(e.Asset, e.Package, e.Variant))
}

// Code returns CodeNoMatches.
func (e *NoMatchesError) Code() Code { return CodeNoMatches }

// Is matches ErrResolve.
func (e *NoMatchesError) Is(target error) bool { return target == ErrResolve }

// TooManyMatchesError reports an ambiguity the tie-break rule could not
// settle.
type TooManyMatchesError struct {
	Asset   string
	Package string
	Variant string

	// Candidates lists the fully-qualified names of the ambiguous mods.
	Candidates []string
}

func (e *TooManyMatchesError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s, too many matches for %s:", ErrResolve, selection(e.Asset, e.Package, e.Variant))
	for _, c := range e.Candidates {
		b.WriteString("\n  * ")
		b.WriteString(c)
	}
	b.WriteString("\nTry specifying a package or variant")
	return b.String()
}

// Code returns CodeTooManyMatches.
func (e *TooManyMatchesError) Code() Code { return CodeTooManyMatches }

// Is matches ErrResolve.
func (e *TooManyMatchesError) Is(target error) bool { return target == ErrResolve }

// LookupError reports a fully-qualified name missing from the reverse index.
type LookupError struct {
	Name string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("no mod with name '%s' found", e.Name)
}

// Code returns CodeLookupFailed.
func (e *LookupError) Code() Code { return CodeLookupFailed }

// Is matches ErrResolve.
func (e *LookupError) Is(target error) bool { return target == ErrResolve }

// CodeOf returns the code of a resolution error anywhere in err's chain,
// or "" if there is none.
func CodeOf(err error) Code {
	var coded interface{ Code() Code }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return ""
}

// IsUnknownAsset returns true if err is an UnknownAssetError.
func IsUnknownAsset(err error) bool {
	var e *UnknownAssetError
	return errors.As(err, &e)
}

// IsNoMatches returns true if err is a NoMatchesError.
func IsNoMatches(err error) bool {
	var e *NoMatchesError
	return errors.As(err, &e)
}

// IsTooManyMatches returns true if err is a TooManyMatchesError.
func IsTooManyMatches(err error) bool {
	var e *TooManyMatchesError
	return errors.As(err, &e)
}

// IsLookupError returns true if err is a LookupError.
func IsLookupError(err error) bool {
	var e *LookupError
	return errors.As(err, &e)
}

// selection formats constraints as pkg.asset (variant).
func selection(assetName, pkg, variant string) string {
	s := assetName
	if pkg != "" {
		s = pkg + "." + s
	}
	if variant != "" {
		s += " (" + variant + ")"
	}
	return s
}
