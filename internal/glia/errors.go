package glia

import "errors"

var (
	// ErrPackageNotFound is returned for a package name nothing provides.
	ErrPackageNotFound = errors.New("package not found")
	// ErrNoCompiler is returned when a build is needed but no Compiler is set.
	ErrNoCompiler = errors.New("no compiler configured")
	// ErrNoToolchain is returned by catalogue operations without a Toolchain.
	ErrNoToolchain = errors.New("no toolchain configured")
)
