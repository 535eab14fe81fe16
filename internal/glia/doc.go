// Package glia wires discovery, resolution, preferences and the build
// cache into a Manager.
//
// A Manager is the single holder of mutable state for one process: the
// discovered packages, the index built from them, the preference layers
// and the cache store. The caller's entry point constructs it once and
// passes it wherever resolution or compilation is needed.
//
// Compilation itself is delegated to a Compiler. The Manager decides
// when a build is needed, assembles the inputs, guards the build with a
// coord.Coordinator so only the main participant of a parallel job runs
// it, and records content hashes once the build has succeeded.
package glia
