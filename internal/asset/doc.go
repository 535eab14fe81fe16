// Package asset defines the package and mod data model consumed by the
// index and resolver.
//
// A Package is a named collection of Mod declarations rooted at one
// directory. A Mod is one buildable (asset, variant, package) combination,
// optionally restricted to one target dialect. Packages and mods are built
// once per process, validated at the boundary with Validate, and treated as
// immutable afterwards.
package asset
