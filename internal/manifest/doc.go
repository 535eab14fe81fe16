// Package manifest reads package manifests and discovers packages on disk.
//
// A package is a directory carrying a glia.cue or glia.yaml manifest
// that names the package and declares its mods:
//
//	name: "channels"
//	mods: [
//		{asset: "hh", path: "mods/hh.mod"},
//		{asset: "hh", variant: "fast", dialect: "arbor", path: "mods/hh_arb.mod"},
//	]
//
// Both formats are checked against the embedded CUE schema #Package.
// When both files exist the CUE manifest wins.
package manifest
