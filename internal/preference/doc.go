// Package preference holds the layered asset preferences that steer
// resolution toward a package and/or variant.
//
// Layers, lowest to highest precedence:
//
//  1. global wildcard defaults (__pkg, __variant)
//  2. global (persisted) asset preferences
//  3. local (script) asset preferences
//  4. context frames, in push order
//
// A frame patch with Unset set clears both fields inherited from lower
// layers before its own non-empty fields apply. Global preferences are
// written to the backing file on every SetGlobal call.
package preference
