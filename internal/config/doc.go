// Package config loads glia's settings.
//
// Values come, in increasing precedence, from built-in defaults, an
// optional YAML config file, GLIA_* environment variables and command
// line flags. Nested keys map to environment variables by replacing dots
// with underscores: fleet.rank is GLIA_FLEET_RANK, hash.algorithm is
// GLIA_HASH_ALGORITHM.
//
// The installation namespace derived from InstallRoot and Prefix keys
// both the cache location and the section of the shared preferences
// file, so that several installations on one machine stay apart.
package config
