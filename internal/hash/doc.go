// Package hash computes the content digests glia uses for package identity
// and staleness detection.
//
// Directory digests are deterministic and independent of filesystem
// iteration order: entries are visited sorted by name, each entry's name is
// fed into the digest before its content, and subdirectories recurse with the
// same rule. Two trees with identical names and byte-identical files hash
// identically on any OS.
//
// Digests are not security-sensitive. BLAKE3 (keyed with a domain key) is the
// default; HighwayHash-64 is available as a faster non-cryptographic option.
package hash
