// Package ir provides the constrained value model shared by indexing and
// querying.
//
// Indexed data, query literals and sort keys are all IRValues. Keeping one
// sealed union for them lets the canonical evaluator and every backend
// translator agree on exactly which types exist and how they compare.
//
// This package imports nothing internal. All other internal packages may
// import ir.
//
// Key design constraints:
//   - Integers and floats are distinct types but compare numerically
//   - Null is an explicit value (IRNull), distinct from an absent key
//   - Times are carried as fixed-width UTC strings (see Time) so lexical
//     and chronological order coincide
//   - Content ids are SHA-256 over domain-separated input (see hash.go)
package ir
