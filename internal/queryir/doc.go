// Package queryir defines the backend-agnostic search grammar.
//
// A SearchQuery combines base filters over resource metadata (time ranges,
// actors, deletion state) with a predicate tree over meta fields and indexed
// data, sort keys and pagination.
//
// SEALED INTERFACES:
//
// Predicate is a sealed interface using the marker method pattern. Only
// Condition and Group implement it, which lets the canonical evaluator and
// every backend translator switch over it exhaustively:
//
//	switch p := pred.(type) {
//	case Condition:
//	    // leaf comparison
//	case Group:
//	    // and / or / not
//	}
//
// FIELD RESOLUTION:
//
// A fixed set of meta field names (resource_id, created_time, ...) resolve
// against ResourceMeta. Every other path resolves against indexed data,
// where a path is the dotted name the field was declared with.
//
// SEMANTICS:
//
// The canonical semantics live in package queryeval. Backends either
// translate a query faithfully or fall back to a full scan evaluated by
// queryeval; they never return a partially filtered result.
package queryir
