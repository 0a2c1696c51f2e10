// Package queryeval is the canonical, backend-independent implementation of
// the search grammar defined in package queryir.
//
// Every backend must return exactly the set of resources this package
// selects from the same data. The in-memory backend uses it directly; the
// SQLite backend uses it as the fallback for queries it cannot translate,
// and the conformance harness uses it as the oracle.
//
// Decisions the grammar leaves open:
//   - An absent field never satisfies eq, gt, gte, lt, lte, contains,
//     starts_with, ends_with, in_list, regex or is_null. ne and not_in_list
//     are the negations of eq and in_list and therefore match absent fields.
//   - Integers and floats compare numerically. Ordering comparisons
//     otherwise require both sides to be strings.
//   - regex matches the stringified value with RE2 syntax; null never
//     matches.
//   - Sorting groups values as absent or null, then booleans, numbers,
//     strings, arrays and objects. resource_id ascending breaks ties.
//   - Limit and offset apply after filtering and sorting.
package queryeval
