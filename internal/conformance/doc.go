// Package conformance checks a backend's search against the canonical
// evaluator.
//
// A run seeds a MetaStore with a dataset, executes every case through the
// store's IterSearch and Count and compares the outcome with what package
// queryeval selects from the same dataset:
//   - the selected resource ids must be equal as sets
//   - when the query sorts, the returned order must be non-decreasing under
//     the sort keys (ties may come back in any order)
//   - Count must equal the number of matches before pagination
//
// The built-in corpus (cases.yaml) covers every operator, group and
// transform against a dataset mixing every value shape, absent keys and
// explicit nulls. Backends run it from their own tests:
//
//	result, err := conformance.Run(ctx, store, conformance.Dataset(), conformance.Cases())
//	require.NoError(t, err)
//	assert.True(t, result.Pass, result.Errors)
package conformance
