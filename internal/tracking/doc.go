// Package tracking builds sparse change sets for state synchronization.
//
// Every mutation site states explicitly what changed by registering the
// property on a [Diff]. The package only handles merging, pruning and (for the
// client mirror and tests) applying diffs; it never compares whole values.
//
// # Shape
//
// A Diff mirrors the JSON shape of the object it describes. A key present in
// the diff means the value changed; an absent key means it did not. Values are
// either leaves (primitives, whole arrays, whole snapshots) or nested diffs.
// Nested diffs addressing array elements use the decimal index as key:
//
//	{"tabs": {"1": {"active": true}}}
//
// # Registration
//
//	d := tracking.Diff{}
//	tracking.RegisterChange(d, "open", true, nil)
//	tracking.RegisterChange(d, "children", entry.Children(), nil)
//
// Empty nested diffs are removed by [Cull]; a culled root of nil means
// "no change" and is not sent.
package tracking
