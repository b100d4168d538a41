// Package tracking records invitation engagement events arriving from
// tracking pixels and redirect links.
//
// All counter mutations are idempotent in the monotonic sense: counts
// only grow, "first" timestamps are written at most once, and an
// invitation's status never moves backwards no matter how many times or
// in what order events arrive.
package tracking
