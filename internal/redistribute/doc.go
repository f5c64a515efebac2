// Package redistribute repairs an existing plan set: it recovers missed
// past sessions onto new valid dates via a priority queue, and dissolves
// compromised (too-small or overloaded) sessions into their task's healthy
// siblings.
//
// Like the plan package, everything here is pure: input plan sets are never
// mutated. A redistribution run is all-or-nothing; if the post-condition
// (no overlaps) fails, the run rolls back and the caller's original plan set
// is returned untouched.
package redistribute
