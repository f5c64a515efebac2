// Package plan is the scheduling core: it allocates study sessions for a set
// of tasks onto a calendar with finite daily capacity and immovable
// commitments.
//
// The package is pure: every entry point takes task/settings/commitment/plan
// collections and returns new collections. No I/O, no wall clock (callers
// inject "today"), no mutation of inputs. Expected scheduling failure
// ("this session cannot fit") is data, not an error: it surfaces as an
// unscheduled-hours suggestion. Error returns are reserved for malformed
// input.
package plan
