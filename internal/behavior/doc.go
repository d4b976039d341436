// Package behavior decides what a simulated user does next.
//
// A Model draws one Turn per call by weighted random choice over the turn
// categories. Categories whose precondition fails for the user's site map
// drop out of the draw and the remaining weights are renormalized, so a
// Turn is always produced. All randomness comes from the source passed in
// by the caller.
package behavior
