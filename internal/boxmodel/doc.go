// Package boxmodel is an analytic model family for exercising the
// coordination engine without an external optimization backend. Each scenario
// constrains every first-stage variable to a closed interval and prices the
// decision with an affine cost, so feasibility checks, separation solves, and
// local subproblem solves all have closed forms.
package boxmodel
