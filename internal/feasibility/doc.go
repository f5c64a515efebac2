// Package feasibility pre-validates a proposed task against the current
// settings, tasks, plans and commitments, before the task is accepted.
//
// It produces tagged warnings (critical blocks acceptance, major flags a
// likely problem, minor is advisory) and synthesizes concrete alternative
// parameters by inverting the arithmetic of whichever checks fired.
package feasibility
