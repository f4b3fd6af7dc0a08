// Package install models the installation state machine.
//
// State enumerates where an invocation stands, Reason explains why an
// installation is required, and Decide maps the observed facts (version
// marker, artifact probe) to the next state. Transitions are validated by
// State.CanTransitionTo so the orchestrator cannot skip a step.
package install
