package install

import (
	"errors"
	"fmt"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// State is a step of the installation state machine.
type State int

const (
	// NoInstallation: nothing usable on disk, or no marker.
	NoInstallation State = iota
	// UpToDate: marker matches and every required artifact is present.
	UpToDate
	// UpgradeRequired: marker differs or an artifact is missing.
	UpgradeRequired
	// Installing: fetch, verify, extract and place files.
	Installing
	// Installed: the marker has been written for the expected version.
	Installed
	// Failed: fetch, verification or extraction failed; the marker is untouched.
	Failed
)

// String returns the state name used in logs.
func (s State) String() string {
	switch s {
	case NoInstallation:
		return "no-installation"
	case UpToDate:
		return "up-to-date"
	case UpgradeRequired:
		return "upgrade-required"
	case Installing:
		return "installing"
	case Installed:
		return "installed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// transitions lists the allowed successors of every state.
//
//nolint:gochecknoglobals // Static transition table.
var transitions = map[State][]State{
	NoInstallation:  {Installing},
	UpgradeRequired: {Installing},
	Installing:      {Installed, Failed},
	UpToDate:        nil,
	Installed:       nil,
	Failed:          nil,
}

// ErrInvalidTransition is returned when a transition is not in the table.
var ErrInvalidTransition = errors.New("invalid state transition")

// CanTransitionTo reports whether next may follow s.
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}

	return false
}

// Launchable reports whether the dispatcher may run from s.
func (s State) Launchable() bool {
	return s == UpToDate || s == Installed
}

// Reason explains why an installation is needed.
type Reason string

const (
	// ReasonNone means no installation is needed.
	ReasonNone Reason = ""
	// ReasonFreshInstall: no marker and no artifacts.
	ReasonFreshInstall Reason = "fresh-install"
	// ReasonUpgrade: the marker holds an older version.
	ReasonUpgrade Reason = "upgrade"
	// ReasonDowngrade: the marker holds a newer version.
	ReasonDowngrade Reason = "downgrade"
	// ReasonVersionChange: the marker differs but the versions cannot be ordered.
	ReasonVersionChange Reason = "version-change"
	// ReasonRepair: artifacts are missing from an installation the marker calls current.
	ReasonRepair Reason = "repair"
)

// Observation is what the orchestrator found on disk.
type Observation struct {
	// InstalledVersion is the marker content, empty when the marker is absent.
	InstalledVersion string
	// MissingArtifacts lists required executables that are absent or not executable.
	MissingArtifacts []string
	// TotalArtifacts is the size of the required-artifact checklist.
	TotalArtifacts int
}

// Complete reports whether every required artifact is present.
func (o Observation) Complete() bool {
	return len(o.MissingArtifacts) == 0
}

// Empty reports whether none of the required artifacts is present.
func (o Observation) Empty() bool {
	return o.TotalArtifacts > 0 && len(o.MissingArtifacts) == o.TotalArtifacts
}

// Decision is the outcome of Decide.
type Decision struct {
	State  State
	Reason Reason
}

// Decide maps an observation to the state the invocation starts from.
// A missing artifact always forces an installation, whatever the marker says.
func Decide(obs Observation, expectedVersion string) Decision {
	installed := strings.TrimSpace(obs.InstalledVersion)

	switch {
	case installed == expectedVersion && obs.Complete():
		return Decision{State: UpToDate, Reason: ReasonNone}
	case installed == "" && obs.Empty():
		return Decision{State: NoInstallation, Reason: ReasonFreshInstall}
	case installed == "":
		return Decision{State: NoInstallation, Reason: ReasonRepair}
	case installed == expectedVersion:
		return Decision{State: UpgradeRequired, Reason: ReasonRepair}
	default:
		return Decision{State: UpgradeRequired, Reason: compareVersions(installed, expectedVersion)}
	}
}

// compareVersions orders two version tags; unparsable tags yield ReasonVersionChange.
func compareVersions(installed, expected string) Reason {
	from, err := goversion.NewVersion(installed)
	if err != nil {
		return ReasonVersionChange
	}

	to, err := goversion.NewVersion(expected)
	if err != nil {
		return ReasonVersionChange
	}

	switch {
	case from.LessThan(to):
		return ReasonUpgrade
	case from.GreaterThan(to):
		return ReasonDowngrade
	default:
		// Same version written differently, e.g. "1.0" and "1.0.0".
		return ReasonVersionChange
	}
}

// Machine tracks the current state of one invocation.
type Machine struct {
	state  State
	reason Reason
}

// NewMachine starts a machine from a decision.
func NewMachine(decision Decision) *Machine {
	return &Machine{
		state:  decision.State,
		reason: decision.Reason,
	}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Reason returns why an installation was started.
func (m *Machine) Reason() Reason {
	return m.reason
}

// Transition moves to next if the table allows it.
func (m *Machine) Transition(next State) error {
	if !m.state.CanTransitionTo(next) {
		return fmt.Errorf("%s -> %s: %w", m.state, next, ErrInvalidTransition)
	}

	m.state = next

	return nil
}
