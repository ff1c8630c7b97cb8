// Package pipeline is the issue analysis state machine. A State is threaded
// through fixed stages (discover, compile context, plan, generate prompt,
// route, draft report) by a Machine, which stops at the first stage error.
package pipeline

import (
	"sourcesage/internal/domain/entity"
)

// Step names a machine state. The values double as progress stage names.
type Step string

const (
	StepStart          Step = "start"
	StepDiscover       Step = "finding"
	StepCompileContext Step = "analyzing"
	StepPlan           Step = "planning"
	StepPrompt         Step = "prompting"
	StepRoute          Step = "routing"
	StepDraftReport    Step = "reporting"
	StepTerminal       Step = "complete"
	StepAborted        Step = "aborted"
)

func (s Step) String() string { return string(s) }

// Percent is the nominal progress reached when s starts.
func (s Step) Percent() int {
	switch s {
	case StepDiscover:
		return 10
	case StepCompileContext:
		return 30
	case StepPlan:
		return 50
	case StepPrompt:
		return 70
	case StepRoute:
		return 80
	case StepDraftReport:
		return 85
	case StepTerminal:
		return 100
	default:
		return 0
	}
}

// Routing is the choice consumed by the router after prompt generation.
type Routing int

const (
	RoutingStop Routing = iota
	RoutingContinueToReport
	RoutingRestartDiscovery
)

func (r Routing) String() string {
	switch r {
	case RoutingContinueToReport:
		return "draft_report"
	case RoutingRestartDiscovery:
		return "find_more"
	default:
		return "end"
	}
}

// ParseRouting maps the wire names "draft_report", "find_more" and "end".
// Anything else is RoutingStop.
func ParseRouting(s string) Routing {
	switch s {
	case "draft_report":
		return RoutingContinueToReport
	case "find_more":
		return RoutingRestartDiscovery
	default:
		return RoutingStop
	}
}

// State is owned by a single run. It must not be shared between concurrent runs.
type State struct {
	Skills   []string
	Items    []entity.Issue
	Selected []string
	Records  []entity.Analysis
	Routing  Routing
	Reports  []entity.ReportRef

	Step      Step
	LastError string
}

// NewState returns a state ready to enter discovery for skills.
func NewState(skills []string) *State {
	return &State{
		Skills: append([]string(nil), skills...),
		Step:   StepStart,
	}
}

// item returns the discovered issue with the given URL.
func (s *State) item(url string) (entity.Issue, bool) {
	for _, it := range s.Items {
		if it.URL == url {
			return it, true
		}
	}
	return entity.Issue{}, false
}

func (s *State) hasRecord(url string) bool {
	for _, r := range s.Records {
		if r.IssueURL == url {
			return true
		}
	}
	return false
}
