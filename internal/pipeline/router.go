package pipeline

// Router picks the step after prompt generation.
type Router struct{}

// Next consumes st.Routing, resetting it to RoutingStop, and returns the
// step it selects.
func (Router) Next(st *State) Step {
	choice := st.Routing
	st.Routing = RoutingStop

	switch choice {
	case RoutingContinueToReport:
		return StepDraftReport
	case RoutingRestartDiscovery:
		return StepDiscover
	default:
		return StepTerminal
	}
}
