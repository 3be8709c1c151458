package dialog

// Edge is a directed transition between two states.
type Edge struct {
	From State
	To   State
}

var ladderTargets = []State{StateRetryTaskCheck, StateConfirmTask, StateEscalate}

// DefaultEdges is the allow-list of the task-status call flow. Terminal states
// and CONFIRM_END have no outgoing edges; CONFIRM_END is entered by the
// machine's two-phase end, not by a proposed transition.
func DefaultEdges() []Edge {
	graph := map[State][]State{
		StateIntro:           {StateTaskCheck, StateCallbackTime},
		StateTaskCheck:       {StateTaskDone, StateTaskPending},
		StateRetryTaskCheck:  {StateTaskDone, StateTaskPending},
		StateConfirmTask:     {StateTaskDone, StateTaskPending},
		StateTaskPending:     {StateProblemRecorded},
		StateCallbackTime:    {StateCallbackConfirm},
		StateCallbackConfirm: {StateTaskDone, StateTaskPending},
	}
	var edges []Edge
	for _, from := range States() {
		targets, ok := graph[from]
		if !ok {
			continue
		}
		for _, to := range targets {
			edges = append(edges, Edge{From: from, To: to})
		}
		for _, to := range ladderTargets {
			edges = append(edges, Edge{From: from, To: to})
		}
	}
	return edges
}

// Guard validates proposed transitions against an explicit allow-list.
// It is immutable after construction.
type Guard struct {
	allowed map[State]map[State]struct{}
}

func NewGuard(edges []Edge) *Guard {
	if edges == nil {
		edges = DefaultEdges()
	}
	g := &Guard{allowed: make(map[State]map[State]struct{})}
	for _, e := range edges {
		if !e.From.Valid() || !e.To.Valid() {
			continue
		}
		if g.allowed[e.From] == nil {
			g.allowed[e.From] = make(map[State]struct{})
		}
		g.allowed[e.From][e.To] = struct{}{}
	}
	return g
}

// Validate reports whether from→to is a legal edge.
func (g *Guard) Validate(from, to State) bool {
	targets, ok := g.allowed[from]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}

// Resolve returns to when the edge is legal and ESCALATE otherwise.
func (g *Guard) Resolve(from, to State) (State, bool) {
	if g.Validate(from, to) {
		return to, true
	}
	return StateEscalate, false
}
