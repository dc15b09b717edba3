package safety

import "context"

// Check is a single, independent safety evaluation (C1). Implementations must
// be safe for concurrent use since the watchdog in Monitor polls all
// registered checks every tick. Checks fail closed: any internal error while
// evaluating is reported as at least QueueStop rather than Safe, since an
// unreadable sensor is not evidence of safety.
//
// CheckProposedAction is the pre-action gate: given an action kind ("slew",
// "capture", ...) and its parameters, it reports whether that specific
// action may start right now. The default behavior for a check with nothing
// to say about a given kind is to allow it; a check only returns false for
// the kinds it actually gates.
type Check interface {
	Name() string
	Evaluate(ctx context.Context) Result
	CheckProposedAction(kind string, params map[string]any) bool
}
