// Package verdict defines the enforcement action shared by every check.
package verdict

// Action represents the enforcement outcome of a single check.
// The ordering is strict: Allow < Warn < Block. Aggregation across
// checks always takes the most restrictive action.
type Action int

const (
	ActionAllow Action = iota + 1
	ActionWarn
	ActionBlock
)

// String returns the lowercase action name.
func (a Action) String() string {
	switch a {
	case ActionAllow:
		return "allow"
	case ActionWarn:
		return "warn"
	case ActionBlock:
		return "block"
	default:
		return "unspecified"
	}
}

// Max returns the more restrictive of two actions.
func Max(a, b Action) Action {
	if b > a {
		return b
	}
	return a
}

// ParseAction maps an action string back to its Action value.
// Unknown strings map to ActionAllow.
func ParseAction(s string) Action {
	switch s {
	case "warn":
		return ActionWarn
	case "block":
		return ActionBlock
	default:
		return ActionAllow
	}
}
