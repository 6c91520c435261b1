package inherit

import "fmt"

// State reports which variant a tri-state value holds.
type State uint8

const (
	// StateInherit means the layer has no opinion and defers to its parent.
	// It is the zero value so an omitted field always inherits.
	StateInherit State = iota
	// StateUnset is an explicit clear. It never resolves from a parent.
	StateUnset
	// StateSet carries a concrete value.
	StateSet
)

func (s State) String() string {
	switch s {
	case StateInherit:
		return "inherit"
	case StateUnset:
		return "unset"
	case StateSet:
		return "set"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// ParseState converts the textual form produced by String back into a State.
func ParseState(value string) (State, error) {
	switch value {
	case "inherit", "INHERIT":
		return StateInherit, nil
	case "unset", "UNSET":
		return StateUnset, nil
	case "set", "SET":
		return StateSet, nil
	default:
		return StateInherit, fmt.Errorf("inherit: unknown state %q", value)
	}
}

// stateful is implemented by Field and Optional so traces and the reflective
// synthesizer can inspect them without knowing the payload type.
type stateful interface {
	fieldState() State
	payload() (any, bool)
}
