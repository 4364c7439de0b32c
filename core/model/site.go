package model

// Site is a candidate charging location.
type Site struct {
	ID      string
	Name    string
	Highway string
	Coord   Coordinate
}

// AssignRule records which branch of the assignment policy placed an event.
type AssignRule int

const (
	RuleSingle AssignRule = iota
	RuleBalanced
	RuleNearest
)

func (r AssignRule) String() string {
	switch r {
	case RuleSingle:
		return "single"
	case RuleBalanced:
		return "balanced"
	case RuleNearest:
		return "nearest"
	default:
		return "unknown"
	}
}
