package models

// Outcome is the canonical match result vocabulary. Every downstream
// computation (points, rating) switches on this enum, never on the raw
// vendor token that produced it.
type Outcome string

const (
	OutcomeWin20  Outcome = "2-0"
	OutcomeWin21  Outcome = "2-1"
	OutcomeWin10  Outcome = "1-0"
	OutcomeDraw   Outcome = "1-1"
	OutcomeLoss02 Outcome = "0-2"
	OutcomeLoss12 Outcome = "1-2"
	OutcomeLoss01 Outcome = "0-1"
	OutcomeBye    Outcome = "bye"
)

// Valid reports whether o is one of the canonical outcomes.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeWin20, OutcomeWin21, OutcomeWin10, OutcomeDraw,
		OutcomeLoss02, OutcomeLoss12, OutcomeLoss01, OutcomeBye:
		return true
	}
	return false
}

// Scores returns the embedded game score for each side. An unknown outcome
// scores as a draw, matching the normalizer's fallback policy. Byes carry
// no game score.
func (o Outcome) Scores() (a, b int) {
	switch o {
	case OutcomeWin20:
		return 2, 0
	case OutcomeWin21:
		return 2, 1
	case OutcomeWin10:
		return 1, 0
	case OutcomeLoss02:
		return 0, 2
	case OutcomeLoss12:
		return 1, 2
	case OutcomeLoss01:
		return 0, 1
	case OutcomeBye:
		return 0, 0
	default:
		return 1, 1
	}
}

// Mirror returns the same result seen from the opponent's side of the table.
func (o Outcome) Mirror() Outcome {
	switch o {
	case OutcomeWin20:
		return OutcomeLoss02
	case OutcomeWin21:
		return OutcomeLoss12
	case OutcomeWin10:
		return OutcomeLoss01
	case OutcomeLoss02:
		return OutcomeWin20
	case OutcomeLoss12:
		return OutcomeWin21
	case OutcomeLoss01:
		return OutcomeWin10
	default:
		// draws and byes are their own mirror
		return o
	}
}

// IsDraw reports whether neither side strictly out-scored the other.
func (o Outcome) IsDraw() bool {
	if o == OutcomeBye {
		return false
	}
	a, b := o.Scores()
	return a == b
}

// Points returns the Swiss match points each side earns: win 3, draw 1,
// loss 0. A bye awards 3 to the present player only.
func (o Outcome) Points() (a, b int) {
	if o == OutcomeBye {
		return 3, 0
	}
	sa, sb := o.Scores()
	switch {
	case sa > sb:
		return 3, 0
	case sa < sb:
		return 0, 3
	default:
		return 1, 1
	}
}
