package lifecycle

// DefaultTopCut is the tier table keyed by distinct player count. Events of
// eight players or fewer run no cut.
func DefaultTopCut(playerCount int) int {
	switch {
	case playerCount <= 8:
		return 0
	case playerCount <= 16:
		return 4
	case playerCount <= 32:
		return 8
	default:
		return 16
	}
}

// resolveTopCut reconciles a caller-supplied cut with the player count. A
// requested cut larger than the field is rejected and replaced by the tier
// default, surfacing a warning rather than failing the transition.
func resolveTopCut(requested *int, playerCount int) (*int, []string) {
	var warnings []string
	cut := DefaultTopCut(playerCount)
	if requested != nil {
		if *requested <= playerCount && *requested >= 0 {
			cut = *requested
		} else {
			warnings = append(warnings, "requested top cut exceeds player count; using computed default")
		}
	}
	if cut == 0 {
		return nil, warnings
	}
	return &cut, warnings
}
