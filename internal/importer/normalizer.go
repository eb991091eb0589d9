// internal/importer/normalizer.go
package importer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/danverac/swissladder/internal/models"
)

// byeSentinels are the vendor labels that mark an absent opponent,
// compared case-insensitively. A matching opponent label always yields the
// bye outcome regardless of any accompanying score text.
var byeSentinels = map[string]bool{
	"***bye***":   true,
	"bye":         true,
	"ronda libre": true,
}

var scoreRe = regexp.MustCompile(`^\s*(\d+)\s*[-:]\s*(\d+)\s*$`)

// IsByeLabel reports whether the opponent label is a vendor bye sentinel.
func IsByeLabel(opponentLabel string) bool {
	return byeSentinels[strings.ToLower(strings.TrimSpace(opponentLabel))]
}

// Normalize maps a vendor-specific result token into the canonical outcome
// vocabulary. Fallback policy, relied on by every downstream component:
// unparseable score tokens become a draw; a bye-sentinel opponent always
// wins, whatever the score text says.
func Normalize(rawToken, opponentLabel string) models.Outcome {
	if IsByeLabel(opponentLabel) {
		return models.OutcomeBye
	}

	m := scoreRe.FindStringSubmatch(rawToken)
	if m == nil {
		return models.OutcomeDraw
	}
	a, errA := strconv.Atoi(m[1])
	b, errB := strconv.Atoi(m[2])
	if errA != nil || errB != nil {
		return models.OutcomeDraw
	}

	// Vendor exports report arbitrary game counts ("3-0", "6-9"); fold
	// them onto the closed enum by comparing the sides.
	switch {
	case a > b && b == 0 && a >= 2:
		return models.OutcomeWin20
	case a > b && b == 0:
		return models.OutcomeWin10
	case a > b:
		return models.OutcomeWin21
	case a < b && a == 0 && b >= 2:
		return models.OutcomeLoss02
	case a < b && a == 0:
		return models.OutcomeLoss01
	case a < b:
		return models.OutcomeLoss12
	default:
		return models.OutcomeDraw
	}
}
