package importer

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/danverac/swissladder/internal/models"
)

// RawMatch is one normalized tuple handed to the core by the import
// boundary: round, player, optional opponent and a canonical outcome.
type RawMatch struct {
	Round    int
	Player   string
	Opponent *string
	Outcome  models.Outcome
}

var roundHeaderRe = regexp.MustCompile(`(?i)^\s*(?:round|ronda)\s+(\d+)\b`)

// ErrEmptyExport indicates the export text contained no parseable matches.
var ErrEmptyExport = fmt.Errorf("export contains no matches")

// ParseExport reads a pairing-software text export and yields one RawMatch
// per pairing line. The format is line-oriented: a "Round N" (or "Ronda N")
// header opens each round, followed by semicolon-separated pairing rows of
// the form
//
//	Player One;2-1;Player Two
//	Player Three;;***Bye***
//
// Blank lines and lines before the first round header are skipped. Rows
// with fewer than three fields are ignored rather than failing the whole
// import; score tokens go through Normalize, so malformed scores degrade
// to draws instead of aborting.
func ParseExport(r io.Reader) ([]RawMatch, error) {
	var (
		out   []RawMatch
		round int
	)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if m := roundHeaderRe.FindStringSubmatch(line); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil && n > 0 {
				round = n
			}
			continue
		}
		if round == 0 {
			continue // preamble before the first round header
		}

		fields := strings.Split(line, ";")
		if len(fields) < 3 {
			continue
		}
		player := strings.TrimSpace(fields[0])
		score := strings.TrimSpace(fields[1])
		oppLabel := strings.TrimSpace(fields[2])
		if player == "" {
			continue
		}

		outcome := Normalize(score, oppLabel)
		rm := RawMatch{Round: round, Player: player, Outcome: outcome}
		if outcome != models.OutcomeBye && oppLabel != "" {
			opp := oppLabel
			rm.Opponent = &opp
		}
		out = append(out, rm)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading export: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrEmptyExport
	}
	return out, nil
}

// PlayerNames returns the distinct player names appearing in the parsed
// export, opponents included, in first-seen order.
func PlayerNames(matches []RawMatch) []string {
	seen := make(map[string]bool)
	var names []string
	add := func(n string) {
		if n != "" && !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	for _, m := range matches {
		add(m.Player)
		if m.Opponent != nil {
			add(*m.Opponent)
		}
	}
	return names
}

// MaxRound returns the highest round number present in the export.
func MaxRound(matches []RawMatch) int {
	max := 0
	for _, m := range matches {
		if m.Round > max {
			max = m.Round
		}
	}
	return max
}
