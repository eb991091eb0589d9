package models

import "testing"

var allOutcomes = []Outcome{
	OutcomeWin20, OutcomeWin21, OutcomeWin10, OutcomeDraw,
	OutcomeLoss02, OutcomeLoss12, OutcomeLoss01, OutcomeBye,
}

func TestOutcomeValid(t *testing.T) {
	for _, o := range allOutcomes {
		if !o.Valid() {
			t.Errorf("%q should be valid", o)
		}
	}
	for _, o := range []Outcome{"", "3-0", "W", "draw"} {
		if o.Valid() {
			t.Errorf("%q should be invalid", o)
		}
	}
}

func TestOutcomeMirrorIsInvolution(t *testing.T) {
	for _, o := range allOutcomes {
		if o.Mirror().Mirror() != o {
			t.Errorf("mirror of mirror of %q is %q", o, o.Mirror().Mirror())
		}
	}
	if OutcomeDraw.Mirror() != OutcomeDraw {
		t.Error("a draw mirrors to itself")
	}
	if OutcomeBye.Mirror() != OutcomeBye {
		t.Error("a bye mirrors to itself")
	}
}

func TestOutcomePoints(t *testing.T) {
	cases := []struct {
		o      Outcome
		pa, pb int
	}{
		{OutcomeWin20, 3, 0},
		{OutcomeWin21, 3, 0},
		{OutcomeWin10, 3, 0},
		{OutcomeDraw, 1, 1},
		{OutcomeLoss02, 0, 3},
		{OutcomeLoss12, 0, 3},
		{OutcomeLoss01, 0, 3},
		{OutcomeBye, 3, 0},
		{Outcome("mystery"), 1, 1}, // normalizer fallback: unknown scores as a draw
	}
	for _, c := range cases {
		pa, pb := c.o.Points()
		if pa != c.pa || pb != c.pb {
			t.Errorf("%q.Points() = %d,%d want %d,%d", c.o, pa, pb, c.pa, c.pb)
		}
	}
}

func TestOutcomeIsDraw(t *testing.T) {
	if !OutcomeDraw.IsDraw() {
		t.Error("1-1 is a draw")
	}
	if OutcomeBye.IsDraw() {
		t.Error("a bye is not a draw")
	}
	if OutcomeWin21.IsDraw() {
		t.Error("2-1 is not a draw")
	}
}

func TestActiveTokenFollowsState(t *testing.T) {
	confirm, edit := "c", "e"
	tr := &Tournament{State: StatePendingImport, ConfirmToken: &confirm, EditToken: &edit}

	if got := tr.ActiveToken(TokenConfirm); got == nil || *got != confirm {
		t.Fatal("pending tournament must expose its confirm token")
	}
	if tr.ActiveToken(TokenEdit) != nil {
		t.Fatal("no edit token while pending")
	}

	tr.State = StateFinalized
	if tr.ActiveToken(TokenConfirm) != nil || tr.ActiveToken(TokenEdit) != nil {
		t.Fatal("finalized tournaments accept no token at all")
	}

	tr.State = StateEditing
	if got := tr.ActiveToken(TokenEdit); got == nil || *got != edit {
		t.Fatal("editing tournament must expose its edit token")
	}
	if tr.ActiveToken(TokenConfirm) != nil {
		t.Fatal("no confirm token while editing")
	}
}
