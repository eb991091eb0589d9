package lifecycle_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danverac/swissladder/internal/lifecycle"
	"github.com/danverac/swissladder/internal/models"
	"github.com/danverac/swissladder/internal/rating"
	"github.com/danverac/swissladder/internal/recalc"
	"github.com/danverac/swissladder/internal/testutil"
)

// fakeMirror records token mirror traffic so tests can assert the cache is
// kept in step with the tournament row.
type fakeMirror struct {
	mu     sync.Mutex
	tokens map[string]string
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{tokens: make(map[string]string)}
}

func (f *fakeMirror) key(id uuid.UUID, kind models.TokenKind, userID uuid.UUID) string {
	return string(kind) + ":" + id.String() + ":" + userID.String()
}

func (f *fakeMirror) SetActiveToken(ctx context.Context, id uuid.UUID, kind models.TokenKind, userID uuid.UUID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[f.key(id, kind, userID)] = token
	return nil
}

func (f *fakeMirror) GetActiveToken(ctx context.Context, id uuid.UUID, kind models.TokenKind, userID uuid.UUID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens[f.key(id, kind, userID)], nil
}

func (f *fakeMirror) DeleteActiveToken(ctx context.Context, id uuid.UUID, kind models.TokenKind, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tokens, f.key(id, kind, userID))
	return nil
}

func newService(store *testutil.MemStore, mirror lifecycle.TokenMirror) *lifecycle.Service {
	log := logrus.New()
	log.SetOutput(io.Discard)
	eng := rating.NewEngine(400)
	orch := recalc.NewOrchestrator(store, eng, 1000, log)
	return lifecycle.NewService(store, orch, mirror, eng, 1000, log)
}

// pendingPair seeds a pending two-player tournament where alice beat brett
// in the only round, and returns everything a transition test needs.
func pendingPair(store *testutil.MemStore, owner uuid.UUID) (*models.Tournament, string, *models.Player, *models.Player) {
	alice := store.AddPlayer("Alice", 1000)
	brett := store.AddPlayer("Brett", 1000)
	confirm := lifecycle.MintToken()
	t := &models.Tournament{
		Name:         "Tuesday Modern",
		Date:         time.Now(),
		Rounds:       1,
		State:        models.StatePendingImport,
		OwnerID:      owner,
		ConfirmToken: &confirm,
	}
	store.AddTournament(t, []uuid.UUID{alice.ID, brett.ID}, []models.Match{
		{Round: 1, Player1ID: alice.ID, Player2ID: &brett.ID, Outcome: models.OutcomeWin20},
	})
	return t, confirm, alice, brett
}

func TestFinalizeHappyPath(t *testing.T) {
	store := testutil.NewMemStore()
	mirror := newFakeMirror()
	svc := newService(store, mirror)
	owner := uuid.New()
	tourn, confirm, alice, brett := pendingPair(store, owner)
	_ = mirror.SetActiveToken(context.Background(), tourn.ID, models.TokenConfirm, owner, confirm)

	res, err := svc.Finalize(context.Background(), tourn.ID, lifecycle.Caller{UserID: owner}, confirm, nil)
	require.NoError(t, err)
	assert.Nil(t, res.TopCut, "two players never have a cut")
	assert.Empty(t, res.Warnings)

	// both players are provisional, so k = 96 and an even win moves 48
	assert.Equal(t, 1048, store.Players[alice.ID].Rating)
	assert.Equal(t, 952, store.Players[brett.ID].Rating)

	got, err := store.GetTournament(context.Background(), tourn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateFinalized, got.State)
	assert.Nil(t, got.ConfirmToken, "confirm token is consumed")

	require.Len(t, store.History[tourn.ID], 2)

	mirrored, _ := mirror.GetActiveToken(context.Background(), tourn.ID, models.TokenConfirm, owner)
	assert.Empty(t, mirrored, "mirror cleared after consumption")
}

func TestFinalizeRejectsWrongToken(t *testing.T) {
	store := testutil.NewMemStore()
	svc := newService(store, nil)
	owner := uuid.New()
	tourn, _, alice, _ := pendingPair(store, owner)

	_, err := svc.Finalize(context.Background(), tourn.ID, lifecycle.Caller{UserID: owner}, "bogus", nil)
	assert.ErrorIs(t, err, lifecycle.ErrStaleToken)

	got, _ := store.GetTournament(context.Background(), tourn.ID)
	assert.Equal(t, models.StatePendingImport, got.State, "failed verify leaves pending state intact")
	assert.Equal(t, 1000, store.Players[alice.ID].Rating)
}

func TestFinalizeTwiceConflicts(t *testing.T) {
	store := testutil.NewMemStore()
	svc := newService(store, nil)
	owner := uuid.New()
	tourn, confirm, _, _ := pendingPair(store, owner)
	caller := lifecycle.Caller{UserID: owner}

	_, err := svc.Finalize(context.Background(), tourn.ID, caller, confirm, nil)
	require.NoError(t, err)

	// the consumed token no longer verifies and the state no longer permits it
	_, err = svc.Finalize(context.Background(), tourn.ID, caller, confirm, nil)
	assert.ErrorIs(t, err, lifecycle.ErrAlreadyFinalized)
}

func TestFinalizeAuthorization(t *testing.T) {
	store := testutil.NewMemStore()
	svc := newService(store, nil)
	owner := uuid.New()
	storeID := uuid.New()
	store.Stores[storeID] = &models.Store{ID: storeID, CompetitiveTokens: 3, LastTokenReset: time.Now()}

	tourn, confirm, _, _ := pendingPair(store, owner)
	store.Tournaments[tourn.ID].StoreID = &storeID

	// a stranger is refused before any token checking happens
	_, err := svc.Finalize(context.Background(), tourn.ID, lifecycle.Caller{UserID: uuid.New()}, confirm, nil)
	assert.ErrorIs(t, err, lifecycle.ErrForbidden)

	// an organizer of a different store is refused too
	other := uuid.New()
	_, err = svc.Finalize(context.Background(), tourn.ID, lifecycle.Caller{UserID: uuid.New(), Organizer: true, StoreID: &other}, confirm, nil)
	assert.ErrorIs(t, err, lifecycle.ErrForbidden)

	// an organizer of the owning store passes
	_, err = svc.Finalize(context.Background(), tourn.ID, lifecycle.Caller{UserID: uuid.New(), Organizer: true, StoreID: &storeID}, confirm, nil)
	assert.NoError(t, err)
}

func TestFinalizeSpendsStoreToken(t *testing.T) {
	store := testutil.NewMemStore()
	svc := newService(store, nil)
	owner := uuid.New()
	storeID := uuid.New()
	store.Stores[storeID] = &models.Store{ID: storeID, CompetitiveTokens: 1, PremiumTokens: 2, LastTokenReset: time.Now()}

	tourn, confirm, _, _ := pendingPair(store, owner)
	store.Tournaments[tourn.ID].StoreID = &storeID

	_, err := svc.Finalize(context.Background(), tourn.ID, lifecycle.Caller{UserID: owner}, confirm, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, store.Stores[storeID].CompetitiveTokens)
	assert.Equal(t, 2, store.Stores[storeID].PremiumTokens, "non-premium event spends the competitive pool")

	// pool exhausted: the next finalization is refused and stays pending
	second, confirm2, _, _ := pendingPair(store, owner)
	store.Tournaments[second.ID].StoreID = &storeID
	_, err = svc.Finalize(context.Background(), second.ID, lifecycle.Caller{UserID: owner}, confirm2, nil)
	assert.ErrorIs(t, err, lifecycle.ErrNoStoreTokens)
	got, _ := store.GetTournament(context.Background(), second.ID)
	assert.Equal(t, models.StatePendingImport, got.State)
}

func TestFinalizePremiumSpendsPremiumToken(t *testing.T) {
	store := testutil.NewMemStore()
	svc := newService(store, nil)
	owner := uuid.New()
	storeID := uuid.New()
	store.Stores[storeID] = &models.Store{ID: storeID, CompetitiveTokens: 5, PremiumTokens: 1, LastTokenReset: time.Now()}

	tourn, confirm, _, _ := pendingPair(store, owner)
	store.Tournaments[tourn.ID].StoreID = &storeID
	store.Tournaments[tourn.ID].Premium = true

	_, err := svc.Finalize(context.Background(), tourn.ID, lifecycle.Caller{UserID: owner}, confirm, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, store.Stores[storeID].PremiumTokens)
	assert.Equal(t, 5, store.Stores[storeID].CompetitiveTokens)
}

func TestFinalizeMonthlyTokenRefill(t *testing.T) {
	store := testutil.NewMemStore()
	svc := newService(store, nil)
	owner := uuid.New()
	storeID := uuid.New()
	store.Stores[storeID] = &models.Store{
		ID:                       storeID,
		CompetitiveTokens:        0,
		LastTokenReset:           time.Now().AddDate(0, -2, 0),
		DefaultCompetitiveTokens: 5,
		DefaultPremiumTokens:     1,
	}

	tourn, confirm, _, _ := pendingPair(store, owner)
	store.Tournaments[tourn.ID].StoreID = &storeID

	_, err := svc.Finalize(context.Background(), tourn.ID, lifecycle.Caller{UserID: owner}, confirm, nil)
	require.NoError(t, err)

	st := store.Stores[storeID]
	assert.Equal(t, 4, st.CompetitiveTokens, "refilled to default, then one spent")
	assert.Equal(t, 1, st.PremiumTokens)
	assert.False(t, st.NeedsTokenReset(time.Now()))
}

func TestFinalizeTopCut(t *testing.T) {
	store := testutil.NewMemStore()
	svc := newService(store, nil)
	owner := uuid.New()

	seed := func(n int) (*models.Tournament, string) {
		ids := make([]uuid.UUID, n)
		for i := range ids {
			ids[i] = store.AddPlayer(fmt.Sprintf("P%d", i), 1000).ID
		}
		confirm := lifecycle.MintToken()
		t := &models.Tournament{Name: "Cut Test", Rounds: 1, State: models.StatePendingImport, OwnerID: owner, ConfirmToken: &confirm}
		store.AddTournament(t, ids, nil)
		return t, confirm
	}

	// nine players land in the cut-to-4 tier
	tourn, confirm := seed(9)
	res, err := svc.Finalize(context.Background(), tourn.ID, lifecycle.Caller{UserID: owner}, confirm, nil)
	require.NoError(t, err)
	require.NotNil(t, res.TopCut)
	assert.Equal(t, 4, *res.TopCut)

	// a cut larger than the field falls back to the tier default with a warning
	tourn2, confirm2 := seed(9)
	want := 16
	res, err = svc.Finalize(context.Background(), tourn2.ID, lifecycle.Caller{UserID: owner}, confirm2, &want)
	require.NoError(t, err)
	require.NotNil(t, res.TopCut)
	assert.Equal(t, 4, *res.TopCut)
	assert.NotEmpty(t, res.Warnings)

	// an explicit zero means "no cut" even above the tier threshold
	tourn3, confirm3 := seed(9)
	zero := 0
	res, err = svc.Finalize(context.Background(), tourn3.ID, lifecycle.Caller{UserID: owner}, confirm3, &zero)
	require.NoError(t, err)
	assert.Nil(t, res.TopCut)
}

func TestFinalizeCasualAwards(t *testing.T) {
	store := testutil.NewMemStore()
	svc := newService(store, nil)
	owner := uuid.New()
	tourn, confirm, alice, brett := pendingPair(store, owner)
	store.Tournaments[tourn.ID].Casual = true

	_, err := svc.Finalize(context.Background(), tourn.ID, lifecycle.Caller{UserID: owner}, confirm, nil)
	require.NoError(t, err)

	require.Len(t, store.Awards, 2)
	assert.Equal(t, 5, store.Players[alice.ID].CasualPoints, "winner takes first-place points")
	assert.Equal(t, 3, store.Players[brett.ID].CasualPoints)

	// casual events still move ratings, just at the reduced k
	assert.Equal(t, 1024, store.Players[alice.ID].Rating, "k = 16*3 while provisional")
	assert.Equal(t, 976, store.Players[brett.ID].Rating)
}

func TestDiscard(t *testing.T) {
	store := testutil.NewMemStore()
	mirror := newFakeMirror()
	svc := newService(store, mirror)
	owner := uuid.New()
	tourn, confirm, alice, _ := pendingPair(store, owner)
	caller := lifecycle.Caller{UserID: owner}

	err := svc.Discard(context.Background(), tourn.ID, caller, "bogus")
	assert.ErrorIs(t, err, lifecycle.ErrStaleToken)

	err = svc.Discard(context.Background(), tourn.ID, caller, confirm)
	require.NoError(t, err)

	_, err = svc.Finalize(context.Background(), tourn.ID, caller, confirm, nil)
	assert.ErrorIs(t, err, lifecycle.ErrTournamentNotFound, "discard deletes the row outright")
	assert.Equal(t, 1000, store.Players[alice.ID].Rating, "nothing was ever committed")
}

func TestDiscardOnlyPending(t *testing.T) {
	store := testutil.NewMemStore()
	svc := newService(store, nil)
	owner := uuid.New()
	tourn, confirm, _, _ := pendingPair(store, owner)
	caller := lifecycle.Caller{UserID: owner}

	_, err := svc.Finalize(context.Background(), tourn.ID, caller, confirm, nil)
	require.NoError(t, err)

	err = svc.Discard(context.Background(), tourn.ID, caller, confirm)
	assert.ErrorIs(t, err, lifecycle.ErrNotPending)
}

func TestBeginEditRequiresFinalized(t *testing.T) {
	store := testutil.NewMemStore()
	svc := newService(store, nil)
	owner := uuid.New()
	tourn, _, _, _ := pendingPair(store, owner)

	_, err := svc.BeginEdit(context.Background(), tourn.ID, lifecycle.Caller{UserID: owner})
	assert.ErrorIs(t, err, lifecycle.ErrNotFinalized, "pending can never jump straight to editing")
}

func TestEditSession(t *testing.T) {
	store := testutil.NewMemStore()
	mirror := newFakeMirror()
	svc := newService(store, mirror)
	owner := uuid.New()
	caller := lifecycle.Caller{UserID: owner}
	tourn, confirm, alice, brett := pendingPair(store, owner)

	_, err := svc.Finalize(context.Background(), tourn.ID, caller, confirm, nil)
	require.NoError(t, err)

	edit, err := svc.BeginEdit(context.Background(), tourn.ID, caller)
	require.NoError(t, err)
	require.NotEmpty(t, edit)
	assert.NotEqual(t, confirm, edit, "edit token is freshly minted, never the consumed confirm token")

	mirrored, _ := mirror.GetActiveToken(context.Background(), tourn.ID, models.TokenEdit, owner)
	assert.Equal(t, edit, mirrored, "edit token is mirrored under the minting user")

	// the spent confirm token holds no power over the edit session
	err = svc.SubmitRound(context.Background(), tourn.ID, caller, confirm, 1, nil)
	assert.ErrorIs(t, err, lifecycle.ErrStaleToken)

	// flip round one to a win for brett
	err = svc.SubmitRound(context.Background(), tourn.ID, caller, edit, 1, []models.Match{
		{Player1ID: brett.ID, Player2ID: &alice.ID, Outcome: models.OutcomeWin21},
	})
	require.NoError(t, err)

	err = svc.FinishEdit(context.Background(), tourn.ID, caller, edit)
	require.NoError(t, err)

	got, _ := store.GetTournament(context.Background(), tourn.ID)
	assert.Equal(t, models.StateFinalized, got.State)
	assert.Nil(t, got.EditToken)

	// the replay rebuilt history from scratch: brett now holds the gain
	assert.Equal(t, 1048, store.Players[brett.ID].Rating)
	assert.Equal(t, 952, store.Players[alice.ID].Rating)

	// the edit token is single-use
	err = svc.FinishEdit(context.Background(), tourn.ID, caller, edit)
	assert.ErrorIs(t, err, lifecycle.ErrNotEditing)
	err = svc.SubmitRound(context.Background(), tourn.ID, caller, edit, 1, nil)
	assert.ErrorIs(t, err, lifecycle.ErrNotEditing)

	mirrored, _ = mirror.GetActiveToken(context.Background(), tourn.ID, models.TokenEdit, owner)
	assert.Empty(t, mirrored)
}

// Two finalize commits racing for a store's last token: the decrement is
// guarded at commit time, so preparing both commits up front (as two
// concurrent service calls would) still spends the token exactly once.
func TestStoreSpendGuardedAtCommit(t *testing.T) {
	store := testutil.NewMemStore()
	owner := uuid.New()
	storeID := uuid.New()
	store.Stores[storeID] = &models.Store{ID: storeID, CompetitiveTokens: 1, LastTokenReset: time.Now()}

	first, _, _, _ := pendingPair(store, owner)
	second, _, _, _ := pendingPair(store, owner)
	store.Tournaments[first.ID].StoreID = &storeID
	store.Tournaments[second.ID].StoreID = &storeID

	spend := &lifecycle.StoreSpend{StoreID: storeID}
	err := store.CommitFinalize(context.Background(), lifecycle.FinalizeCommit{
		TournamentID: first.ID, StoreSpend: spend,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, store.Stores[storeID].CompetitiveTokens)

	err = store.CommitFinalize(context.Background(), lifecycle.FinalizeCommit{
		TournamentID: second.ID, StoreSpend: spend,
	})
	assert.ErrorIs(t, err, lifecycle.ErrNoStoreTokens)
	got, _ := store.GetTournament(context.Background(), second.ID)
	assert.Equal(t, models.StatePendingImport, got.State, "a refused spend rolls the whole commit back")
	assert.Equal(t, 0, store.Stores[storeID].CompetitiveTokens, "never goes negative")
}

func TestSubmitRoundValidation(t *testing.T) {
	store := testutil.NewMemStore()
	svc := newService(store, nil)
	owner := uuid.New()
	caller := lifecycle.Caller{UserID: owner}
	tourn, confirm, alice, brett := pendingPair(store, owner)

	_, err := svc.Finalize(context.Background(), tourn.ID, caller, confirm, nil)
	require.NoError(t, err)
	edit, err := svc.BeginEdit(context.Background(), tourn.ID, caller)
	require.NoError(t, err)

	err = svc.SubmitRound(context.Background(), tourn.ID, caller, edit, 0, nil)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidRound)
	err = svc.SubmitRound(context.Background(), tourn.ID, caller, edit, 2, nil)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidRound, "round beyond the tournament's round count")

	err = svc.SubmitRound(context.Background(), tourn.ID, caller, edit, 1, []models.Match{
		{Player1ID: alice.ID, Player2ID: &alice.ID, Outcome: models.OutcomeWin20},
	})
	assert.ErrorIs(t, err, lifecycle.ErrSelfPairing)

	err = svc.SubmitRound(context.Background(), tourn.ID, caller, edit, 1, []models.Match{
		{Player1ID: alice.ID, Outcome: models.OutcomeWin20},
	})
	assert.ErrorIs(t, err, lifecycle.ErrBadBye, "missing opponent must be an explicit bye")

	err = svc.SubmitRound(context.Background(), tourn.ID, caller, edit, 1, []models.Match{
		{Player1ID: alice.ID, Player2ID: &brett.ID, Outcome: models.OutcomeBye},
	})
	assert.ErrorIs(t, err, lifecycle.ErrBadBye, "a bye cannot name an opponent")

	// an unrecognised result string is coerced to a draw rather than refused
	err = svc.SubmitRound(context.Background(), tourn.ID, caller, edit, 1, []models.Match{
		{Player1ID: alice.ID, Player2ID: &brett.ID, Outcome: models.Outcome("weird")},
	})
	require.NoError(t, err)
	ms, _ := store.TournamentMatches(context.Background(), tourn.ID)
	require.Len(t, ms, 1)
	assert.Equal(t, models.OutcomeDraw, ms[0].Outcome)
}

func TestDefaultTopCut(t *testing.T) {
	cases := map[int]int{
		2: 0, 8: 0, 9: 4, 16: 4, 17: 8, 32: 8, 33: 16, 120: 16,
	}
	for players, want := range cases {
		if got := lifecycle.DefaultTopCut(players); got != want {
			t.Errorf("DefaultTopCut(%d) = %d, want %d", players, got, want)
		}
	}
}

func TestMintTokenUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 64; i++ {
		tok := lifecycle.MintToken()
		require.NotEmpty(t, tok)
		require.False(t, seen[tok], "tokens must never repeat")
		seen[tok] = true
	}
}
