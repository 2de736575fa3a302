package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truth-or-dare-service/internal/app"
	"truth-or-dare-service/internal/domain"
	"truth-or-dare-service/internal/infra/memory"
)

func TestServiceTurnFlow(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, memory.NewSnapshotStore())

	game, err := service.NewGame(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, game.ID)
	assert.Equal(t, domain.PhaseSelectingCategory, game.Phase())

	_, err = service.SetCategory(ctx, game.ID, domain.CategoryParty)
	require.NoError(t, err)
	_, err = service.AddPlayer(ctx, game.ID, "Ann")
	require.NoError(t, err)
	_, err = service.AddPlayer(ctx, game.ID, "Bo")
	require.NoError(t, err)
	state, err := service.StartGame(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseInProgress, state.Phase())

	truth, state, err := service.GetChallenge(ctx, game.ID, domain.KindTruth)
	require.NoError(t, err)
	assert.Contains(t, partyContent().Truths, truth)
	assert.Equal(t, domain.LastChallenge{Kind: domain.KindTruth, Content: truth}, state.LastChallenge)

	state, err = service.CompleteChallenge(ctx, game.ID, false)
	require.NoError(t, err)
	assert.Zero(t, state.Players[0].Points)

	pledge, state, err := service.GetPledge(ctx, game.ID)
	require.NoError(t, err)
	assert.Contains(t, partyContent().Pledges, pledge)
	assert.Equal(t, []string{pledge}, state.Used.Pledges)

	state, err = service.NextPlayer(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, state.CurrentPlayerIndex)
	assert.Equal(t, time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC), state.UpdatedAt)
}

func TestServiceValidationLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, memory.NewSnapshotStore())
	game, err := service.NewGame(ctx)
	require.NoError(t, err)

	_, _, err = service.GetChallenge(ctx, game.ID, domain.KindDare)
	assert.ErrorIs(t, err, domain.ErrNoCategory)

	_, err = service.SetCategory(ctx, game.ID, domain.CategorySoft)
	require.NoError(t, err)
	_, err = service.AddPlayer(ctx, game.ID, "Solo")
	require.NoError(t, err)

	before, err := service.State(ctx, game.ID)
	require.NoError(t, err)
	state, err := service.StartGame(ctx, game.ID)
	assert.ErrorIs(t, err, domain.ErrNotEnoughPlayers)
	assert.Equal(t, before, state)

	_, _, err = service.GetChallenge(ctx, game.ID, domain.KindPledge)
	assert.ErrorIs(t, err, domain.ErrInvalidChallengeKind)
}

func TestServiceMissingContentFallsBack(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, memory.NewSnapshotStore())
	game, err := service.NewGame(ctx)
	require.NoError(t, err)

	_, err = service.SetCategory(ctx, game.ID, domain.CategoryHot)
	require.NoError(t, err)
	got, _, err := service.GetChallenge(ctx, game.ID, domain.KindDare)
	require.NoError(t, err)
	assert.Equal(t, domain.NoContentFallback, got)
}

func TestServiceRestoresFromSnapshot(t *testing.T) {
	ctx := context.Background()
	snapshots := memory.NewSnapshotStore()
	service, sessions := newTestService(t, snapshots)

	game, err := service.NewGame(ctx)
	require.NoError(t, err)
	_, err = service.SetCategory(ctx, game.ID, domain.CategoryParty)
	require.NoError(t, err)
	for _, name := range []string{"Ann", "Bo"} {
		_, err = service.AddPlayer(ctx, game.ID, name)
		require.NoError(t, err)
	}
	_, err = service.StartGame(ctx, game.ID)
	require.NoError(t, err)
	_, err = service.CompleteChallenge(ctx, game.ID, true)
	require.NoError(t, err)
	saved, err := service.NextPlayer(ctx, game.ID)
	require.NoError(t, err)

	require.NoError(t, service.Release(ctx, game.ID))
	assert.Zero(t, sessions.Len())

	// A new process with the same snapshot store picks the game up again.
	restarted, _ := newTestService(t, snapshots)
	restored, err := restarted.State(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, saved, restored)
}

func TestServiceSurvivesBrokenSnapshotStore(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, failingSnapshots{})

	state, err := service.SetCategory(ctx, "offline", domain.CategorySoft)
	require.NoError(t, err)
	assert.Equal(t, "offline", state.ID)

	state, err = service.AddPlayer(ctx, "offline", "Ann")
	require.NoError(t, err)
	assert.Len(t, state.Players, 1, "state is kept in memory when saving fails")
}

func TestServiceReleaseKeepsGameWhenSaveFails(t *testing.T) {
	ctx := context.Background()
	service, sessions := newTestService(t, failingSnapshots{})

	_, err := service.SetCategory(ctx, "g", domain.CategoryParty)
	require.NoError(t, err)
	for _, name := range []string{"Ann", "Bo"} {
		_, err = service.AddPlayer(ctx, "g", name)
		require.NoError(t, err)
	}
	_, err = service.StartGame(ctx, "g")
	require.NoError(t, err)
	before, err := service.CompleteChallenge(ctx, "g", true)
	require.NoError(t, err)

	err = service.Release(ctx, "g")
	require.Error(t, err)
	assert.Equal(t, 1, sessions.Len(), "unsaved game stays live")

	after, err := service.State(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, domain.PhaseInProgress, after.Phase())
	assert.Equal(t, 1, after.Players[0].Points)
}

func TestServiceReleaseOfUnknownGame(t *testing.T) {
	service, _ := newTestService(t, failingSnapshots{})
	assert.NoError(t, service.Release(context.Background(), "nobody"))
}

func TestServiceDiscardForgetsGame(t *testing.T) {
	ctx := context.Background()
	snapshots := memory.NewSnapshotStore()
	service, sessions := newTestService(t, snapshots)

	_, err := service.SetCategory(ctx, "g", domain.CategorySoft)
	require.NoError(t, err)
	_, err = service.AddPlayer(ctx, "g", "Ann")
	require.NoError(t, err)

	require.NoError(t, service.Discard(ctx, "g"))
	assert.Zero(t, sessions.Len())
	_, err = snapshots.Load(ctx, "g")
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)

	state, err := service.State(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseSelectingCategory, state.Phase())
	assert.Empty(t, state.Players)

	broken, _ := newTestService(t, failingSnapshots{})
	assert.Error(t, broken.Discard(ctx, "g"))
}

// TestServiceSlowRestoreDoesNotBlockOtherGames loads one game from a stalled
// store while another game is served, and checks concurrent callers for the
// stalled game share a single load.
func TestServiceSlowRestoreDoesNotBlockOtherGames(t *testing.T) {
	ctx := context.Background()
	snapshots := &stalledSnapshots{
		SnapshotStore: memory.NewSnapshotStore(),
		stalled:       "slow",
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	service, _ := newTestService(t, snapshots)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = service.State(ctx, "slow")
		}()
	}
	<-snapshots.entered

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := service.AddPlayer(ctx, "fast", "Ann")
		assert.NoError(t, err)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("restoring one game blocked another")
	}

	close(snapshots.release)
	wg.Wait()
	assert.Equal(t, int32(1), snapshots.slowLoads.Load())
}

func TestServiceCorruptSnapshotStartsOver(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, corruptSnapshots{})

	state, err := service.State(ctx, "broken")
	require.NoError(t, err)
	assert.Equal(t, "broken", state.ID)
	assert.Equal(t, domain.PhaseSelectingCategory, state.Phase())
	assert.Equal(t, 1, state.CurrentRound)
}

func TestServiceLanguageAndReset(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, memory.NewSnapshotStore())
	game, err := service.NewGame(ctx)
	require.NoError(t, err)
	_, err = service.SetCategory(ctx, game.ID, domain.CategoryParty)
	require.NoError(t, err)

	_, _, err = service.GetChallenge(ctx, game.ID, domain.KindTruth)
	require.NoError(t, err)

	state, err := service.SetLanguage(ctx, game.ID, domain.LanguageFrench)
	require.NoError(t, err)
	assert.Empty(t, state.Used.Truths)

	fr, _, err := service.GetChallenge(ctx, game.ID, domain.KindTruth)
	require.NoError(t, err)
	assert.Contains(t, frenchPartyContent().Truths, fr)

	state, err = service.ResetGame(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseSelectingCategory, state.Phase())
	assert.Equal(t, game.ID, state.ID)
}

func TestServiceGamesAreIsolated(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, memory.NewSnapshotStore())

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("game-%d", i)
		_, err := service.SetCategory(ctx, id, domain.CategorySoft)
		require.NoError(t, err)
		for p := 0; p <= i; p++ {
			_, err = service.AddPlayer(ctx, id, fmt.Sprintf("P%d", p))
			require.NoError(t, err)
		}
	}
	for i := 0; i < 3; i++ {
		state, err := service.State(ctx, fmt.Sprintf("game-%d", i))
		require.NoError(t, err)
		assert.Len(t, state.Players, i+1)
	}
}

func newTestService(t *testing.T, snapshots app.SnapshotStore) (*app.GameService, *memory.SessionStore) {
	t.Helper()
	sessions := memory.NewSessionStore()
	contentRepo := memory.NewContentRepository(memory.NewStaticContentLoader(map[domain.ContentKey]domain.ContentSet{
		{Category: domain.CategoryParty, Language: domain.LanguageEnglish}: partyContent(),
		{Category: domain.CategoryParty, Language: domain.LanguageFrench}:  frenchPartyContent(),
		{Category: domain.CategorySoft, Language: domain.LanguageEnglish}:  partyContent(),
	}), 5*time.Minute)
	now := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)
	service := app.NewGameService(sessions, contentRepo, snapshots, app.DefaultRules(),
		app.WithRandomSource(app.NewSeededSource(3)),
		app.WithClock(func() time.Time { return now }),
	)
	return service, sessions
}

func partyContent() domain.ContentSet {
	return domain.ContentSet{
		Truths:  []string{"What is the weirdest thing in your bag?", "Who here would you call at 3am?"},
		Dares:   []string{"Do your best robot dance.", "Talk like a pirate until your next turn."},
		Pledges: []string{"Hop on one foot for 10 seconds.", "Compliment every player."},
	}
}

func frenchPartyContent() domain.ContentSet {
	return domain.ContentSet{
		Truths:  []string{"Quelle est la chose la plus bizarre dans ton sac ?"},
		Dares:   []string{"Fais ta meilleure danse du robot."},
		Pledges: []string{"Fais un compliment à chaque joueur."},
	}
}

type failingSnapshots struct{}

func (failingSnapshots) Load(context.Context, string) (domain.GameState, error) {
	return domain.GameState{}, errors.New("store offline")
}

func (failingSnapshots) Save(context.Context, domain.GameState) error {
	return errors.New("store offline")
}

func (failingSnapshots) Delete(context.Context, string) error {
	return errors.New("store offline")
}

type corruptSnapshots struct{ failingSnapshots }

func (corruptSnapshots) Load(context.Context, string) (domain.GameState, error) {
	return domain.GameState{}, fmt.Errorf("decode: %w", domain.ErrCorruptSnapshot)
}

type stalledSnapshots struct {
	app.SnapshotStore
	stalled   string
	entered   chan struct{}
	release   chan struct{}
	once      sync.Once
	slowLoads atomic.Int32
}

func (s *stalledSnapshots) Load(ctx context.Context, gameID string) (domain.GameState, error) {
	if gameID == s.stalled {
		s.slowLoads.Add(1)
		s.once.Do(func() { close(s.entered) })
		<-s.release
	}
	return s.SnapshotStore.Load(ctx, gameID)
}
