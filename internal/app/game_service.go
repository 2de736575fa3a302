package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"truth-or-dare-service/internal/domain"
	"truth-or-dare-service/internal/observability"
)

// SessionRepository holds the live games of this process.
type SessionRepository interface {
	Get(gameID string) (*Session, bool)
	// GetOrCreate returns the live session for gameID, calling create only if
	// none exists. create runs under the repository lock and must not block.
	GetOrCreate(gameID string, create func() *Session) *Session
	Delete(gameID string)
}

// ContentRepository loads truths, dares and pledges (from cache/backing store).
type ContentRepository interface {
	GetContent(ctx context.Context, category domain.Category, lang domain.Language) (domain.ContentSet, error)
}

// SnapshotStore persists whole game aggregates between process runs.
type SnapshotStore interface {
	Load(ctx context.Context, gameID string) (domain.GameState, error)
	Save(ctx context.Context, state domain.GameState) error
	Delete(ctx context.Context, gameID string) error
}

// Session serializes access to one live game.
type Session struct {
	mu   sync.Mutex
	game *Game
}

// NewSession wraps game for use by a SessionRepository.
func NewSession(game *Game) *Session {
	return &Session{game: game}
}

// ID returns the game ID.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.game.state.ID
}

// GameService contains the game use cases. Every method resolves the game by
// ID, restoring it from the snapshot store when it is not live yet.
type GameService struct {
	sessions  SessionRepository
	content   ContentRepository
	snapshots SnapshotStore
	rules     Rules
	rnd       RandomSource
	log       *zap.Logger
	now       func() time.Time
	newID     func() string
	restoring singleflight.Group
}

// Option customizes a GameService.
type Option func(*GameService)

// WithLogger sets the service logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *GameService) { s.log = log }
}

// WithRandomSource replaces the time-seeded source used for content draws.
func WithRandomSource(rnd RandomSource) Option {
	return func(s *GameService) { s.rnd = rnd }
}

// WithClock is test-only for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *GameService) { s.now = now }
}

func NewGameService(sessions SessionRepository, content ContentRepository, snapshots SnapshotStore, rules Rules, opts ...Option) *GameService {
	s := &GameService{
		sessions:  sessions,
		content:   content,
		snapshots: snapshots,
		rules:     rules.normalized(),
		rnd:       NewRandomSource(),
		log:       zap.NewNop(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewGame creates a game with a fresh ID.
func (s *GameService) NewGame(ctx context.Context) (domain.GameState, error) {
	id := s.newID()
	session := s.sessions.GetOrCreate(id, func() *Session {
		return NewSession(NewGame(id, s.rules, s.rnd))
	})
	session.mu.Lock()
	defer session.mu.Unlock()
	session.game.stamp(s.now())
	state := session.game.State()
	s.persist(ctx, state)
	s.log.Info("game created", observability.GameID(id))
	return state, nil
}

// State returns the current aggregate of a game.
func (s *GameService) State(ctx context.Context, gameID string) (domain.GameState, error) {
	session := s.session(ctx, gameID)
	session.mu.Lock()
	defer session.mu.Unlock()
	return session.game.State(), nil
}

func (s *GameService) SetCategory(ctx context.Context, gameID string, category domain.Category) (domain.GameState, error) {
	return s.apply(ctx, gameID, "set_category", func(g *Game) error {
		return g.SetCategory(category)
	})
}

func (s *GameService) AddPlayer(ctx context.Context, gameID, name string) (domain.GameState, error) {
	return s.apply(ctx, gameID, "add_player", func(g *Game) error {
		return g.AddPlayer(name)
	})
}

func (s *GameService) RemovePlayer(ctx context.Context, gameID string, index int) (domain.GameState, error) {
	return s.apply(ctx, gameID, "remove_player", func(g *Game) error {
		return g.RemovePlayer(index)
	})
}

func (s *GameService) StartGame(ctx context.Context, gameID string) (domain.GameState, error) {
	return s.apply(ctx, gameID, "start_game", func(g *Game) error {
		return g.StartGame()
	})
}

// NextPlayer passes the turn; the returned state reports completion.
func (s *GameService) NextPlayer(ctx context.Context, gameID string) (domain.GameState, error) {
	state, err := s.apply(ctx, gameID, "next_player", func(g *Game) error {
		return g.NextPlayer()
	})
	if err == nil && state.Completed {
		fields := []zap.Field{observability.GameID(gameID)}
		if state.Winner != nil {
			fields = append(fields, zap.String("winner", state.Winner.Name), zap.Int("winner_points", state.Winner.Points))
		}
		s.log.Info("game completed", fields...)
	}
	return state, err
}

// GetChallenge draws a truth or dare for the current player.
func (s *GameService) GetChallenge(ctx context.Context, gameID string, kind domain.ChallengeKind) (string, domain.GameState, error) {
	var challenge string
	state, err := s.apply(ctx, gameID, "get_challenge", func(g *Game) error {
		if kind != domain.KindTruth && kind != domain.KindDare {
			return domain.ErrInvalidChallengeKind
		}
		content, err := s.contentFor(ctx, g.state)
		if err != nil {
			return err
		}
		challenge, err = g.DrawChallenge(kind, content)
		return err
	})
	return challenge, state, err
}

// GetPledge draws a pledge, typically after a failed challenge or for the
// loser once the game is over.
func (s *GameService) GetPledge(ctx context.Context, gameID string) (string, domain.GameState, error) {
	var pledge string
	state, err := s.apply(ctx, gameID, "get_pledge", func(g *Game) error {
		content, err := s.contentFor(ctx, g.state)
		if err != nil {
			return err
		}
		pledge, err = g.DrawPledge(content)
		return err
	})
	return pledge, state, err
}

func (s *GameService) CompleteChallenge(ctx context.Context, gameID string, success bool) (domain.GameState, error) {
	return s.apply(ctx, gameID, "complete_challenge", func(g *Game) error {
		return g.CompleteChallenge(success)
	})
}

// SetLanguage switches content language. Content history is cleared.
func (s *GameService) SetLanguage(ctx context.Context, gameID string, lang domain.Language) (domain.GameState, error) {
	return s.apply(ctx, gameID, "set_language", func(g *Game) error {
		return g.SetLanguage(lang)
	})
}

func (s *GameService) ResetGame(ctx context.Context, gameID string) (domain.GameState, error) {
	return s.apply(ctx, gameID, "reset_game", func(g *Game) error {
		g.Reset()
		return nil
	})
}

// Release saves the game and drops it from the live sessions. The next call
// for the same ID restores it from the snapshot store. If the save fails the
// game stays live so it is not lost.
func (s *GameService) Release(ctx context.Context, gameID string) error {
	session, ok := s.sessions.Get(gameID)
	if !ok {
		return nil
	}
	session.mu.Lock()
	err := s.persist(ctx, session.game.State())
	session.mu.Unlock()
	if err != nil {
		return fmt.Errorf("release %s: %w", gameID, err)
	}
	s.sessions.Delete(gameID)
	return nil
}

// Discard forgets a game: the live session and its snapshot are removed.
// A later call with the same ID starts a new game.
func (s *GameService) Discard(ctx context.Context, gameID string) error {
	s.sessions.Delete(gameID)
	if err := s.snapshots.Delete(ctx, gameID); err != nil {
		return fmt.Errorf("discard %s: %w", gameID, err)
	}
	s.log.Info("game discarded", observability.GameID(gameID))
	return nil
}

func (s *GameService) apply(ctx context.Context, gameID, action string, fn func(g *Game) error) (domain.GameState, error) {
	session := s.session(ctx, gameID)
	session.mu.Lock()
	defer session.mu.Unlock()

	if err := fn(session.game); err != nil {
		s.log.Debug("action rejected",
			observability.GameID(gameID),
			zap.String("action", action),
			zap.Error(err),
		)
		return session.game.State(), err
	}
	session.game.stamp(s.now())
	state := session.game.State()
	s.persist(ctx, state)
	s.log.Debug("action applied",
		observability.GameID(gameID),
		zap.String("action", action),
		zap.String("phase", string(state.Phase())),
		zap.Int("round", state.CurrentRound),
	)
	return state, nil
}

// session returns the live session for gameID. Snapshot loading runs outside
// the session repository lock, once per game ID.
func (s *GameService) session(ctx context.Context, gameID string) *Session {
	if session, ok := s.sessions.Get(gameID); ok {
		return session
	}
	v, _, _ := s.restoring.Do(gameID, func() (any, error) {
		if session, ok := s.sessions.Get(gameID); ok {
			return session, nil
		}
		game := s.restore(ctx, gameID)
		return s.sessions.GetOrCreate(gameID, func() *Session {
			return NewSession(game)
		}), nil
	})
	return v.(*Session)
}

// restore loads a saved game. Missing or unreadable snapshots start over.
func (s *GameService) restore(ctx context.Context, gameID string) *Game {
	state, err := s.snapshots.Load(ctx, gameID)
	switch {
	case err == nil:
		state.ID = gameID
		return RestoreGame(state, s.rules, s.rnd)
	case errors.Is(err, domain.ErrSnapshotNotFound):
	default:
		s.log.Warn("snapshot unavailable, starting a new game",
			observability.GameID(gameID),
			zap.Error(err),
		)
	}
	return NewGame(gameID, s.rules, s.rnd)
}

func (s *GameService) persist(ctx context.Context, state domain.GameState) error {
	if err := s.snapshots.Save(ctx, state); err != nil {
		s.log.Warn("snapshot save failed, game continues in memory",
			observability.GameID(state.ID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *GameService) contentFor(ctx context.Context, state domain.GameState) (domain.ContentSet, error) {
	if state.Category == "" {
		return domain.ContentSet{}, domain.ErrNoCategory
	}
	content, err := s.content.GetContent(ctx, state.Category, state.Language)
	if errors.Is(err, domain.ErrContentNotFound) {
		s.log.Warn("no content for category",
			zap.String("category", string(state.Category)),
			zap.String("language", string(state.Language)),
		)
		return domain.ContentSet{}, nil
	}
	if err != nil {
		return domain.ContentSet{}, fmt.Errorf("load content: %w", err)
	}
	return content, nil
}
