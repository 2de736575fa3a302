package app

import (
	"strings"
	"time"
	"unicode/utf8"

	"truth-or-dare-service/internal/domain"
)

const (
	DefaultTotalRounds = 20
	DefaultMaxPlayers  = 10
	// MaxNameLength bounds player names, counted in runes after trimming.
	MaxNameLength = 20
	// MinPlayers is the roster size required to start a game.
	MinPlayers = 2
)

// Rules holds the per-deployment game settings.
type Rules struct {
	TotalRounds int
	MaxPlayers  int
	Language    domain.Language
}

// DefaultRules returns the stock settings: 20 rounds, 10 players, English.
func DefaultRules() Rules {
	return Rules{
		TotalRounds: DefaultTotalRounds,
		MaxPlayers:  DefaultMaxPlayers,
		Language:    domain.DefaultLanguage,
	}
}

func (r Rules) normalized() Rules {
	if r.TotalRounds < 1 {
		r.TotalRounds = DefaultTotalRounds
	}
	if r.MaxPlayers < MinPlayers {
		r.MaxPlayers = DefaultMaxPlayers
	}
	if r.Language == "" {
		r.Language = domain.DefaultLanguage
	}
	return r
}

// Game is the state engine for a single game. It owns its GameState and
// applies every transition synchronously; callers serialize access.
type Game struct {
	state domain.GameState
	rules Rules
	rnd   RandomSource
}

// NewGame returns a game in the category selection phase.
func NewGame(id string, rules Rules, rnd RandomSource) *Game {
	rules = rules.normalized()
	g := &Game{rules: rules, rnd: rnd}
	g.state = freshState(id, rules.Language, rules.TotalRounds)
	return g
}

// RestoreGame resumes a game from a persisted snapshot.
func RestoreGame(state domain.GameState, rules Rules, rnd RandomSource) *Game {
	rules = rules.normalized()
	state = state.Clone()
	if state.TotalRounds < 1 {
		state.TotalRounds = rules.TotalRounds
	}
	if state.CurrentRound < 1 {
		state.CurrentRound = 1
	}
	if state.Language == "" {
		state.Language = rules.Language
	}
	if state.CurrentPlayerIndex < 0 || state.CurrentPlayerIndex >= len(state.Players) {
		state.CurrentPlayerIndex = 0
	}
	return &Game{state: state, rules: rules, rnd: rnd}
}

func freshState(id string, lang domain.Language, totalRounds int) domain.GameState {
	return domain.GameState{
		ID:           id,
		Players:      []domain.Player{},
		Language:     lang,
		CurrentRound: 1,
		TotalRounds:  totalRounds,
	}
}

// State returns a copy of the current aggregate.
func (g *Game) State() domain.GameState {
	return g.state.Clone()
}

// SetCategory picks the content category. Only valid before a category is chosen.
func (g *Game) SetCategory(category domain.Category) error {
	if _, err := domain.ParseCategory(string(category)); err != nil {
		return err
	}
	if g.state.Category != "" {
		return domain.ErrCategoryAlreadySet
	}
	g.state.Category = category
	return nil
}

// AddPlayer appends a player with zero points. Blank names are ignored.
func (g *Game) AddPlayer(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	if g.state.Started {
		return domain.ErrGameInProgress
	}
	if len(g.state.Players) >= g.rules.MaxPlayers {
		return domain.ErrRosterFull
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		name = strings.TrimSpace(string([]rune(name)[:MaxNameLength]))
	}
	g.state.Players = append(g.state.Players, domain.Player{Name: name})
	return nil
}

// RemovePlayer drops the player at index. Roster edits stop once the game starts.
func (g *Game) RemovePlayer(index int) error {
	if g.state.Started {
		return domain.ErrGameInProgress
	}
	if index < 0 || index >= len(g.state.Players) {
		return domain.ErrPlayerNotFound
	}
	g.state.Players = append(g.state.Players[:index], g.state.Players[index+1:]...)
	return nil
}

// StartGame begins round 1 with the first player. Points carry over.
func (g *Game) StartGame() error {
	if g.state.Category == "" {
		return domain.ErrNoCategory
	}
	if len(g.state.Players) < MinPlayers {
		return domain.ErrNotEnoughPlayers
	}
	g.state.CurrentPlayerIndex = 0
	g.state.CurrentRound = 1
	g.state.Used = domain.UsedContent{}
	g.state.Winner = nil
	g.state.Loser = nil
	g.state.Completed = false
	g.state.Started = true
	return nil
}

// NextPlayer passes the turn. Wrapping back to the first player closes a
// round; closing the last round completes the game and decides the outcome.
func (g *Game) NextPlayer() error {
	if g.state.Phase() != domain.PhaseInProgress {
		return domain.ErrGameNotInProgress
	}
	n := len(g.state.Players)
	if n == 0 {
		return domain.ErrNotEnoughPlayers
	}

	next := (g.state.CurrentPlayerIndex + 1) % n
	round := g.state.CurrentRound
	if next == 0 {
		round++
	}
	g.state.CurrentPlayerIndex = next
	g.state.CurrentRound = round

	if round > g.state.TotalRounds {
		g.state.Completed = true
		g.decideOutcome()
	}
	return nil
}

func (g *Game) decideOutcome() {
	standings := g.state.Standings()
	if len(standings) == 0 {
		return
	}
	winner := standings[0]
	loser := standings[len(standings)-1]
	g.state.Winner = &winner
	g.state.Loser = &loser
}

// DrawChallenge serves a truth or dare from content, avoiding repeats until
// every candidate has been served once.
func (g *Game) DrawChallenge(kind domain.ChallengeKind, content domain.ContentSet) (string, error) {
	if kind != domain.KindTruth && kind != domain.KindDare {
		return "", domain.ErrInvalidChallengeKind
	}
	return g.draw(kind, content)
}

// DrawPledge serves a pledge using the same no-repeat pool as DrawChallenge.
func (g *Game) DrawPledge(content domain.ContentSet) (string, error) {
	return g.draw(domain.KindPledge, content)
}

func (g *Game) draw(kind domain.ChallengeKind, content domain.ContentSet) (string, error) {
	if g.state.Category == "" {
		return "", domain.ErrNoCategory
	}
	candidates := content.For(kind)
	if len(candidates) == 0 {
		return domain.NoContentFallback, nil
	}

	used := make(map[string]struct{})
	for _, item := range g.state.Used.For(kind) {
		used[item] = struct{}{}
	}
	available := make([]string, 0, len(candidates))
	for _, item := range candidates {
		if _, ok := used[item]; !ok {
			available = append(available, item)
		}
	}

	// Exhausted pools repeat at random; the used list is left as is until
	// StartGame or SetLanguage clears it.
	if len(available) == 0 {
		return candidates[g.rnd.Intn(len(candidates))], nil
	}

	pick := available[g.rnd.Intn(len(available))]
	g.state.Used.Record(kind, pick)
	g.state.LastChallenge = domain.LastChallenge{Kind: kind, Content: pick}
	return pick, nil
}

// CompleteChallenge scores the current player's attempt. On failure the
// caller is expected to draw a pledge before calling NextPlayer.
func (g *Game) CompleteChallenge(success bool) error {
	if g.state.Phase() != domain.PhaseInProgress {
		return domain.ErrGameNotInProgress
	}
	idx := g.state.CurrentPlayerIndex
	if idx < 0 || idx >= len(g.state.Players) {
		return domain.ErrPlayerNotFound
	}
	if success {
		g.state.Players[idx].Points++
	}
	return nil
}

// SetLanguage switches the content language and forgets everything served so
// far. Scores and turn order are kept.
func (g *Game) SetLanguage(lang domain.Language) error {
	parsed, err := domain.ParseLanguage(string(lang))
	if err != nil {
		return err
	}
	g.state.Language = parsed
	g.state.Used = domain.UsedContent{}
	g.state.LastChallenge = domain.LastChallenge{}
	return nil
}

// Reset returns the game to category selection. Language is kept.
func (g *Game) Reset() {
	g.state = freshState(g.state.ID, g.state.Language, g.rules.TotalRounds)
}

func (g *Game) stamp(now time.Time) {
	g.state.UpdatedAt = now
}
