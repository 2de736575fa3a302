package domain

import (
	"sort"
	"time"
)

// Category selects which content pool a game draws from.
type Category string

const (
	CategorySoft  Category = "soft"
	CategoryParty Category = "party"
	CategoryHot   Category = "hot"
)

// Categories lists every playable category in menu order.
var Categories = []Category{CategorySoft, CategoryParty, CategoryHot}

// ParseCategory validates a raw category name.
func ParseCategory(raw string) (Category, error) {
	for _, c := range Categories {
		if string(c) == raw {
			return c, nil
		}
	}
	return "", ErrInvalidCategory
}

// ChallengeKind tags a dispensed content item.
type ChallengeKind string

const (
	KindTruth  ChallengeKind = "truth"
	KindDare   ChallengeKind = "dare"
	KindPledge ChallengeKind = "pledge"
)

// NoContentFallback is served when a content slice is empty.
const NoContentFallback = "No challenge available"

// Player is a roster entry. Identity is its position in GameState.Players.
type Player struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
}

// ContentSet is the read-only content for one (category, language) pair.
type ContentSet struct {
	Truths  []string `json:"truths" yaml:"truths"`
	Dares   []string `json:"dares" yaml:"dares"`
	Pledges []string `json:"pledges" yaml:"pledges"`
}

// For returns the slice backing the given kind.
func (c ContentSet) For(kind ChallengeKind) []string {
	switch kind {
	case KindTruth:
		return c.Truths
	case KindDare:
		return c.Dares
	case KindPledge:
		return c.Pledges
	}
	return nil
}

// ContentKey addresses one slice of the content library.
type ContentKey struct {
	Category Category
	Language Language
}

func (k ContentKey) String() string {
	return string(k.Category) + ":" + string(k.Language)
}

// UsedContent remembers what has already been served in the current game.
type UsedContent struct {
	Truths  []string `json:"truths"`
	Dares   []string `json:"dares"`
	Pledges []string `json:"pledges"`
}

// For returns the used list for kind.
func (u UsedContent) For(kind ChallengeKind) []string {
	switch kind {
	case KindTruth:
		return u.Truths
	case KindDare:
		return u.Dares
	case KindPledge:
		return u.Pledges
	}
	return nil
}

// Record appends item to the used list for kind.
func (u *UsedContent) Record(kind ChallengeKind, item string) {
	switch kind {
	case KindTruth:
		u.Truths = append(u.Truths, item)
	case KindDare:
		u.Dares = append(u.Dares, item)
	case KindPledge:
		u.Pledges = append(u.Pledges, item)
	}
}

// LastChallenge is the most recently dispensed item. An empty Kind means none.
type LastChallenge struct {
	Kind    ChallengeKind `json:"kind,omitempty"`
	Content string        `json:"content,omitempty"`
}

// Phase is the lifecycle stage derived from a GameState.
type Phase string

const (
	PhaseSelectingCategory Phase = "selecting_category"
	PhaseSettingUp         Phase = "setting_up"
	PhaseInProgress        Phase = "in_progress"
	PhaseCompleted         Phase = "completed"
)

// GameState is the full persisted aggregate of one game.
type GameState struct {
	ID                 string        `json:"id"`
	Players            []Player      `json:"players"`
	Category           Category      `json:"category,omitempty"`
	Language           Language      `json:"language"`
	CurrentPlayerIndex int           `json:"currentPlayerIndex"`
	CurrentRound       int           `json:"currentRound"`
	TotalRounds        int           `json:"totalRounds"`
	Used               UsedContent   `json:"usedChallenges"`
	Winner             *Player       `json:"winner,omitempty"`
	Loser              *Player       `json:"loser,omitempty"`
	LastChallenge      LastChallenge `json:"lastChallenge"`
	Started            bool          `json:"started"`
	Completed          bool          `json:"gameCompleted"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

// Phase derives the lifecycle stage.
func (s GameState) Phase() Phase {
	switch {
	case s.Category == "":
		return PhaseSelectingCategory
	case s.Completed:
		return PhaseCompleted
	case s.Started:
		return PhaseInProgress
	default:
		return PhaseSettingUp
	}
}

// CurrentPlayer returns the player whose turn it is.
func (s GameState) CurrentPlayer() (Player, bool) {
	if s.CurrentPlayerIndex < 0 || s.CurrentPlayerIndex >= len(s.Players) {
		return Player{}, false
	}
	return s.Players[s.CurrentPlayerIndex], true
}

// Standings returns the players ordered by points, highest first.
// Equal scores keep roster order.
func (s GameState) Standings() []Player {
	sorted := make([]Player, len(s.Players))
	copy(sorted, s.Players)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Points > sorted[j].Points
	})
	return sorted
}

// Clone returns a deep copy safe to hand outside the owning session.
func (s GameState) Clone() GameState {
	out := s
	out.Players = append([]Player(nil), s.Players...)
	out.Used = UsedContent{
		Truths:  append([]string(nil), s.Used.Truths...),
		Dares:   append([]string(nil), s.Used.Dares...),
		Pledges: append([]string(nil), s.Used.Pledges...),
	}
	if s.Winner != nil {
		w := *s.Winner
		out.Winner = &w
	}
	if s.Loser != nil {
		l := *s.Loser
		out.Loser = &l
	}
	return out
}
