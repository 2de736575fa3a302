package domain

import "errors"

var (
	// ErrRosterFull is returned when adding a player beyond the configured maximum.
	ErrRosterFull = errors.New("roster is full")
	// ErrNotEnoughPlayers is returned when a game needs more players to start or advance.
	ErrNotEnoughPlayers = errors.New("at least two players are required")
	// ErrPlayerNotFound indicates a roster index outside the current roster.
	ErrPlayerNotFound = errors.New("player not found")
	// ErrGameInProgress is returned for roster edits once a game has started.
	ErrGameInProgress = errors.New("game already started")
	// ErrGameNotInProgress is returned for turn actions outside a running game.
	ErrGameNotInProgress = errors.New("game is not in progress")
	ErrInvalidCategory   = errors.New("invalid category")
	// ErrCategoryAlreadySet is returned when a category is picked twice without a reset.
	ErrCategoryAlreadySet = errors.New("category already selected")
	// ErrNoCategory is returned when content is requested before a category is chosen.
	ErrNoCategory           = errors.New("no category selected")
	ErrInvalidChallengeKind = errors.New("challenge kind must be truth or dare")
	ErrUnsupportedLanguage  = errors.New("unsupported language")
	// ErrContentNotFound indicates the library has no entry for a category and language.
	ErrContentNotFound = errors.New("content not found")
	// ErrSnapshotNotFound is returned by snapshot stores when no game was saved under an ID.
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrCorruptSnapshot wraps decode failures of a stored snapshot.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")
)
