package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"truth-or-dare-service/internal/app"
	"truth-or-dare-service/internal/config"
	"truth-or-dare-service/internal/domain"
	"truth-or-dare-service/internal/observability"
)

// NewPlayCmd runs a game in the terminal. Games are saved to the SQLite
// file after every step, so an interrupted game resumes where it stopped.
func NewPlayCmd(configPath *string) *cobra.Command {
	var (
		gameID  string
		newGame bool
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Facilitate a game from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			cfg.Snapshots.Backend = config.SnapshotBackendSQLite
			log, err := observability.NewLogger(observability.TerminalConfig(cfg.Logging, verbose))
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx := cmd.Context()
			service, backends, err := buildService(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer backends.Close()

			if gameID == "" && !newGame {
				latest, err := backends.sqlite.Latest(ctx)
				switch {
				case err == nil:
					gameID = latest
				case !errors.Is(err, domain.ErrSnapshotNotFound):
					log.Warn("cannot look up last game", zap.Error(err))
				}
			}
			return newTerminal(service, cmd.InOrStdin(), cmd.OutOrStdout()).run(ctx, gameID)
		},
	}
	cmd.Flags().StringVar(&gameID, "game", "", "resume the game with this ID")
	cmd.Flags().BoolVar(&newGame, "new", false, "start a new game instead of resuming the last one")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "log at the configured level instead of warn")
	return cmd
}

var (
	errQuit      = errors.New("quit")
	errDiscarded = errors.New("discarded")
)

// terminal walks a facilitator through one game: category, roster, turns,
// then the end screen.
type terminal struct {
	service *app.GameService
	in      *bufio.Scanner
	out     io.Writer
}

func newTerminal(service *app.GameService, in io.Reader, out io.Writer) *terminal {
	return &terminal{service: service, in: bufio.NewScanner(in), out: out}
}

// run plays gameID (or a new game when empty) until the input ends or the
// facilitator quits. The game is released, and therefore saved, on return.
func (t *terminal) run(ctx context.Context, gameID string) error {
	var (
		state domain.GameState
		err   error
	)
	if gameID == "" {
		state, err = t.service.NewGame(ctx)
	} else {
		state, err = t.service.State(ctx, gameID)
		t.printf("Resuming game %s\n", gameID)
	}
	if err != nil {
		return err
	}
	defer func() {
		if err := t.service.Release(context.WithoutCancel(ctx), state.ID); err != nil {
			t.printf("! could not save the game: %v\n", err)
		}
	}()

	for {
		switch state.Phase() {
		case domain.PhaseSelectingCategory:
			state, err = t.chooseCategory(ctx, state)
		case domain.PhaseSettingUp:
			state, err = t.setUp(ctx, state)
		case domain.PhaseInProgress:
			state, err = t.turn(ctx, state)
		case domain.PhaseCompleted:
			state, err = t.endScreen(ctx, state)
		}
		if errors.Is(err, errDiscarded) {
			t.printf("Game %s forgotten. Bye!\n", state.ID)
			return nil
		}
		if errors.Is(err, errQuit) || errors.Is(err, io.EOF) {
			t.printf("Game %s saved. Bye!\n", state.ID)
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (t *terminal) chooseCategory(ctx context.Context, state domain.GameState) (domain.GameState, error) {
	t.printf("\nPick a category (language: %s):\n", state.Language)
	for i, c := range domain.Categories {
		t.printf("  %d) %s\n", i+1, c)
	}
	line, err := t.prompt("category [1-3], lang <code>, q")
	if err != nil {
		return state, err
	}
	if next, handled, err := t.common(ctx, state, line); handled {
		return next, err
	}

	category := domain.Category(line)
	if n, convErr := strconv.Atoi(line); convErr == nil && n >= 1 && n <= len(domain.Categories) {
		category = domain.Categories[n-1]
	}
	return t.report(t.service.SetCategory(ctx, state.ID, category))
}

func (t *terminal) setUp(ctx context.Context, state domain.GameState) (domain.GameState, error) {
	t.printf("\nPlayers (%s):\n", state.Category)
	if len(state.Players) == 0 {
		t.printf("  nobody yet\n")
	}
	for i, p := range state.Players {
		t.printf("  %d) %s\n", i+1, p.Name)
	}
	line, err := t.prompt("name to add, -N to remove, start, q")
	if err != nil {
		return state, err
	}
	if next, handled, err := t.common(ctx, state, line); handled {
		return next, err
	}

	switch {
	case line == "":
		return state, nil
	case line == "start":
		return t.report(t.service.StartGame(ctx, state.ID))
	case strings.HasPrefix(line, "-"):
		n, convErr := strconv.Atoi(line[1:])
		if convErr != nil {
			t.printf("! not a player number: %s\n", line[1:])
			return state, nil
		}
		return t.report(t.service.RemovePlayer(ctx, state.ID, n-1))
	default:
		return t.report(t.service.AddPlayer(ctx, state.ID, line))
	}
}

func (t *terminal) turn(ctx context.Context, state domain.GameState) (domain.GameState, error) {
	current, _ := state.CurrentPlayer()
	t.printf("\nRound %d/%d: %s's turn (%d pts)\n", state.CurrentRound, state.TotalRounds, current.Name, current.Points)
	line, err := t.prompt("t)ruth, d)are, s)kip, scores, lang <code>, q")
	if err != nil {
		return state, err
	}
	if next, handled, err := t.common(ctx, state, line); handled {
		return next, err
	}

	var kind domain.ChallengeKind
	switch line {
	case "t", "truth":
		kind = domain.KindTruth
	case "d", "dare":
		kind = domain.KindDare
	case "s", "skip":
		return t.report(t.service.NextPlayer(ctx, state.ID))
	case "scores":
		t.printStandings(state)
		return state, nil
	default:
		t.printf("! unknown choice %q\n", line)
		return state, nil
	}

	challenge, state, err := t.service.GetChallenge(ctx, state.ID, kind)
	if err != nil {
		return t.report(state, err)
	}
	t.printf("\n  %s: %s\n", strings.ToUpper(string(kind)), challenge)

	done, err := t.confirm(fmt.Sprintf("did %s do it?", current.Name))
	if err != nil {
		return state, err
	}
	if state, err = t.service.CompleteChallenge(ctx, state.ID, done); err != nil {
		return t.report(state, err)
	}
	if !done {
		pledge, next, err := t.service.GetPledge(ctx, state.ID)
		if err != nil {
			return t.report(next, err)
		}
		state = next
		t.printf("  Pledge: %s\n", pledge)
	}
	return t.report(t.service.NextPlayer(ctx, state.ID))
}

func (t *terminal) endScreen(ctx context.Context, state domain.GameState) (domain.GameState, error) {
	t.printf("\nGame over!\n")
	t.printStandings(state)
	if state.Winner != nil {
		t.printf("Winner: %s with %d pts\n", state.Winner.Name, state.Winner.Points)
	}
	if state.Loser != nil {
		pledge, next, err := t.service.GetPledge(ctx, state.ID)
		if err != nil {
			return t.report(next, err)
		}
		state = next
		t.printf("%s takes the final pledge: %s\n", state.Loser.Name, pledge)
	}

	for {
		line, err := t.prompt("r)eplay with the same players, n)ew game, f)orget this game, q")
		if err != nil {
			return state, err
		}
		switch line {
		case "r", "replay":
			return t.report(t.service.StartGame(ctx, state.ID))
		case "n", "new":
			return t.report(t.service.ResetGame(ctx, state.ID))
		case "f", "forget":
			if err := t.service.Discard(ctx, state.ID); err != nil {
				return state, err
			}
			return state, errDiscarded
		case "q", "quit":
			return state, errQuit
		}
	}
}

// common handles the commands valid in every phase. handled reports whether
// line was one of them.
func (t *terminal) common(ctx context.Context, state domain.GameState, line string) (domain.GameState, bool, error) {
	switch {
	case line == "q" || line == "quit":
		return state, true, errQuit
	case strings.HasPrefix(line, "lang "):
		next, err := t.report(t.service.SetLanguage(ctx, state.ID, domain.Language(strings.TrimSpace(line[len("lang "):]))))
		return next, true, err
	}
	return state, false, nil
}

// report prints validation errors and keeps playing; other errors abort.
func (t *terminal) report(state domain.GameState, err error) (domain.GameState, error) {
	if err == nil {
		return state, nil
	}
	if isUserError(err) {
		t.printf("! %v\n", err)
		return state, nil
	}
	return state, err
}

func isUserError(err error) bool {
	for _, target := range []error{
		domain.ErrRosterFull,
		domain.ErrNotEnoughPlayers,
		domain.ErrPlayerNotFound,
		domain.ErrGameInProgress,
		domain.ErrGameNotInProgress,
		domain.ErrInvalidCategory,
		domain.ErrCategoryAlreadySet,
		domain.ErrNoCategory,
		domain.ErrInvalidChallengeKind,
		domain.ErrUnsupportedLanguage,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (t *terminal) printStandings(state domain.GameState) {
	for i, p := range state.Standings() {
		t.printf("  %d. %-20s %d\n", i+1, p.Name, p.Points)
	}
}

func (t *terminal) confirm(question string) (bool, error) {
	for {
		line, err := t.prompt(question + " [y/n]")
		if err != nil {
			return false, err
		}
		switch strings.ToLower(line) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
	}
}

func (t *terminal) prompt(label string) (string, error) {
	t.printf("%s> ", label)
	if !t.in.Scan() {
		if err := t.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(t.in.Text()), nil
}

func (t *terminal) printf(format string, args ...any) {
	fmt.Fprintf(t.out, format, args...)
}
