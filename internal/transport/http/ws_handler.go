package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"truth-or-dare-service/internal/app"
	"truth-or-dare-service/internal/domain"
	"truth-or-dare-service/internal/observability"
)

const writeWait = 10 * time.Second

// WSHandler exposes a game over a websocket so a presentation screen (or the
// facilitator's phone) can drive it.
type WSHandler struct {
	service  *app.GameService
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[string]int
}

func NewWSHandler(service *app.GameService, log *zap.Logger) *WSHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns: make(map[string]int),
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type categoryPayload struct {
	Category string `json:"category"`
}

type addPlayerPayload struct {
	Name string `json:"name"`
}

type removePlayerPayload struct {
	Index int `json:"index"`
}

type challengeRequest struct {
	Kind string `json:"kind"`
}

type completePayload struct {
	Success bool `json:"success"`
}

type languagePayload struct {
	Language string `json:"language"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type challengePayload struct {
	Kind    domain.ChallengeKind `json:"kind"`
	Content string               `json:"content"`
}

type errorPayload struct {
	Message string `json:"message"`
}

var errBadPayload = errors.New("invalid payload")

// ServeWS upgrades the request and serves one game. Without a gameId query
// parameter a new game is created.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	gameID := r.URL.Query().Get("gameId")
	var state domain.GameState
	if gameID == "" {
		state, err = h.service.NewGame(ctx)
		gameID = state.ID
	} else {
		state, err = h.service.State(ctx, gameID)
	}
	if err != nil {
		h.write(conn, errorMessage(err))
		return
	}

	log := observability.ForGame(h.log, "ws", gameID)
	h.attach(gameID)
	defer h.detach(gameID, log)
	log.Info("ws connected", zap.String("remote", r.RemoteAddr))

	if err := h.write(conn, outboundMessage[any]{Type: "state", Payload: state}); err != nil {
		return
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("ws read error", zap.Error(err))
			}
			break
		}
		replies, err := h.dispatch(ctx, gameID, inbound)
		if err != nil {
			replies = []outboundMessage[any]{errorMessage(err)}
		}
		for _, reply := range replies {
			if err := h.write(conn, reply); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) dispatch(ctx context.Context, gameID string, in inboundMessage) ([]outboundMessage[any], error) {
	var (
		state domain.GameState
		err   error
	)
	switch in.Type {
	case "state":
		state, err = h.service.State(ctx, gameID)
	case "setCategory":
		var p categoryPayload
		if err := decode(in.Payload, &p); err != nil {
			return nil, err
		}
		category, err := domain.ParseCategory(p.Category)
		if err != nil {
			return nil, err
		}
		state, err = h.service.SetCategory(ctx, gameID, category)
		if err != nil {
			return nil, err
		}
	case "addPlayer":
		var p addPlayerPayload
		if err := decode(in.Payload, &p); err != nil {
			return nil, err
		}
		state, err = h.service.AddPlayer(ctx, gameID, p.Name)
	case "removePlayer":
		var p removePlayerPayload
		if err := decode(in.Payload, &p); err != nil {
			return nil, err
		}
		state, err = h.service.RemovePlayer(ctx, gameID, p.Index)
	case "startGame":
		state, err = h.service.StartGame(ctx, gameID)
	case "nextPlayer":
		state, err = h.service.NextPlayer(ctx, gameID)
	case "getChallenge":
		var p challengeRequest
		if err := decode(in.Payload, &p); err != nil {
			return nil, err
		}
		kind := domain.ChallengeKind(p.Kind)
		content, state, err := h.service.GetChallenge(ctx, gameID, kind)
		if err != nil {
			return nil, err
		}
		return challengeReplies(kind, content, state), nil
	case "getPledge":
		content, state, err := h.service.GetPledge(ctx, gameID)
		if err != nil {
			return nil, err
		}
		return challengeReplies(domain.KindPledge, content, state), nil
	case "completeChallenge":
		var p completePayload
		if err := decode(in.Payload, &p); err != nil {
			return nil, err
		}
		state, err = h.service.CompleteChallenge(ctx, gameID, p.Success)
	case "setLanguage":
		var p languagePayload
		if err := decode(in.Payload, &p); err != nil {
			return nil, err
		}
		state, err = h.service.SetLanguage(ctx, gameID, domain.Language(p.Language))
	case "resetGame":
		state, err = h.service.ResetGame(ctx, gameID)
	case "discardGame":
		if err := h.service.Discard(ctx, gameID); err != nil {
			return nil, err
		}
		state, err = h.service.State(ctx, gameID)
	default:
		return nil, errors.New("unsupported message type")
	}
	if err != nil {
		return nil, err
	}
	return []outboundMessage[any]{{Type: "state", Payload: state}}, nil
}

func challengeReplies(kind domain.ChallengeKind, content string, state domain.GameState) []outboundMessage[any] {
	return []outboundMessage[any]{
		{Type: "challenge", Payload: challengePayload{Kind: kind, Content: content}},
		{Type: "state", Payload: state},
	}
}

// decode accepts an absent payload as the zero value.
func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errBadPayload
	}
	return nil
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
}

func (h *WSHandler) write(conn *websocket.Conn, msg outboundMessage[any]) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		h.log.Warn("ws write error", zap.String("type", msg.Type), zap.Error(err))
		return err
	}
	return nil
}

func (h *WSHandler) attach(gameID string) {
	h.mu.Lock()
	h.conns[gameID]++
	h.mu.Unlock()
}

// detach releases the live game once its last connection is gone.
func (h *WSHandler) detach(gameID string, log *zap.Logger) {
	h.mu.Lock()
	h.conns[gameID]--
	last := h.conns[gameID] <= 0
	if last {
		delete(h.conns, gameID)
	}
	h.mu.Unlock()

	if !last {
		return
	}
	if err := h.service.Release(context.Background(), gameID); err != nil {
		log.Warn("ws kept game live", zap.Error(err))
		return
	}
	log.Info("ws released game")
}
