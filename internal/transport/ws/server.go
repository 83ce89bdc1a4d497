package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/vcporto/sketchdash/internal/game"
	"github.com/vcporto/sketchdash/internal/msgcat"
)

const opBudget = 10 * time.Second

type Server struct {
	mgr     *game.Manager
	cat     *msgcat.Catalog
	logger  *zap.Logger
	origins []string
	hub     *hub

	httpSrv *http.Server
}

func NewServer(mgr *game.Manager, cat *msgcat.Catalog, origins []string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		mgr:     mgr,
		cat:     cat,
		logger:  logger,
		origins: origins,
		hub:     newHub(),
	}
}

func (s *Server) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  0, // websocket connections are long-lived
		WriteTimeout: 0,
	}
	s.logger.Info("ws_listen", zap.String("addr", addr))
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{}
	if len(s.origins) > 0 {
		opts.OriginPatterns = s.origins
	} else {
		opts.InsecureSkipVerify = true
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		s.logger.Debug("ws_accept_error", zap.Error(err))
		return
	}

	c := &client{
		conn:   conn,
		send:   make(chan Envelope, sendBuffer),
		closed: make(chan struct{}),
	}
	go c.writeLoop(s.logger)
	s.readLoop(r.Context(), c)
}

// readLoop drives one connection until it drops, then detaches the
// player from the room.
func (s *Server) readLoop(ctx context.Context, c *client) {
	defer func() {
		c.shutdown()
		code, playerID := c.binding()
		if code != "" {
			s.hub.leave(code, c)
			if playerID != "" {
				lctx, cancel := context.WithTimeout(context.Background(), opBudget)
				if _, err := s.mgr.Leave(lctx, code, playerID); err != nil {
					s.logger.Error("ws_leave_error", zap.String("code", code), zap.Error(err))
				}
				cancel()
			}
		}
		_ = c.conn.Close(websocket.StatusNormalClosure, "bye")
	}()

	for {
		var ev Envelope
		if err := wsjson.Read(ctx, c.conn, &ev); err != nil {
			return
		}
		s.dispatch(c, ev)
	}
}

type createPayload struct {
	Name     string `json:"name"`
	NumTeams int    `json:"num_teams"`
}

type joinPayload struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	TeamID string `json:"team_id"`
}

type rejoinPayload struct {
	Code     string `json:"code"`
	PlayerID string `json:"player_id"`
}

type startPayload struct {
	DurationSeconds int `json:"duration_seconds"`
}

func (s *Server) dispatch(c *client, ev Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), opBudget)
	defer cancel()

	switch ev.Type {
	case "room:create":
		var p createPayload
		if !s.decode(c, ev.Data, &p) {
			return
		}
		room, host, err := s.mgr.CreateRoom(ctx, p.Name, p.NumTeams)
		if err != nil {
			s.toast(c, err)
			return
		}
		c.bind(room.Code, host.ID)
		s.hub.join(room.Code, c)
		s.welcome(c, host.ID, room)

	case "room:join":
		var p joinPayload
		if !s.decode(c, ev.Data, &p) {
			return
		}
		room, joined, err := s.mgr.JoinRoom(ctx, normalize(p.Code), p.Name, p.TeamID)
		if err != nil {
			s.toast(c, err)
			return
		}
		c.bind(room.Code, joined.ID)
		s.hub.join(room.Code, c)
		s.welcome(c, joined.ID, room)
		// JoinRoom already fanned out room:update and, for an all-play
		// round, the card to this player id; the hub join above happened
		// after, so resend directly.
		if game.MaySeeCard(room, joined.ID) {
			if card, err := envelope("round:card", game.CardPayload(room)); err == nil {
				c.enqueue(card)
			}
		}

	case "room:rejoin":
		var p rejoinPayload
		if !s.decode(c, ev.Data, &p) {
			return
		}
		room, err := s.mgr.Rejoin(ctx, normalize(p.Code), p.PlayerID)
		if err != nil {
			s.toast(c, err)
			return
		}
		c.bind(room.Code, p.PlayerID)
		s.hub.join(room.Code, c)
		s.welcome(c, p.PlayerID, room)
		if game.MaySeeCard(room, p.PlayerID) {
			if card, err := envelope("round:card", game.CardPayload(room)); err == nil {
				c.enqueue(card)
			}
		}

	case "round:start":
		var p startPayload
		if len(ev.Data) > 0 && !s.decode(c, ev.Data, &p) {
			return
		}
		code, playerID := c.binding()
		if _, err := s.mgr.StartRound(ctx, code, playerID, time.Duration(p.DurationSeconds)*time.Second); err != nil {
			s.toast(c, err)
		}

	case "round:correct":
		code, playerID := c.binding()
		if _, _, err := s.mgr.MarkCorrect(ctx, code, playerID); err != nil {
			s.toast(c, err)
		}

	case "round:skip":
		code, playerID := c.binding()
		if _, _, err := s.mgr.MarkSkip(ctx, code, playerID); err != nil {
			s.toast(c, err)
		}

	case "round:end":
		code, playerID := c.binding()
		if _, _, err := s.mgr.EndRound(ctx, code, playerID); err != nil {
			s.toast(c, err)
		}

	case "game:reset":
		code, playerID := c.binding()
		if _, err := s.mgr.ResetGame(ctx, code, playerID); err != nil {
			s.toast(c, err)
		}

	default:
		s.toastText(c, "unknown event: "+ev.Type)
	}
}

// welcome confirms the binding to one client with its identity and the
// current snapshot.
func (s *Server) welcome(c *client, playerID string, room *game.Room) {
	ev, err := envelope("room:joined", map[string]any{
		"player_id": playerID,
		"room":      game.PublicView(room),
	})
	if err != nil {
		return
	}
	c.enqueue(ev)
}

func (s *Server) decode(c *client, raw json.RawMessage, out any) bool {
	if err := json.Unmarshal(raw, out); err != nil {
		s.toastText(c, "invalid payload")
		return false
	}
	return true
}

// toast translates sentinel errors into localized messages for one
// client.
func (s *Server) toast(c *client, err error) {
	key := ""
	switch {
	case errors.Is(err, game.ErrRoomNotFound):
		key = "room.not_found"
	case errors.Is(err, game.ErrForbidden):
		key = "error.forbidden"
	case errors.Is(err, game.ErrNotEnoughPlayers):
		key = "error.not_enough_players"
	case errors.Is(err, game.ErrRoundInProgress):
		key = "error.round_in_progress"
	case errors.Is(err, game.ErrGameFinished):
		key = "error.game_finished"
	case errors.Is(err, game.ErrPlayerUnknown):
		key = "error.unknown_player"
	default:
		s.logger.Error("ws_internal_error", zap.Error(err))
	}

	msg := err.Error()
	if key != "" && s.cat != nil {
		if rendered, rerr := s.cat.Render(key, nil); rerr == nil {
			msg = rendered
		}
	}
	s.toastText(c, msg)
}

func (s *Server) toastText(c *client, msg string) {
	ev, err := envelope("error:toast", map[string]string{"message": msg})
	if err != nil {
		return
	}
	c.enqueue(ev)
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
