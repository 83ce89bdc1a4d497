// Package httpapi is the polling transport: a fasthttp server exposing
// room operations and redacted snapshots. Clients that cannot hold a
// websocket poll GET /rooms/{code} and, when entitled, the card
// endpoint.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/vcporto/sketchdash/internal/game"
	"github.com/vcporto/sketchdash/internal/msgcat"
)

const requestBudget = 10 * time.Second

type Server struct {
	mgr    *game.Manager
	cat    *msgcat.Catalog
	logger *zap.Logger
	srv    *fasthttp.Server
}

func NewServer(mgr *game.Manager, cat *msgcat.Catalog, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{mgr: mgr, cat: cat, logger: logger}
	s.srv = &fasthttp.Server{
		Handler:            s.route,
		Name:               "sketchdash",
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       15 * time.Second,
		MaxRequestBodySize: 64 << 10,
	}
	return s
}

func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("http_listen", zap.String("addr", addr))
	return s.srv.ListenAndServe(addr)
}

func (s *Server) Shutdown() error { return s.srv.Shutdown() }

// Handler exposes the request handler for tests.
func (s *Server) Handler() fasthttp.RequestHandler { return s.route }

func (s *Server) route(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.Set("Access-Control-Allow-Origin", "*")
	ctx.Response.Header.Set("Access-Control-Allow-Headers", "Content-Type")
	ctx.Response.Header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	if ctx.IsOptions() {
		ctx.SetStatusCode(fasthttp.StatusNoContent)
		return
	}

	path := string(ctx.Path())
	if path == "/healthz" {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
		return
	}

	parts := splitPath(path)
	if len(parts) == 0 || parts[0] != "rooms" {
		s.writeError(ctx, fasthttp.StatusNotFound, "not found")
		return
	}

	rctx, cancel := context.WithTimeout(context.Background(), requestBudget)
	defer cancel()

	switch {
	case len(parts) == 1 && ctx.IsPost():
		s.handleCreate(rctx, ctx)
	case len(parts) == 2 && ctx.IsGet():
		s.handleSnapshot(rctx, ctx, parts[1])
	case len(parts) == 3 && parts[2] == "card" && ctx.IsGet():
		s.handleCard(rctx, ctx, parts[1])
	case len(parts) == 3 && ctx.IsPost():
		s.handleAction(rctx, ctx, parts[1], parts[2])
	default:
		s.writeError(ctx, fasthttp.StatusNotFound, "not found")
	}
}

type createRequest struct {
	HostName string `json:"host_name"`
	NumTeams int    `json:"num_teams"`
}

type joinRequest struct {
	Name   string `json:"name"`
	TeamID string `json:"team_id"`
}

type actionRequest struct {
	PlayerID        string `json:"player_id"`
	DurationSeconds int    `json:"duration_seconds"`
}

func (s *Server) handleCreate(rctx context.Context, ctx *fasthttp.RequestCtx) {
	var req createRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		s.writeError(ctx, fasthttp.StatusBadRequest, "invalid json body")
		return
	}
	room, host, err := s.mgr.CreateRoom(rctx, req.HostName, req.NumTeams)
	if err != nil {
		s.writeGameError(ctx, err)
		return
	}
	s.writeJSON(ctx, fasthttp.StatusCreated, map[string]any{
		"player_id": host.ID,
		"room":      game.PublicView(room),
	})
}

func (s *Server) handleSnapshot(rctx context.Context, ctx *fasthttp.RequestCtx, code string) {
	room, err := s.mgr.Room(rctx, normalizeCode(code))
	if err != nil {
		s.writeGameError(ctx, err)
		return
	}
	s.writeJSON(ctx, fasthttp.StatusOK, game.PublicView(room))
}

// handleCard serves the full card only to entitled players. Everyone
// else gets 403 and never sees the text.
func (s *Server) handleCard(rctx context.Context, ctx *fasthttp.RequestCtx, code string) {
	playerID := string(ctx.QueryArgs().Peek("player_id"))
	room, err := s.mgr.Room(rctx, normalizeCode(code))
	if err != nil {
		s.writeGameError(ctx, err)
		return
	}
	if !game.MaySeeCard(room, playerID) {
		s.writeError(ctx, fasthttp.StatusForbidden, "card not visible to this player")
		return
	}
	s.writeJSON(ctx, fasthttp.StatusOK, game.CardPayload(room))
}

func (s *Server) handleAction(rctx context.Context, ctx *fasthttp.RequestCtx, code, action string) {
	code = normalizeCode(code)

	if action == "join" {
		var req joinRequest
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			s.writeError(ctx, fasthttp.StatusBadRequest, "invalid json body")
			return
		}
		room, p, err := s.mgr.JoinRoom(rctx, code, req.Name, req.TeamID)
		if err != nil {
			s.writeGameError(ctx, err)
			return
		}
		s.writeJSON(ctx, fasthttp.StatusOK, map[string]any{
			"player_id": p.ID,
			"room":      game.PublicView(room),
		})
		return
	}

	var req actionRequest
	if len(ctx.PostBody()) > 0 {
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			s.writeError(ctx, fasthttp.StatusBadRequest, "invalid json body")
			return
		}
	}

	var (
		room *game.Room
		err  error
	)
	switch action {
	case "start":
		room, err = s.mgr.StartRound(rctx, code, req.PlayerID, time.Duration(req.DurationSeconds)*time.Second)
	case "correct":
		room, _, err = s.mgr.MarkCorrect(rctx, code, req.PlayerID)
	case "skip":
		room, _, err = s.mgr.MarkSkip(rctx, code, req.PlayerID)
	case "end":
		room, _, err = s.mgr.EndRound(rctx, code, req.PlayerID)
	case "reset":
		room, err = s.mgr.ResetGame(rctx, code, req.PlayerID)
	case "leave":
		room, err = s.mgr.Leave(rctx, code, req.PlayerID)
		if err == nil && room == nil {
			s.writeJSON(ctx, fasthttp.StatusOK, map[string]any{"closed": true})
			return
		}
	default:
		s.writeError(ctx, fasthttp.StatusNotFound, "unknown action")
		return
	}
	if err != nil {
		s.writeGameError(ctx, err)
		return
	}
	s.writeJSON(ctx, fasthttp.StatusOK, game.PublicView(room))
}

func (s *Server) writeJSON(ctx *fasthttp.RequestCtx, status int, body any) {
	raw, err := json.Marshal(body)
	if err != nil {
		s.writeError(ctx, fasthttp.StatusInternalServerError, "encode failure")
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(raw)
}

// writeGameError maps sentinel errors to statuses and localized toasts.
func (s *Server) writeGameError(ctx *fasthttp.RequestCtx, err error) {
	status := fasthttp.StatusInternalServerError
	key := ""
	switch {
	case errors.Is(err, game.ErrRoomNotFound):
		status, key = fasthttp.StatusNotFound, "room.not_found"
	case errors.Is(err, game.ErrForbidden):
		status, key = fasthttp.StatusForbidden, "error.forbidden"
	case errors.Is(err, game.ErrNotEnoughPlayers):
		status, key = fasthttp.StatusConflict, "error.not_enough_players"
	case errors.Is(err, game.ErrRoundInProgress):
		status, key = fasthttp.StatusConflict, "error.round_in_progress"
	case errors.Is(err, game.ErrGameFinished):
		status, key = fasthttp.StatusConflict, "error.game_finished"
	case errors.Is(err, game.ErrPlayerUnknown):
		status, key = fasthttp.StatusForbidden, "error.unknown_player"
	default:
		s.logger.Error("http_internal_error", zap.Error(err))
	}

	msg := err.Error()
	if key != "" && s.cat != nil {
		if rendered, rerr := s.cat.Render(key, nil); rerr == nil {
			msg = rendered
		}
	}
	s.writeError(ctx, status, msg)
}

func (s *Server) writeError(ctx *fasthttp.RequestCtx, status int, msg string) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	raw, _ := json.Marshal(map[string]string{"error": msg})
	ctx.SetBody(raw)
}

func splitPath(p string) []string {
	var parts []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			parts = append(parts, seg)
		}
	}
	return parts
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
