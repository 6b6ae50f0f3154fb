package web

import (
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jaminalder/codex-connect4/internal/app"
	"github.com/jaminalder/codex-connect4/internal/domain"
	"go.uber.org/zap"
)

type handlers struct {
	svc       *app.Service
	tpl       *templates
	log       *zap.Logger
	heartbeat time.Duration
}

func (h *handlers) renderBoard(gs app.GameState, errMsg string) []byte {
	return renderTemplate(h.tpl.board, "", newBoardView(gs.ID, gs.Game, errMsg))
}

// errorMessage turns a command error into text for the board fragment.
func errorMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, app.ErrNotYourTurn):
		return "Not your turn"
	case errors.Is(err, app.ErrNotAPlayer):
		return "You are a spectator"
	case errors.Is(err, domain.ErrColumnFull):
		return "Column is full"
	case errors.Is(err, domain.ErrColumnOutOfRange):
		return "Out of bounds"
	case errors.Is(err, domain.ErrGameOver):
		return "Game is over"
	case errors.Is(err, domain.ErrOutOfRange):
		return "No such move"
	case errors.Is(err, errUnknownAction):
		return "Unknown action"
	default:
		return "Invalid move"
	}
}

func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(renderTemplate(h.tpl.index, "", nil))
}

func (h *handlers) create(w http.ResponseWriter, r *http.Request) {
	gs, err := h.svc.CreateGame()
	if err != nil {
		h.log.Error("create game", zap.Error(err))
		http.Error(w, "failed to create", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/game/"+gs.ID, http.StatusSeeOther)
}

func (h *handlers) view(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	// ensure cookie and auto-claim seat
	pid := ensurePlayerCookie(w, r)
	_, _, _ = h.svc.Join(id, pid)

	gs, ok := h.svc.Get(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	data := struct {
		ID        string
		BoardHTML template.HTML
	}{ID: gs.ID, BoardHTML: template.HTML(h.renderBoard(*gs, ""))}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(renderTemplate(h.tpl.game, "", data))
}

func (h *handlers) join(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pid := ensurePlayerCookie(w, r)
	_, gs, err := h.svc.Join(id, pid)
	if err != nil || gs == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(h.renderBoard(*gs, ""))
}

// formInt reads an integer form field; ok is false when it is missing or malformed.
func formInt(r *http.Request, key string) (int, bool) {
	_ = r.ParseForm()
	v, err := strconv.Atoi(strings.TrimSpace(r.Form.Get(key)))
	return v, err == nil
}

func (h *handlers) play(w http.ResponseWriter, r *http.Request) {
	column, ok := formInt(r, "column")
	if !ok {
		http.Error(w, "invalid column", http.StatusBadRequest)
		return
	}
	h.respond(w, r, func(id, pid string) (*app.GameState, error) {
		return h.svc.Play(id, pid, column)
	})
}

func (h *handlers) undo(w http.ResponseWriter, r *http.Request) {
	index, ok := formInt(r, "move")
	if !ok {
		http.Error(w, "invalid move index", http.StatusBadRequest)
		return
	}
	h.respond(w, r, func(id, pid string) (*app.GameState, error) {
		return h.svc.Rewind(id, pid, index)
	})
}

func (h *handlers) restart(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(id, pid string) (*app.GameState, error) {
		return h.svc.Restart(id, pid)
	})
}

// respond runs a command and answers with the board fragment, carrying the
// error message when the command was refused.
func (h *handlers) respond(w http.ResponseWriter, r *http.Request, cmd func(id, pid string) (*app.GameState, error)) {
	id := chi.URLParam(r, "id")
	pid := ensurePlayerCookie(w, r)
	gs, err := cmd(id, pid)
	var errMsg string
	if err != nil {
		errMsg = errorMessage(err)
		if gs == nil {
			if g, ok := h.svc.Get(id); ok {
				gs = g
			}
		}
	}
	if gs == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(h.renderBoard(*gs, errMsg))
}

func (h *handlers) state(w http.ResponseWriter, r *http.Request) {
	gs, ok := h.svc.Get(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		ID string `json:"id"`
		domain.Snapshot
		Banner string `json:"banner"`
	}{ID: gs.ID, Snapshot: gs.Game, Banner: statusText(gs.Game)})
}

// writeEvent frames payload as one SSE event; every line needs its own data field.
func writeEvent(w io.Writer, event string, payload []byte) {
	_, _ = io.WriteString(w, "event: "+event+"\n")
	for _, line := range strings.Split(string(payload), "\n") {
		_, _ = io.WriteString(w, "data: "+line+"\n")
	}
	_, _ = io.WriteString(w, "\n")
}

func (h *handlers) events(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	// In tests or non-EventSource requests, just acknowledge headers and return
	if r.Header.Get("Accept") != "text/event-stream" {
		w.WriteHeader(http.StatusOK)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}
	ctx := r.Context()
	ch, unsub := h.svc.Subscribe(ctx, id)
	defer unsub()
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	flusher.Flush()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = io.WriteString(w, ": ping\n\n")
			flusher.Flush()
		case b, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, "board", b)
			flusher.Flush()
		}
	}
}
