package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const writeWait = 10 * time.Second

var errUnknownAction = errors.New("unknown action")

// socketCommand is what clients send over the socket.
type socketCommand struct {
	Action string `json:"action"`
	Column int    `json:"column"`
	Move   int    `json:"move"`
}

// socketMessage is what the server pushes: a board fragment or an error text.
type socketMessage struct {
	Action string `json:"action"`
	Data   string `json:"data"`
}

func (h *handlers) apply(id, pid string, cmd socketCommand) error {
	var err error
	switch cmd.Action {
	case "play":
		_, err = h.svc.Play(id, pid, cmd.Column)
	case "undo":
		_, err = h.svc.Rewind(id, pid, cmd.Move)
	case "restart":
		_, err = h.svc.Restart(id, pid)
	default:
		h.log.Debug("unknown socket action", zap.String("game_id", id), zap.String("action", cmd.Action))
		return errUnknownAction
	}
	return err
}

// socket streams board updates and accepts commands. Successful commands are
// answered through the broadcast every subscriber receives; refusals go back to
// the sender only.
func (h *handlers) socket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.svc.Get(id); !ok {
		http.NotFound(w, r)
		return
	}
	pid, _ := playerID(r)
	_, gs, err := h.svc.Join(id, pid)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.String("game_id", id), zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	ch, unsub := h.svc.Subscribe(ctx, id)
	defer unsub()

	refusals := make(chan string, 4)
	go func() {
		defer cancel()
		for {
			var cmd socketCommand
			if err := conn.ReadJSON(&cmd); err != nil {
				return
			}
			if err := h.apply(id, pid, cmd); err != nil {
				select {
				case refusals <- errorMessage(err):
				default:
				}
			}
		}
	}()

	send := func(m socketMessage) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(m) == nil
	}
	if !send(socketMessage{Action: "board", Data: string(h.renderBoard(*gs, ""))}) {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case b, ok := <-ch:
			if !ok || !send(socketMessage{Action: "board", Data: string(b)}) {
				return
			}
		case msg := <-refusals:
			if !send(socketMessage{Action: "error", Data: msg}) {
				return
			}
		}
	}
}
