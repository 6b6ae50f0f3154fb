package web

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/google/uuid"
	"github.com/jaminalder/codex-connect4/internal/domain"
)

type templates struct {
	base  *template.Template
	game  *template.Template
	board *template.Template
	index *template.Template
}

// statusText is the banner shown above the board.
func statusText(s domain.Snapshot) string {
	switch s.Status.Outcome {
	case domain.Won:
		if s.Status.Winner == domain.Yellow {
			return "Winner: Yellow!!!"
		}
		return "Winner: Red!!!"
	case domain.Draw:
		return "Game is a Draw!!!"
	}
	if s.Turn == domain.Yellow {
		return "Player Turn: Yellow"
	}
	return "Player Turn: Red"
}

// cellClass lists the CSS classes of one square.
func cellClass(s domain.Snapshot, x, y int) string {
	class := s.At(x, y).String()
	if s.IsWinning(x, y) {
		class += " winner"
	}
	return class
}

func funcs() template.FuncMap {
	return template.FuncMap{
		"statusText": statusText,
		"cellClass":  cellClass,
		"add":        func(a, b int) int { return a + b },
	}
}

func loadTemplates() *templates {
	base := template.Must(template.New("base").Funcs(funcs()).Parse(`<!doctype html><html><head>
<meta charset="utf-8"/>
<title>Connect-4</title>
<script src="https://unpkg.com/htmx.org@1.9.12"></script>
<script src="https://unpkg.com/htmx.org/dist/ext/sse.js"></script>
</head><body>{{template "content" .}}</body></html>`))
	template.Must(base.New("board").Funcs(funcs()).Parse(boardTemplate))
	index := template.Must(template.Must(base.Clone()).New("content").Parse(`<h1 class="game_title">Connect-4</h1><form action="/game" method="post"><button>New Game</button></form>`))
	game := template.Must(template.Must(base.Clone()).New("content").Parse(`<h1 class="game_title">Connect-4</h1>
<div class="game" hx-ext="sse" sse-connect="/game/{{.ID}}/events" hx-sse="connect:/game/{{.ID}}/events">
  <div id="board-container" sse-swap="board" hx-sse="swap:board">{{.BoardHTML}}</div>
</div>`))
	// Standalone board template used for fragment rendering
	board := template.Must(template.New("board_only").Funcs(funcs()).Parse(boardTemplate))
	return &templates{base: base, game: game, board: board, index: index}
}

func renderTemplate(t *template.Template, name string, data any) []byte {
	var buf bytes.Buffer
	if name == "" {
		_ = t.Execute(&buf, data)
	} else {
		_ = t.ExecuteTemplate(&buf, name, data)
	}
	return buf.Bytes()
}

// boardView feeds boardTemplate. Rows run top to bottom because row 0 is the
// bottom of the board.
type boardView struct {
	ID      string
	Game    domain.Snapshot
	Error   string
	Rows    []int
	Columns []int
}

func newBoardView(id string, s domain.Snapshot, errMsg string) boardView {
	v := boardView{ID: id, Game: s, Error: errMsg}
	for y := s.Rows - 1; y >= 0; y-- {
		v.Rows = append(v.Rows, y)
	}
	for x := 0; x < s.Columns; x++ {
		v.Columns = append(v.Columns, x)
	}
	return v
}

const boardTemplate = `
<div id="board">
  <div id="game_display">{{statusText .Game}}</div>
  {{if .Error}}
  <div class="alert">{{.Error}}</div>
  {{end}}
  <div class="game_board">
  {{range $y := .Rows}}
  <div class="row">
    {{range $x := $.Columns}}
      <form hx-post="/game/{{$.ID}}/play" hx-target="#board" hx-swap="outerHTML" method="post" action="/game/{{$.ID}}/play">
        <input type="hidden" name="column" value="{{$x}}">
        <button type="submit" id="square_{{$x}}_{{$y}}" class="square {{cellClass $.Game $x $y}}"></button>
      </form>
    {{end}}
  </div>
  {{end}}
  </div>
  <form hx-post="/game/{{.ID}}/restart" hx-target="#board" hx-swap="outerHTML" method="post" action="/game/{{.ID}}/restart">
    <button type="submit" id="restart">Restart Game</button>
  </form>
  <div class="game_info">
    <div class="list_title">Moves List</div>
    <ol id="moves_list">
    {{range $i, $m := .Game.Moves}}
      <li id="move_{{add $i 1}}">
        <form hx-post="/game/{{$.ID}}/undo" hx-target="#board" hx-swap="outerHTML" method="post" action="/game/{{$.ID}}/undo">
          <input type="hidden" name="move" value="{{add $i 1}}">
          <button type="submit" class="prev_move {{$m.Player}}">Go to Move #{{add $i 1}}</button>
        </form>
      </li>
    {{end}}
    </ol>
  </div>
</div>
`

const playerCookie = "player_id"

// playerID returns the caller's id from the cookie, minting one if absent.
func playerID(r *http.Request) (string, bool) {
	if c, err := r.Cookie(playerCookie); err == nil && c.Value != "" {
		return c.Value, false
	}
	return uuid.NewString(), true
}

// Helper to set cookie
func ensurePlayerCookie(w http.ResponseWriter, r *http.Request) string {
	v, fresh := playerID(r)
	if fresh {
		http.SetCookie(w, &http.Cookie{Name: playerCookie, Value: v, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	}
	return v
}
