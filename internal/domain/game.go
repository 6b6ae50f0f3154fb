package domain

import (
	"errors"
	"fmt"
)

// Outcome is the coarse state of a game.
type Outcome uint8

const (
	InProgress Outcome = iota
	Won
	Draw
)

func (o Outcome) String() string {
	switch o {
	case Won:
		return "won"
	case Draw:
		return "draw"
	default:
		return "in_progress"
	}
}

func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// Status is the outcome plus the winner when Outcome is Won.
type Status struct {
	Outcome Outcome `json:"outcome"`
	Winner  Cell    `json:"winner"`
}

// Over reports whether no further moves can be played.
func (s Status) Over() bool { return s.Outcome != InProgress }

// Move is one applied move. Row is derived from the column height.
type Move struct {
	Player Cell `json:"player"`
	Column int  `json:"column"`
	Row    int  `json:"row"`
}

// Errors returned by domain operations.
var (
	ErrIllegalMove   = errors.New("illegal move")
	ErrOutOfRange    = errors.New("move index out of range")
	ErrInvalidConfig = errors.New("invalid config")

	ErrColumnOutOfRange = fmt.Errorf("%w: column out of range", ErrIllegalMove)
	ErrColumnFull       = fmt.Errorf("%w: column full", ErrIllegalMove)
	ErrGameOver         = fmt.Errorf("%w: game over", ErrIllegalMove)
)

// Game holds one Connect-4 session: board, move log, turn and outcome.
// A Game is not safe for concurrent use.
type Game struct {
	cfg     Config
	board   Board
	moves   []Move
	turn    Cell
	status  Status
	winning []Point
}

// New returns a game on the default 7x6 board with Red to move.
func New() *Game {
	g, _ := NewWithConfig(DefaultConfig())
	return g
}

// NewWithConfig returns a fresh game for cfg.
func NewWithConfig(cfg Config) (*Game, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &Game{
		cfg:   cfg,
		board: newBoard(cfg.Columns, cfg.Rows),
		moves: make([]Move, 0, cfg.Cells()),
	}
	g.Reset()
	return g, nil
}

// Replay builds a game by playing columns in order from an empty board.
func Replay(cfg Config, columns []int) (*Game, error) {
	g, err := NewWithConfig(cfg)
	if err != nil {
		return nil, err
	}
	for i, c := range columns {
		if _, err := g.Play(c); err != nil {
			return nil, fmt.Errorf("move %d (column %d): %w", i+1, c, err)
		}
	}
	return g, nil
}

// Reset clears the board and history and hands the turn to the starting player.
func (g *Game) Reset() {
	g.board.clear()
	g.moves = g.moves[:0]
	g.turn = g.cfg.StartingPlayer
	g.status = Status{}
	g.winning = nil
}

func (g *Game) Config() Config { return g.cfg }

func (g *Game) checkMove(column int) error {
	if g.status.Over() {
		return ErrGameOver
	}
	if column < 0 || column >= g.cfg.Columns {
		return ErrColumnOutOfRange
	}
	if g.board.Height(column) >= g.cfg.Rows {
		return ErrColumnFull
	}
	return nil
}

// IsLegalMove reports whether the current player may drop into column.
func (g *Game) IsLegalMove(column int) bool {
	return g.checkMove(column) == nil
}

// LegalMoves lists the playable columns in ascending order.
func (g *Game) LegalMoves() []int {
	var out []int
	for c := 0; c < g.cfg.Columns; c++ {
		if g.IsLegalMove(c) {
			out = append(out, c)
		}
	}
	return out
}

// LandingRow is the row a piece dropped into column would occupy.
func (g *Game) LandingRow(column int) (int, bool) {
	if column < 0 || column >= g.cfg.Columns || g.board.Height(column) >= g.cfg.Rows {
		return -1, false
	}
	return g.board.Height(column), true
}

// Play drops the current player's piece into column. On error the game is
// left untouched.
func (g *Game) Play(column int) (Move, error) {
	if err := g.checkMove(column); err != nil {
		return Move{}, err
	}
	m := Move{Player: g.turn, Column: column}
	m.Row = g.board.drop(column, g.turn)
	g.moves = append(g.moves, m)

	g.evaluate(m)
	if !g.status.Over() {
		g.turn = g.turn.Opponent()
	}
	return m, nil
}

// evaluate settles the outcome after last was applied.
func (g *Game) evaluate(last Move) {
	line := winningLine(&g.board, Point{last.Column, last.Row}, last.Player, g.cfg.ConnectLength)
	switch {
	case line != nil:
		g.status = Status{Outcome: Won, Winner: last.Player}
		g.winning = line
	case len(g.moves) == g.cfg.Cells():
		g.status = Status{Outcome: Draw}
	default:
		g.status = Status{}
	}
}

// UndoToMove rewinds to the state right after the index-th move; 0 is the
// empty board. Later moves are discarded and the game is open again. Rewinding
// to the current length changes nothing.
func (g *Game) UndoToMove(index int) error {
	if index < 0 || index > len(g.moves) {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrOutOfRange, index, len(g.moves))
	}
	if index == len(g.moves) {
		return nil
	}
	g.moves = g.moves[:index]
	g.board.clear()
	for _, m := range g.moves {
		g.board.drop(m.Column, m.Player)
	}
	g.turn = g.cfg.StartingPlayer
	if index%2 == 1 {
		g.turn = g.turn.Opponent()
	}
	g.status = Status{}
	g.winning = nil
	return nil
}

// Cell returns the owner of column x, row y (row 0 at the bottom).
func (g *Game) Cell(x, y int) Cell { return g.board.At(x, y) }

// Turn is the player to move, or the last mover once the game is over.
func (g *Game) Turn() Cell { return g.turn }

func (g *Game) Status() Status { return g.status }

// Moves returns a copy of the move log in play order.
func (g *Game) Moves() []Move {
	out := make([]Move, len(g.moves))
	copy(out, g.moves)
	return out
}

// WinningCells returns the highlighted line, nil unless the game was won.
func (g *Game) WinningCells() []Point {
	if g.status.Outcome != Won {
		return nil
	}
	out := make([]Point, len(g.winning))
	copy(out, g.winning)
	return out
}

// Board returns a copy of the grid indexed [column][row].
func (g *Game) Board() [][]Cell { return g.board.grid() }

// Snapshot is a detached copy of a game, safe to hand to other goroutines.
type Snapshot struct {
	Columns       int      `json:"columns"`
	Rows          int      `json:"rows"`
	ConnectLength int      `json:"connect_length"`
	Board         [][]Cell `json:"board"`
	Turn          Cell     `json:"turn"`
	Status        Status   `json:"status"`
	Moves         []Move   `json:"moves"`
	Winning       []Point  `json:"winning,omitempty"`
}

func (g *Game) Snapshot() Snapshot {
	return Snapshot{
		Columns:       g.cfg.Columns,
		Rows:          g.cfg.Rows,
		ConnectLength: g.cfg.ConnectLength,
		Board:         g.Board(),
		Turn:          g.turn,
		Status:        g.status,
		Moves:         g.Moves(),
		Winning:       g.WinningCells(),
	}
}

// At reads a snapshot cell, Empty when off the board.
func (s Snapshot) At(x, y int) Cell {
	if x < 0 || x >= len(s.Board) || y < 0 || y >= len(s.Board[x]) {
		return Empty
	}
	return s.Board[x][y]
}

// IsWinning reports whether (x, y) is part of the winning line.
func (s Snapshot) IsWinning(x, y int) bool {
	for _, p := range s.Winning {
		if p.X == x && p.Y == y {
			return true
		}
	}
	return false
}
