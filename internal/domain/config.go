package domain

import "fmt"

// Config fixes the board geometry and rules for a game.
type Config struct {
	Columns        int
	Rows           int
	ConnectLength  int
	StartingPlayer Cell
}

// DefaultConfig is the classic 7x6 board, four to win, Red first.
func DefaultConfig() Config {
	return Config{Columns: 7, Rows: 6, ConnectLength: 4, StartingPlayer: Red}
}

// Cells is the number of cells on the board, which bounds the move log.
func (c Config) Cells() int { return c.Columns * c.Rows }

// Validate reports whether the configuration can host a game.
func (c Config) Validate() error {
	if c.Columns < 1 || c.Rows < 1 {
		return fmt.Errorf("%w: board %dx%d", ErrInvalidConfig, c.Columns, c.Rows)
	}
	if c.ConnectLength < 1 || (c.ConnectLength > c.Columns && c.ConnectLength > c.Rows) {
		return fmt.Errorf("%w: connect length %d on %dx%d board", ErrInvalidConfig, c.ConnectLength, c.Columns, c.Rows)
	}
	if c.StartingPlayer != Red && c.StartingPlayer != Yellow {
		return fmt.Errorf("%w: starting player %d", ErrInvalidConfig, c.StartingPlayer)
	}
	return nil
}
