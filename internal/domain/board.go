package domain

// Cell represents a board cell state.
type Cell uint8

const (
	Empty Cell = iota
	Red
	Yellow
)

func (c Cell) String() string {
	switch c {
	case Red:
		return "red"
	case Yellow:
		return "yellow"
	default:
		return ""
	}
}

func (c Cell) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// Opponent returns the other colour. Empty has no opponent.
func (c Cell) Opponent() Cell {
	switch c {
	case Red:
		return Yellow
	case Yellow:
		return Red
	default:
		return Empty
	}
}

// Point addresses a cell by column (X) and row (Y), row 0 at the bottom.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Board is a columns x rows grid stored column-major.
// Pieces only ever sit on top of other pieces, so each column is described
// fully by its cells below heights[x].
type Board struct {
	columns int
	rows    int
	cells   []Cell
	heights []int
}

func newBoard(columns, rows int) Board {
	return Board{
		columns: columns,
		rows:    rows,
		cells:   make([]Cell, columns*rows),
		heights: make([]int, columns),
	}
}

func (b *Board) inside(x, y int) bool {
	return x >= 0 && x < b.columns && y >= 0 && y < b.rows
}

// At returns the owner of (x, y), or Empty when the point is off the board.
func (b *Board) At(x, y int) Cell {
	if !b.inside(x, y) {
		return Empty
	}
	return b.cells[x*b.rows+y]
}

// Height is the number of pieces stacked in column x.
func (b *Board) Height(x int) int {
	if x < 0 || x >= b.columns {
		return 0
	}
	return b.heights[x]
}

// drop stacks side onto column x and returns the landing row.
// Callers check legality first.
func (b *Board) drop(x int, side Cell) int {
	y := b.heights[x]
	b.cells[x*b.rows+y] = side
	b.heights[x]++
	return y
}

func (b *Board) clear() {
	for i := range b.cells {
		b.cells[i] = Empty
	}
	for i := range b.heights {
		b.heights[i] = 0
	}
}

// grid copies the board into [column][row] slices.
func (b *Board) grid() [][]Cell {
	out := make([][]Cell, b.columns)
	for x := range out {
		out[x] = make([]Cell, b.rows)
		copy(out[x], b.cells[x*b.rows:(x+1)*b.rows])
	}
	return out
}
