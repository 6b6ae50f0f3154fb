package domain

// directions are scanned in this order: horizontal, vertical, ascending and
// descending diagonal.
var directions = [4]Point{{1, 0}, {0, 1}, {1, 1}, {1, -1}}

// run counts consecutive cells owned by side starting one step from p in
// direction d. Walking stops at the board edge or the first foreign cell.
func run(b *Board, p, d Point, side Cell) int {
	n := 0
	x, y := p.X+d.X, p.Y+d.Y
	for b.At(x, y) == side {
		n++
		x += d.X
		y += d.Y
	}
	return n
}

// winningLine looks for connect cells of side through the freshly placed
// piece at p. Only lines through p can have become winning with this move.
// The returned cells are the first connect cells of the line counted from
// its negative end, or nil when no line is long enough.
func winningLine(b *Board, p Point, side Cell, connect int) []Point {
	if side == Empty || b.At(p.X, p.Y) != side {
		return nil
	}
	for _, d := range directions {
		back := run(b, p, Point{-d.X, -d.Y}, side)
		ahead := run(b, p, d, side)
		if back+ahead+1 < connect {
			continue
		}
		start := Point{p.X - back*d.X, p.Y - back*d.Y}
		line := make([]Point, connect)
		for i := range line {
			line[i] = Point{start.X + i*d.X, start.Y + i*d.Y}
		}
		return line
	}
	return nil
}
