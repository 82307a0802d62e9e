package analysis

import (
	"strings"

	"github.com/san-kum/hoversim/internal/dynamo"
)

// PhasePortrait2D holds height against vertical velocity for a run.
type PhasePortrait2D struct {
	Points []struct{ X, Y float64 }
}

// PhasePortrait records (y, vy) for every sample. A settled hover spirals
// into (setpoint, 0).
func PhasePortrait(samples []dynamo.Sample) *PhasePortrait2D {
	portrait := &PhasePortrait2D{
		Points: make([]struct{ X, Y float64 }, 0, len(samples)),
	}
	for _, s := range samples {
		portrait.Points = append(portrait.Points, struct{ X, Y float64 }{
			X: s.Position.Y(),
			Y: s.Velocity.Y(),
		})
	}
	return portrait
}

type bounds struct{ lo, hi float64 }

func (b bounds) span() float64 { return b.hi - b.lo }

// padded widens b by a tenth of its span on each side, or by 1 when flat.
func (b bounds) padded() bounds {
	r := b.span()
	if r == 0 {
		r = 1
	}
	return bounds{b.lo - 0.1*r, b.hi + 0.1*r}
}

func (b bounds) cell(v float64, n int) int {
	return int((v - b.lo) / b.span() * float64(n-1))
}

// PhasePortraitToASCII plots the portrait with height across and velocity
// up. The setpoint column and the zero-velocity row are drawn when visible,
// and the final state is marked.
func PhasePortraitToASCII(portrait *PhasePortrait2D, setpoint float64, width, height int) string {
	if portrait == nil || len(portrait.Points) == 0 || width < 2 || height < 2 {
		return ""
	}

	first := portrait.Points[0]
	bx, by := bounds{first.X, first.X}, bounds{first.Y, first.Y}
	for _, p := range portrait.Points {
		bx.lo, bx.hi = min(bx.lo, p.X), max(bx.hi, p.X)
		by.lo, by.hi = min(by.lo, p.Y), max(by.hi, p.Y)
	}
	bx, by = bx.padded(), by.padded()

	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", width))
	}
	put := func(x, y float64, r rune, overwrite bool) {
		col, row := bx.cell(x, width), height-1-by.cell(y, height)
		if row < 0 || row >= height || col < 0 || col >= width {
			return
		}
		if overwrite || grid[row][col] == ' ' {
			grid[row][col] = r
		}
	}

	for _, p := range portrait.Points {
		put(p.X, p.Y, '•', true)
	}
	if setpoint >= bx.lo && setpoint <= bx.hi {
		col := bx.cell(setpoint, width)
		for row := range grid {
			if grid[row][col] == ' ' {
				grid[row][col] = '┆'
			}
		}
	}
	if by.lo <= 0 && by.hi >= 0 {
		row := height - 1 - by.cell(0, height)
		for col := range grid[row] {
			if grid[row][col] == ' ' {
				grid[row][col] = '─'
			}
		}
	}
	last := portrait.Points[len(portrait.Points)-1]
	put(last.X, last.Y, '◉', true)

	var sb strings.Builder
	for _, row := range grid {
		sb.WriteString(string(row))
		sb.WriteRune('\n')
	}
	return sb.String()
}
