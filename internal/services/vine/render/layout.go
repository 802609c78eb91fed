package render

import (
	"image"

	"github.com/louisbranch/phototropic/internal/services/vine/domain/grid"
)

// Layout is pixel geometry for drawing the board as side-by-side layers.
type Layout struct {
	Cell   int
	Gap    int
	Margin int
	// Header is the height reserved above each layer for its label.
	Header int
	// Footer is the height reserved below the board for status text.
	Footer int
}

// DefaultLayout fits the board and five lines of status text.
var DefaultLayout = Layout{Cell: 24, Gap: 20, Margin: 16, Header: 20, Footer: 96}

func (l Layout) layerSize() int {
	return l.Cell * grid.Size
}

// Size returns the logical screen size.
func (l Layout) Size() (width, height int) {
	width = 2*l.Margin + grid.Size*l.layerSize() + (grid.Size-1)*l.Gap
	height = 2*l.Margin + l.Header + l.layerSize() + l.Footer
	return width, height
}

// LayerOrigin is the top-left pixel of layer z's cells.
func (l Layout) LayerOrigin(z int) image.Point {
	return image.Pt(l.Margin+z*(l.layerSize()+l.Gap), l.Margin+l.Header)
}

// CellRect is the pixel rectangle of the cell at row, col of layer z, rows
// counted from the top as in Board.Rows.
func (l Layout) CellRect(z, row, col int) image.Rectangle {
	o := l.LayerOrigin(z)
	topLeft := image.Pt(o.X+col*l.Cell, o.Y+row*l.Cell)
	return image.Rectangle{Min: topLeft, Max: topLeft.Add(image.Pt(l.Cell, l.Cell))}
}

// CellAt is the rectangle of lattice cell c.
func (l Layout) CellAt(c grid.Cell) image.Rectangle {
	return l.CellRect(c.Z, grid.Size-1-c.Y, c.X)
}

// TextTop is the y of the first status line.
func (l Layout) TextTop() int {
	return l.Margin + l.Header + l.layerSize() + l.Margin
}
