// Package ebitenview renders the vine race in a desktop window with ebiten
// and maps key presses to client intents.
package ebitenview

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"github.com/louisbranch/phototropic/internal/services/vine/client"
	"github.com/louisbranch/phototropic/internal/services/vine/domain/grid"
	"github.com/louisbranch/phototropic/internal/services/vine/domain/match"
	"github.com/louisbranch/phototropic/internal/services/vine/i18n"
	"github.com/louisbranch/phototropic/internal/services/vine/mirror"
	"github.com/louisbranch/phototropic/internal/services/vine/render"
	"golang.org/x/image/font/basicfont"
)

// flashFrames is how long a newly confirmed segment stays outlined.
const flashFrames = 30

const lineHeight = 16

var (
	background = color.RGBA{0x14, 0x16, 0x1c, 0xff}
	emptyCell  = color.RGBA{0x2a, 0x2e, 0x38, 0xff}
	originCell = color.RGBA{0xc8, 0xa0, 0x40, 0xff}
	textColor  = color.RGBA{0xe0, 0xe0, 0xe0, 0xff}
	highlight  = color.White

	// Role colors, indexed by role: purple then green.
	vineColors   = [2]color.RGBA{{0xcc, 0x70, 0xff, 0xff}, {0xa0, 0xff, 0xa0, 0xff}}
	flowerColors = [2]color.RGBA{{0x7a, 0x30, 0xa8, 0xff}, {0x30, 0x90, 0x40, 0xff}}
)

var keyBindings = []struct {
	key  ebiten.Key
	rune rune
}{
	{ebiten.KeyA, 'a'},
	{ebiten.KeyD, 'd'},
	{ebiten.KeyW, 'w'},
	{ebiten.KeyS, 's'},
	{ebiten.KeyE, 'e'},
	{ebiten.KeyQ, 'q'},
	{ebiten.KeyR, 'r'},
	{ebiten.KeyEscape, client.KeyEscape},
}

// Game implements ebiten.Game over a client and is that client's scene.
type Game struct {
	printer i18n.Printer
	intents *client.IntentQueue
	layout  render.Layout
	client  *client.Client
	ctx     context.Context

	mu      sync.Mutex
	flash   int
	flashAt grid.Cell
}

// New returns a window view. Attach a client with Run.
func New(printer i18n.Printer, intents *client.IntentQueue) *Game {
	return &Game{printer: printer, intents: intents, layout: render.DefaultLayout}
}

func (g *Game) PlaceSegment(seg mirror.Segment) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.flash, g.flashAt = flashFrames, seg.Cell
}

func (g *Game) PlaceTargets(match.Targets) {}

func (g *Game) ClearSegments() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.flash = 0
}

// Run opens the window and steps c once per frame until the player quits,
// ctx ends, the window closes or the connection fails. It must be called
// from the main goroutine.
func (g *Game) Run(ctx context.Context, c *client.Client) error {
	g.ctx, g.client = ctx, c
	w, h := g.layout.Size()
	ebiten.SetWindowSize(w*2, h*2)
	ebiten.SetWindowTitle("phototropic")
	return ebiten.RunGame(g)
}

// Update reads input and advances the client.
func (g *Game) Update() error {
	if g.ctx.Err() != nil {
		return ebiten.Termination
	}
	for _, b := range keyBindings {
		if !inpututil.IsKeyJustPressed(b.key) {
			continue
		}
		if intent, ok := client.KeyIntent(b.rune); ok {
			g.intents.Push(intent)
		}
	}

	err := g.client.Step(0)
	if errors.Is(err, client.ErrQuit) {
		return ebiten.Termination
	}
	if err != nil {
		return err
	}

	g.mu.Lock()
	if g.flash > 0 {
		g.flash--
	}
	g.mu.Unlock()
	return nil
}

// Draw paints the latest snapshot.
func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(background)
	snap := g.client.Snapshot()
	board := render.BoardFrom(snap)

	for z := 0; z < grid.Size; z++ {
		o := g.layout.LayerOrigin(z)
		text.Draw(screen, fmt.Sprintf("z=%d", z), basicfont.Face7x13, o.X, o.Y-6, textColor)
		rows := board.Rows(z)
		for row := range rows {
			for col, mark := range rows[row] {
				g.drawMark(screen, g.layout.CellRect(z, row, col), mark)
			}
		}
	}

	g.mu.Lock()
	flash, flashAt := g.flash, g.flashAt
	g.mu.Unlock()
	if flash > 0 {
		outline(screen, g.layout.CellAt(flashAt), highlight)
	}

	statusColor := color.Color(textColor)
	if snap.HasRole {
		statusColor = vineColors[snap.Role.Index()]
	}
	y := g.layout.TextTop() + lineHeight
	text.Draw(screen, g.printer.Status(snap), basicfont.Face7x13, g.layout.Margin, y, statusColor)
	for _, line := range g.printer.Hints(snap) {
		y += lineHeight
		text.Draw(screen, line, basicfont.Face7x13, g.layout.Margin, y, textColor)
	}
}

// Layout keeps a fixed logical size; ebiten scales it to the window.
func (g *Game) Layout(_, _ int) (int, int) {
	return g.layout.Size()
}

func (g *Game) drawMark(screen *ebiten.Image, r image.Rectangle, m render.Mark) {
	inner := r.Inset(1)
	switch m.Kind {
	case render.MarkOrigin:
		fill(screen, inner, originCell)
	case render.MarkVine:
		fill(screen, inner, vineColors[m.Role.Index()])
	case render.MarkTarget:
		fill(screen, inner, emptyCell)
		fill(screen, inner.Inset(inner.Dx()/4), flowerColors[m.Role.Index()])
	default:
		fill(screen, inner, emptyCell)
	}
	if m.Frontier {
		fill(screen, inner.Inset(inner.Dx()/3), highlight)
	}
}

func fill(screen *ebiten.Image, r image.Rectangle, c color.Color) {
	if r.Empty() {
		return
	}
	screen.SubImage(r).(*ebiten.Image).Fill(c)
}

func outline(screen *ebiten.Image, r image.Rectangle, c color.Color) {
	fill(screen, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1), c)
	fill(screen, image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y), c)
	fill(screen, image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y), c)
	fill(screen, image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y), c)
}
