// Package termview renders the vine race in a terminal with termbox and maps
// key presses to client intents.
package termview

import (
	"context"
	"fmt"
	"log"

	"github.com/louisbranch/phototropic/internal/platform/timeouts"
	"github.com/louisbranch/phototropic/internal/services/vine/client"
	"github.com/louisbranch/phototropic/internal/services/vine/domain/grid"
	"github.com/louisbranch/phototropic/internal/services/vine/domain/match"
	"github.com/louisbranch/phototropic/internal/services/vine/i18n"
	"github.com/louisbranch/phototropic/internal/services/vine/mirror"
	"github.com/louisbranch/phototropic/internal/services/vine/render"
	"github.com/mattn/go-runewidth"
	"github.com/nsf/termbox-go"
)

const (
	// layerWidth is one layer's width in columns: a glyph and a space per cell.
	layerWidth = grid.Size * 2
	layerGap   = 3
	boardTop   = 1
	statusTop  = boardTop + grid.Size + 2
)

var roleColors = [2]termbox.Attribute{termbox.ColorMagenta, termbox.ColorGreen}

type canvas interface {
	SetCell(x, y int, ch rune, fg, bg termbox.Attribute)
}

type termboxCanvas struct{}

func (termboxCanvas) SetCell(x, y int, ch rune, fg, bg termbox.Attribute) {
	termbox.SetCell(x, y, ch, fg, bg)
}

// View draws snapshots and doubles as the client's scene, keeping a line
// about the latest confirmed segment.
type View struct {
	printer i18n.Printer
	last    string
}

// New returns a view printing status copy with printer.
func New(printer i18n.Printer) *View {
	return &View{printer: printer}
}

func (v *View) PlaceSegment(seg mirror.Segment) {
	v.last = fmt.Sprintf("#%d %s %s %s", seg.Index, v.printer.RoleName(seg.Role), seg.Direction, seg.Cell)
}

func (v *View) PlaceTargets(match.Targets) { v.last = "" }

func (v *View) ClearSegments() { v.last = "" }

// Run takes over the terminal and steps c once per frame until the player
// quits, ctx ends or the connection fails.
func Run(ctx context.Context, c *client.Client, intents *client.IntentQueue, v *View) error {
	if err := termbox.Init(); err != nil {
		return fmt.Errorf("init terminal: %w", err)
	}
	defer termbox.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		readKeys(intents)
	}()

	err := c.Run(ctx, timeouts.Frame, func(snap mirror.View) {
		_ = termbox.Clear(termbox.ColorDefault, termbox.ColorDefault)
		v.draw(termboxCanvas{}, snap)
		_ = termbox.Flush()
	})

	select {
	case <-done:
	default:
		termbox.Interrupt()
		<-done
	}
	return err
}

func readKeys(intents *client.IntentQueue) {
	for {
		ev := termbox.PollEvent()
		switch ev.Type {
		case termbox.EventInterrupt:
			return
		case termbox.EventError:
			log.Printf("terminal input: %v", ev.Err)
			intents.Push(client.Quit())
			return
		case termbox.EventKey:
			key := ev.Ch
			if ev.Key == termbox.KeyEsc || ev.Key == termbox.KeyCtrlC {
				key = client.KeyEscape
			}
			if intent, ok := client.KeyIntent(key); ok {
				intents.Push(intent)
			}
		}
	}
}

func (v *View) draw(c canvas, snap mirror.View) {
	board := render.BoardFrom(snap)
	for z := 0; z < grid.Size; z++ {
		left := z * (layerWidth + layerGap)
		drawText(c, left, 0, fmt.Sprintf("z=%d", z), termbox.ColorDefault)
		rows := board.Rows(z)
		for row := range rows {
			for col, mark := range rows[row] {
				ch, fg := glyph(mark)
				c.SetCell(left+col*2, boardTop+row, ch, fg, termbox.ColorDefault)
			}
		}
	}

	fg := termbox.ColorDefault
	if snap.HasRole {
		fg = roleColors[snap.Role.Index()]
	}
	y := statusTop
	drawText(c, 0, y, v.printer.Status(snap), fg|termbox.AttrBold)
	for _, line := range v.printer.Hints(snap) {
		y++
		drawText(c, 0, y, line, termbox.ColorDefault)
	}
	if v.last != "" {
		drawText(c, 0, y+1, v.last, termbox.ColorDefault)
	}
}

func glyph(m render.Mark) (rune, termbox.Attribute) {
	switch m.Kind {
	case render.MarkOrigin:
		if m.Frontier {
			return '@', termbox.ColorYellow
		}
		return 'o', termbox.ColorYellow
	case render.MarkVine:
		if m.Frontier {
			return '@', roleColors[m.Role.Index()] | termbox.AttrBold
		}
		return '#', roleColors[m.Role.Index()]
	case render.MarkTarget:
		return '*', roleColors[m.Role.Index()] | termbox.AttrBold
	default:
		return '.', termbox.ColorDefault
	}
}

// drawText writes s from column x and returns the column after it.
func drawText(c canvas, x, y int, s string, fg termbox.Attribute) int {
	for _, r := range s {
		c.SetCell(x, y, r, fg, termbox.ColorDefault)
		x += runewidth.RuneWidth(r)
	}
	return x
}
