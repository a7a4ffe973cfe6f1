package ui

import (
	"io"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/cellbuf"
)

// canvas composes rendered blocks into a cell buffer so overlays can be drawn
// on top of the main view without breaking its escape sequences.
type canvas struct {
	screen *cellbuf.Screen
	writer *cellbuf.ScreenWriter
	width  int
	height int
}

func newCanvas(width, height int) *canvas {
	if width <= 0 {
		width = 1
	}
	if height <= 0 {
		height = 1
	}
	screen := cellbuf.NewScreen(io.Discard, width, height, &cellbuf.ScreenOptions{
		ShowCursor: false,
		AltScreen:  false,
	})
	return &canvas{
		screen: screen,
		writer: cellbuf.NewScreenWriter(screen),
		width:  width,
		height: height,
	}
}

// drawStringAt writes content starting at x,y. Each line restarts at column x.
func (c *canvas) drawStringAt(x, y int, content string) {
	if content == "" {
		return
	}
	c.drawBlockAt(x, y, splitLines(content))
}

// centerOverlay draws the block centered, keeping topMargin rows free above it.
func (c *canvas) centerOverlay(block string, topMargin int) {
	lines := splitLines(block)
	if len(lines) == 0 {
		return
	}
	if topMargin < 0 {
		topMargin = 0
	}

	startY := topMargin + (c.height-topMargin-len(lines))/2
	if startY < topMargin {
		startY = topMargin
	}
	startX := (c.width - maxLineWidth(lines)) / 2
	if startX < 0 {
		startX = 0
	}
	c.drawBlockAt(startX, startY, lines)
}

// bottomRightOverlay anchors the block to the bottom-right corner.
func (c *canvas) bottomRightOverlay(block string, padding int) {
	lines := splitLines(block)
	if len(lines) == 0 {
		return
	}
	if padding < 0 {
		padding = 0
	}

	startY := c.height - len(lines) - padding
	if startY < 0 {
		startY = 0
	}
	startX := c.width - maxLineWidth(lines) - padding
	if startX < 0 {
		startX = 0
	}
	c.drawBlockAt(startX, startY, lines)
}

func (c *canvas) drawBlockAt(x, y int, lines []string) {
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	for i, line := range lines {
		row := y + i
		if row >= c.height {
			break
		}
		if line == "" {
			continue
		}
		c.writer.PrintCropAt(x, row, line, "")
	}
}

// render returns the frame as newline-delimited rows and releases the screen.
func (c *canvas) render() string {
	raw := cellbuf.Render(c.screen)
	_ = c.screen.Close()
	return strings.ReplaceAll(raw, "\r\n", "\n")
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
}

func maxLineWidth(lines []string) int {
	w := 0
	for _, line := range lines {
		if lw := ansi.StringWidth(line); lw > w {
			w = lw
		}
	}
	return w
}

// stripANSI removes escape sequences, leaving printable text.
func stripANSI(s string) string {
	return ansi.Strip(s)
}
