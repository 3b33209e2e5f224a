package model

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/sbl8/rowlife/core"
)

// Grid palette.
var (
	ColorAlive  = lipgloss.Color("#2CD7C7")
	ColorDead   = lipgloss.Color("#2C4A54")
	ColorBorder = lipgloss.Color("#16858E")
)

const (
	glyphAlive = "█"
	glyphDead  = "·"
)

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// GridConsumer buffers every final row and renders the whole lattice on
// Flush, ordered by participant. Without colour it prints "id:row" lines,
// the same as TextConsumer but sorted.
type GridConsumer struct {
	w     io.Writer
	color bool

	mu   sync.Mutex
	rows map[int]core.Row

	alive, dead, box lipgloss.Style
}

// NewGridConsumer renders to w, styled when color is set.
func NewGridConsumer(w io.Writer, color bool) *GridConsumer {
	return &GridConsumer{
		w:     w,
		color: color,
		rows:  make(map[int]core.Row),
		alive: lipgloss.NewStyle().Foreground(ColorAlive),
		dead:  lipgloss.NewStyle().Foreground(ColorDead),
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1),
	}
}

// Consume buffers a copy of row.
func (g *GridConsumer) Consume(id int, row core.Row) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rows[id] = row.Clone()
	return nil
}

// Flush renders the buffered rows and clears the buffer.
func (g *GridConsumer) Flush() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	ids := make([]int, 0, len(g.rows))
	for id := range g.rows {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var out string
	if g.color {
		out = g.renderStyled(ids) + "\n"
	} else {
		out = g.renderPlain(ids)
	}
	clear(g.rows)

	_, err := io.WriteString(g.w, out)
	return err
}

func (g *GridConsumer) renderPlain(ids []int) string {
	var b strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&b, "%d:%s\n", id, g.rows[id])
	}
	return b.String()
}

func (g *GridConsumer) renderStyled(ids []int) string {
	alive, dead := g.alive.Render(glyphAlive), g.dead.Render(glyphDead)
	lines := make([]string, len(ids))
	for i, id := range ids {
		var b strings.Builder
		for _, c := range g.rows[id] {
			if c == core.Alive {
				b.WriteString(alive)
			} else {
				b.WriteString(dead)
			}
		}
		lines[i] = b.String()
	}
	return g.box.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
