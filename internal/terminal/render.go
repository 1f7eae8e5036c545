package terminal

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"orderdesk/internal/model"
	"orderdesk/internal/view"
)

// Console serializes writes from the command loop and the live feed.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) Printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *Console) Println(args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, args...)
}

func statusLabel(s model.Status) string {
	if s == model.StatusClosed {
		return "finalizados"
	}
	return "em andamento"
}

// Renderer draws the order list screen.
type Renderer struct {
	console *Console
}

func NewRenderer(console *Console) *Renderer {
	return &Renderer{console: console}
}

func (r *Renderer) Render(state view.RenderState, count int) {
	r.console.Printf("%s", Format(state, count))
}

// Format returns the text of one frame of the order list screen.
func Format(state view.RenderState, count int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n== Meus serviços (%d) [%s] ==\n", count, statusLabel(state.Filter))

	switch state.Kind {
	case view.Loading:
		b.WriteString("Carregando...\n")
	case view.Empty:
		b.WriteString(state.EmptyMessage())
		b.WriteString("\n")
	case view.Populated:
		for _, e := range state.Entries {
			fmt.Fprintf(&b, "%s  %s  %s  %s\n", e.ID, e.When, e.Client, e.Title)
		}
	}
	if state.Err != nil {
		fmt.Fprintf(&b, "! sincronização interrompida: %v\n", state.Err)
	}
	return b.String()
}
