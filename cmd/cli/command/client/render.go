package client

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"framechat/internal/protocol"
)

// Style classifies a rendered line for coloring.
type Style int

const (
	StyleChat Style = iota
	StyleJoin
	StyleMalformed
)

// Render turns a received message into one display line.
// A chat body without the name separator is shown with a marker instead of being dropped.
func Render(msg protocol.Message) (string, Style) {
	if msg.Kind == protocol.ServerLoginAnnounce {
		return fmt.Sprintf("* <%s> join the server!", msg.Body), StyleJoin
	}
	name, text, ok := bytes.Cut(msg.Body, []byte("\n"))
	if !ok {
		return fmt.Sprintf("(malformed) %s", msg.Body), StyleMalformed
	}
	return fmt.Sprintf("%s> %s", name, text), StyleChat
}

// Printer writes rendered messages to a terminal, one line each.
type Printer struct {
	mu     sync.Mutex
	w      io.Writer
	colors map[Style]*color.Color
}

// NewPrinter creates a Printer; colored output is used only when useColor is set.
func NewPrinter(w io.Writer, useColor bool) *Printer {
	p := &Printer{w: w}
	if useColor {
		p.colors = map[Style]*color.Color{
			StyleChat:      color.New(color.FgCyan),
			StyleJoin:      color.New(color.FgYellow),
			StyleMalformed: color.New(color.FgRed),
		}
	}
	return p
}

// Print renders and writes msg.
func (p *Printer) Print(msg protocol.Message) {
	line, style := Render(msg)

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.colors[style]; ok {
		c.Fprintln(p.w, line)
		return
	}
	fmt.Fprintln(p.w, line)
}
