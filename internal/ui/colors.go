package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/spx/internal/match"
)

var styles = NewPalette(Colors{
	Title:     "#7D56F4",
	Matched:   "#04B575",
	Unmatched: "#FFA500",
	Skipped:   "#626262",
	Error:     "#FF0000",
})

// Colors holds the hex foreground colors of the TUI.
type Colors struct {
	Title, Matched, Unmatched, Skipped, Error string
}

// Palette is the stylesheet of the TUI. Outcome styles are keyed by [match.Status].
type Palette struct {
	title    lipgloss.Style
	ok       lipgloss.Style
	err      lipgloss.Style
	warn     lipgloss.Style
	help     lipgloss.Style
	statuses map[match.Status]lipgloss.Style
}

func NewPalette(c Colors) *Palette {
	p := &Palette{
		title: NewBold(c.Title).MarginBottom(1),
		ok:    NewBold(c.Matched),
		err:   NewBold(c.Error),
		warn:  NewStyle(c.Unmatched),
		help:  NewEm(c.Skipped),
	}
	p.statuses = map[match.Status]lipgloss.Style{
		match.Matched:   p.ok,
		match.Unmatched: p.warn,
		match.Skipped:   p.help,
	}
	return p
}

// status renders text in the color of an outcome status.
func (p *Palette) status(s match.Status, text string) string {
	if style, ok := p.statuses[s]; ok {
		return style.Render(text)
	}
	return text
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}
