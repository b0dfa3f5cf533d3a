package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/selecta/internal/models"
)

var styles = NewPalette(Colors{
	Heading: "#7D56F4",
	Good:    "#04B575",
	Bad:     "#FF0000",
	Pending: "#FFA500",
	Muted:   "#626262",
})

// Colors names the hex colors of a [Palette].
type Colors struct {
	Heading, Good, Bad, Pending, Muted string
}

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	heading lipgloss.Style
	good    lipgloss.Style
	bad     lipgloss.Style
	pending lipgloss.Style
	muted   lipgloss.Style
	label   lipgloss.Style
	atmos   lipgloss.Style
	spatial lipgloss.Style
}

func NewPalette(c Colors) *Palette {
	return &Palette{
		heading: newBold(c.Heading).MarginTop(1),
		good:    newBold(c.Good),
		bad:     newBold(c.Bad),
		pending: newStyle(c.Pending),
		muted:   newStyle(c.Muted).Italic(true),
		label:   newStyle(c.Muted).Width(16),
		atmos:   newBold(c.Heading),
		spatial: newStyle(c.Good),
	}
}

func newStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func newBold(fg string) lipgloss.Style {
	return newStyle(fg).Bold(true)
}

// Status colors a job status.
func (p *Palette) Status(s models.JobStatus) string {
	switch s {
	case models.JobSucceeded:
		return p.good.Render(string(s))
	case models.JobFailed:
		return p.bad.Render(string(s))
	default:
		return p.pending.Render(string(s))
	}
}

// Format colors an audio format.
func (p *Palette) Format(f models.Format) string {
	switch f {
	case models.FormatDolbyAtmos:
		return p.atmos.Render(string(f))
	case models.FormatSpatialAudio:
		return p.spatial.Render(string(f))
	default:
		return p.muted.Render(string(f))
	}
}
