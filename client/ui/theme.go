package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Palette is one color scheme. The dark one is the Midnight Commander look.
type Palette struct {
	Bg        tcell.Color
	FieldBg   tcell.Color
	Fg        tcell.Color
	Border    tcell.Color
	Title     tcell.Color
	Highlight tcell.Color
	Bar       tcell.Color
	Online    tcell.Color
	Offline   tcell.Color
	Sent      tcell.Color
	Received  tcell.Color
	Read      tcell.Color
}

var (
	darkPalette = Palette{
		Bg:        tcell.NewRGBColor(0, 0, 128),
		FieldBg:   tcell.NewRGBColor(0, 0, 64),
		Fg:        tcell.NewRGBColor(192, 192, 192),
		Border:    tcell.NewRGBColor(0, 255, 255),
		Title:     tcell.NewRGBColor(255, 255, 255),
		Highlight: tcell.NewRGBColor(0, 255, 255),
		Bar:       tcell.NewRGBColor(0, 128, 128),
		Online:    tcell.NewRGBColor(0, 255, 0),
		Offline:   tcell.NewRGBColor(128, 128, 128),
		Sent:      tcell.NewRGBColor(255, 255, 255),
		Received:  tcell.NewRGBColor(255, 255, 0),
		Read:      tcell.NewRGBColor(0, 255, 0),
	}

	lightPalette = Palette{
		Bg:        tcell.NewRGBColor(238, 238, 238),
		FieldBg:   tcell.NewRGBColor(255, 255, 255),
		Fg:        tcell.NewRGBColor(32, 32, 32),
		Border:    tcell.NewRGBColor(0, 120, 150),
		Title:     tcell.NewRGBColor(0, 0, 0),
		Highlight: tcell.NewRGBColor(0, 100, 160),
		Bar:       tcell.NewRGBColor(0, 150, 170),
		Online:    tcell.NewRGBColor(0, 150, 0),
		Offline:   tcell.NewRGBColor(140, 140, 140),
		Sent:      tcell.NewRGBColor(0, 0, 0),
		Received:  tcell.NewRGBColor(0, 90, 160),
		Read:      tcell.NewRGBColor(0, 150, 0),
	}
)

// paletteFor maps the account theme setting onto a palette. Anything but
// "light" gets the dark scheme.
func paletteFor(theme string) Palette {
	if theme == "light" {
		return lightPalette
	}
	return darkPalette
}

func (p Palette) tag(c tcell.Color) string {
	return fmt.Sprintf("[#%06x]", c.Hex())
}

func (p Palette) styleForm(form *tview.Form, title string) {
	form.SetBackgroundColor(p.Bg)
	form.SetFieldBackgroundColor(p.FieldBg)
	form.SetFieldTextColor(p.Fg)
	form.SetLabelColor(p.Highlight)
	form.SetButtonBackgroundColor(p.Bar)
	form.SetButtonTextColor(p.Title)
	form.SetBorder(true)
	form.SetBorderColor(p.Border)
	form.SetTitle(title)
	form.SetTitleColor(p.Title)
}

func (p Palette) styleModal(modal *tview.Modal) {
	modal.SetBackgroundColor(p.Bg)
	modal.SetTextColor(p.Fg)
	modal.SetButtonBackgroundColor(p.Bar)
	modal.SetButtonTextColor(p.Title)
}

func (p Palette) statusBar() *tview.TextView {
	bar := tview.NewTextView()
	bar.SetBackgroundColor(p.Bar)
	bar.SetTextColor(p.Title)
	bar.SetTextAlign(tview.AlignCenter)
	bar.SetDynamicColors(true)
	return bar
}
