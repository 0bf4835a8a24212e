package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// bannerLines spell "quire" in a small figlet font.
var bannerLines = []string{
	"                    _          ",
	"   __ _ _   _ _ __(_)_ __ ___ ",
	"  / _` | | | | '__| | '__/ _ \\",
	" | (_| | |_| | |  | | | |  __/",
	"  \\__, |\\__,_|_|  |_|_|  \\___|",
	"     |_|                       ",
}

// bannerColors is an Indigo to Rose gradient, one stop per line.
var bannerColors = []string{"#818cf8", "#a78bfa", "#c084fc", "#e879f9", "#f472b6", "#fb7185"}

// PrintBanner writes the quire banner to w, colored for the terminal's profile.
func PrintBanner(w io.Writer) {
	PrintBannerWithProfile(w, termenv.ColorProfile())
}

// PrintBannerWithProfile is PrintBanner with an explicit color profile
// (termenv.Ascii disables colors).
func PrintBannerWithProfile(w io.Writer, p termenv.Profile) {
	fmt.Fprintln(w)
	for i, line := range bannerLines {
		fmt.Fprintln(w, p.String(line).Foreground(p.Color(bannerColors[i%len(bannerColors)])))
	}
	fmt.Fprintln(w)
}

// TitleStyle returns a function that renders step titles in bold with the
// banner's accent color.
func TitleStyle(p termenv.Profile) func(string) string {
	return func(s string) string {
		return p.String(s).Foreground(p.Color(bannerColors[0])).Bold().String()
	}
}
