package ui

import (
	"fmt"

	"github.com/rivo/tview"
)

// Logo is the banner in the top right corner of the header.
type Logo struct {
	*tview.TextView
	theme *Theme
}

// NewLogo creates a new logo component.
func NewLogo(theme *Theme) *Logo {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(1, 0, 1, 0)

	l := &Logo{
		TextView: tv,
		theme:    theme,
	}
	l.render()
	return l
}

var logoArt = []string{
	"╔═╗╔═╗╦═╗╦  ╔═╗╦ ╦",
	"╠═╝╠═╣╠╦╝║  ║╣ ╚╦╝",
	"╩  ╩ ╩╩╚═╩═╝╚═╝ ╩",
}

// LogoWidth is the number of columns the logo needs, padding included.
const LogoWidth = 22

func (l *Logo) render() {
	l.Clear()
	for _, line := range logoArt {
		_, _ = fmt.Fprintf(l, "[%s::b] %s[-:-:-]\n", Tag(l.theme.TitleColor), line)
	}
	_, _ = fmt.Fprintf(l, "[%s] realtime chat[-:-:-]", Tag(l.theme.FgColor))
}
