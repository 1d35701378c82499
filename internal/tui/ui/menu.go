package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// MenuRows is the number of hint rows that fit in the header.
const MenuRows = 6

// Menu lays out keyboard hints column by column, the page's own hints
// first and GlobalHints last.
type Menu struct {
	*tview.TextView
	theme *Theme
}

// NewMenu creates a new menu hint bar.
func NewMenu(theme *Theme) *Menu {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 2, 0)

	return &Menu{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders hints followed by the global ones.
func (m *Menu) Update(hints []MenuHint) {
	m.Clear()

	all := make([]MenuHint, 0, len(hints)+len(GlobalHints))
	all = append(all, hints...)
	all = append(all, GlobalHints...)

	width := 0
	for _, h := range all {
		width = max(width, len(h.Key)+len(h.Description)+3)
	}
	cols := (len(all) + MenuRows - 1) / MenuRows

	var b strings.Builder
	for r := 0; r < MenuRows; r++ {
		for c := 0; c < cols; c++ {
			i := c*MenuRows + r
			if i >= len(all) {
				continue
			}
			h := all[i]
			fmt.Fprintf(&b, "[%s::b]<%s>[-:-:-] %-*s", m.keyColor(h.Kind), h.Key, width-len(h.Key)-2, h.Description)
		}
		b.WriteString("\n")
	}
	_, _ = fmt.Fprint(m, strings.TrimRight(b.String(), "\n "))
}

func (m *Menu) keyColor(k HintKind) string {
	switch k {
	case HintJump:
		return Tag(m.theme.NumericKeyColor)
	case HintGlobal:
		return Tag(m.theme.FgColor)
	default:
		return Tag(m.theme.MenuKeyColor)
	}
}
