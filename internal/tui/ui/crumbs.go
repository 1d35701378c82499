package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// maxCrumbs is how many trailing crumbs stay visible before the middle of
// the trail collapses.
const maxCrumbs = 3

// Crumbs is a breadcrumb bar: the profile, then the page stack.
type Crumbs struct {
	*tview.TextView
	theme   *Theme
	profile string
}

// NewCrumbs creates a new breadcrumb bar.
func NewCrumbs(theme *Theme) *Crumbs {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)

	return &Crumbs{
		TextView: tv,
		theme:    theme,
	}
}

// SetProfile sets the root crumb.
func (c *Crumbs) SetProfile(name string) {
	c.profile = name
}

// Update renders the trail for the given page names, bottom first.
func (c *Crumbs) Update(names []string) {
	c.Clear()

	var parts []string
	if c.profile != "" {
		parts = append(parts, fmt.Sprintf("[%s::d]@%s[-:-:-]", Tag(c.theme.FgColor), tview.Escape(c.profile)))
	}
	if len(names) > maxCrumbs {
		parts = append(parts, c.crumb("…", false))
		names = names[len(names)-maxCrumbs:]
	}
	for i, name := range names {
		parts = append(parts, c.crumb(tview.Escape(name), i == len(names)-1))
	}
	_, _ = fmt.Fprint(c, strings.Join(parts, " > "))
}

func (c *Crumbs) crumb(text string, active bool) string {
	if active {
		return fmt.Sprintf("[%s:%s:b] %s [-:-:-]", Tag(c.theme.CrumbActiveFg), Tag(c.theme.CrumbActiveBg), text)
	}
	return fmt.Sprintf("[%s:%s:] %s [-:-:-]", Tag(c.theme.CrumbInactiveFg), Tag(c.theme.CrumbInactiveBg), text)
}
