package ui

import (
	"fmt"

	"github.com/rivo/tview"
)

// ProfileData holds what the header shows about the running client.
type ProfileData struct {
	Profile    string
	User       string
	State      string
	Connection string
	Peer       string
	Messages   int
}

// ProfileInfo displays profile and connection metadata in the header.
type ProfileInfo struct {
	*tview.TextView
	theme *Theme
}

// NewProfileInfo creates a new profile info panel.
func NewProfileInfo(theme *Theme) *ProfileInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &ProfileInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the profile info.
func (pi *ProfileInfo) Update(data *ProfileData) {
	pi.Clear()
	if data == nil {
		return
	}

	fgColor := Tag(pi.theme.FgColor)
	counterColor := Tag(pi.theme.CounterColor)

	connColor := Tag(pi.theme.OfflineColor)
	if data.Connection == "connected" {
		connColor = Tag(pi.theme.OnlineColor)
	}

	text := fmt.Sprintf(
		"[%s::b]Profile:[-:-:-] [%s]%s[-]\n"+
			"[%s::b]User:[-:-:-]    [%s]%s[-]\n"+
			"[%s::b]State:[-:-:-]   [%s]%s[-]\n"+
			"[%s::b]Link:[-:-:-]    [%s]%s[-]\n"+
			"[%s::b]Peer:[-:-:-]    [%s]%s[-]\n"+
			"[%s::b]Msgs:[-:-:-]    [%s]%d[-]",
		fgColor, counterColor, data.Profile,
		fgColor, counterColor, orDash(data.User),
		fgColor, counterColor, data.State,
		fgColor, connColor, orDash(data.Connection),
		fgColor, counterColor, orDash(data.Peer),
		fgColor, counterColor, data.Messages,
	)

	_, _ = fmt.Fprint(pi, text)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
