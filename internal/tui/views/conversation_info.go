package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/matheus3301/parley/internal/chat"
	"github.com/matheus3301/parley/internal/chatsync"
	"github.com/matheus3301/parley/internal/tui/ui"
)

// ConversationInfo displays detailed information about the active conversation.
type ConversationInfo struct {
	*tview.TextView
	theme *ui.Theme
}

// NewConversationInfo creates a new conversation info view.
func NewConversationInfo(theme *ui.Theme) *ConversationInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Conversation Details ")
	tv.SetTitleColor(theme.TitleColor)

	return &ConversationInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements ui.Component.
func (ci *ConversationInfo) Name() string { return "Details" }

// FocusTarget implements ui.Component.
func (ci *ConversationInfo) FocusTarget() tview.Primitive { return ci }

// Hints implements ui.Component.
func (ci *ConversationInfo) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

// Update renders conversation details for peerName.
func (ci *ConversationInfo) Update(snap chatsync.Snapshot, peerName string) {
	ci.Clear()

	fg := ui.Tag(ci.theme.FgColor)
	ct := ui.Tag(ci.theme.CounterColor)

	var pending, failed int
	for _, m := range snap.Messages {
		switch m.DeliveryState {
		case chat.Pending:
			pending++
		case chat.Failed:
			failed++
		}
	}

	lastErr := "-"
	if snap.Err != nil {
		lastErr = snap.Err.Error()
	}

	rows := []struct {
		label string
		value string
	}{
		{"Peer", orDash(peerName)},
		{"Peer ID", orDash(snap.PeerID)},
		{"Conversation", orDash(snap.ConversationID)},
		{"State", string(snap.State)},
		{"Realtime", orDash(string(snap.Connection))},
		{"Messages", fmt.Sprintf("%d", len(snap.Messages))},
		{"Pending", fmt.Sprintf("%d", pending)},
		{"Failed", fmt.Sprintf("%d", failed)},
		{"Stale history", fmt.Sprintf("%t", snap.Degraded)},
		{"Last error", lastErr},
	}
	_, _ = fmt.Fprintln(ci)
	for _, r := range rows {
		_, _ = fmt.Fprintf(ci, " [%s::b]%-14s[-:-:-] [%s]%s[-]\n", fg, r.label+":", ct, tview.Escape(r.value))
	}
	ci.SetTitle(fmt.Sprintf(" %s Details ", tview.Escape(orDash(peerName))))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
