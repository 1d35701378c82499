package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/parley/internal/chat"
	"github.com/matheus3301/parley/internal/chatsync"
	"github.com/matheus3301/parley/internal/status"
	"github.com/matheus3301/parley/internal/tui/ui"
)

// MessageThread displays the active conversation and a composer.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	banner   *tview.TextView
	messages *tview.TextView
	composer *tview.InputField
	peerName string
	onSend   func(text string)
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	banner := tview.NewTextView().
		SetDynamicColors(true)
	banner.SetBackgroundColor(theme.BgColor)

	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(banner, 1, 0, false).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		banner:   banner,
		messages: messages,
		composer: composer,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && mt.onSend != nil {
			text := composer.GetText()
			if strings.TrimSpace(text) != "" {
				mt.onSend(text)
				composer.SetText("")
			}
		}
	})

	return mt
}

// Name implements ui.Component.
func (mt *MessageThread) Name() string {
	if mt.peerName != "" {
		return mt.peerName
	}
	return "Messages"
}

// FocusTarget implements ui.Component.
func (mt *MessageThread) FocusTarget() tview.Primitive { return mt.composer }

// Hints implements ui.Component.
func (mt *MessageThread) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "i", Description: "Compose"},
		{Key: "Ctrl-R", Description: "Resend failed"},
		{Key: "d", Description: "Details"},
		{Key: "Esc", Description: "Back"},
	}
}

// SetPeerName updates the peer name and title.
func (mt *MessageThread) SetPeerName(name string) {
	mt.peerName = name
	mt.messages.SetTitle(fmt.Sprintf(" %s ", tview.Escape(name)))
}

// SetOnSend sets the callback when a message is sent.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// Update renders a synchronizer snapshot. selfID picks which messages are
// the user's own; name maps other sender ids to display names.
func (mt *MessageThread) Update(snap chatsync.Snapshot, selfID string, name func(id string) string) {
	mt.banner.Clear()
	_, _ = fmt.Fprint(mt.banner, Banner(snap, mt.theme))

	mt.messages.Clear()
	for _, m := range snap.Messages {
		_, _ = fmt.Fprint(mt.messages, FormatMessage(m, selfID, name, mt.theme))
	}
	mt.messages.ScrollToEnd()
}

// Banner describes the thread's load and connection state in one line.
func Banner(snap chatsync.Snapshot, theme *ui.Theme) string {
	warn := ui.Tag(theme.FlashWarnColor)
	info := ui.Tag(theme.FlashInfoColor)

	var parts []string
	switch snap.State {
	case status.Resolving:
		parts = append(parts, fmt.Sprintf("[%s]opening conversation…[-]", info))
	case status.Loading:
		parts = append(parts, fmt.Sprintf("[%s]loading history…[-]", info))
	case status.Error:
		parts = append(parts, fmt.Sprintf("[%s]conversation unavailable[-]", ui.Tag(theme.FlashErrColor)))
	}
	if snap.Degraded {
		parts = append(parts, fmt.Sprintf("[%s]history may be out of date[-]", warn))
	}
	if snap.ConversationID != "" && snap.Connection != "" && snap.Connection != "connected" {
		parts = append(parts, fmt.Sprintf("[%s]realtime %s[-]", warn, snap.Connection))
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + strings.Join(parts, " · ")
}

// FormatMessage renders one message with its delivery marker.
func FormatMessage(m chat.Message, selfID string, name func(id string) string, theme *ui.Theme) string {
	sender := name(m.SenderID)
	color := ui.Tag(theme.PeerColor)
	if m.SenderID == selfID {
		sender = "You"
		color = ui.Tag(theme.SelfColor)
	}

	var marker string
	switch m.DeliveryState {
	case chat.Pending:
		marker = fmt.Sprintf(" [%s]sending…[-]", ui.Tag(theme.PendingColor))
	case chat.Failed:
		marker = fmt.Sprintf(" [%s::b]failed, Ctrl-R to resend[-:-:-]", ui.Tag(theme.FailedColor))
	}

	return fmt.Sprintf("[%s::b]%s[-:-:-] [::d]%s[-:-:-]%s\n%s\n\n",
		color, tview.Escape(sanitizeForTerminal(sender)),
		formatTimestamp(m.CreatedAt), marker,
		tview.Escape(sanitizeForTerminal(m.Content)))
}

// Messages returns the messages text view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer input field (for focus management).
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.Local()
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02 15:04")
}
