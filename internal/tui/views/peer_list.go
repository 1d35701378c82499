package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/parley/internal/chat"
	"github.com/matheus3301/parley/internal/tui/model"
	"github.com/matheus3301/parley/internal/tui/ui"
)

// PeerList is the main view: everyone the user can open a conversation with.
type PeerList struct {
	*tview.Table
	theme   *ui.Theme
	peers   []chat.User
	visible []chat.User
	filter  string
	active  string
}

// NewPeerList creates a new peer list table.
func NewPeerList(theme *ui.Theme) *PeerList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Peers ")
	table.SetTitleColor(theme.TitleColor)

	return &PeerList{
		Table: table,
		theme: theme,
	}
}

// Name implements ui.Component.
func (pl *PeerList) Name() string { return "Peers" }

// FocusTarget implements ui.Component.
func (pl *PeerList) FocusTarget() tview.Primitive { return pl }

// Hints implements ui.Component.
func (pl *PeerList) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Open"},
		{Key: "/", Description: "Filter"},
		{Key: "r", Description: "Reload"},
		{Key: "1-9", Description: "Jump", Kind: ui.HintJump},
	}
}

// Update replaces the peer list.
func (pl *PeerList) Update(peers []chat.User) {
	pl.peers = peers
	pl.render()
}

// SetActive marks the peer whose conversation is open.
func (pl *PeerList) SetActive(peerID string) {
	if pl.active == peerID {
		return
	}
	pl.active = peerID
	pl.render()
}

// SetFilter sets the active filter text and re-renders.
func (pl *PeerList) SetFilter(filter string) {
	pl.filter = filter
	pl.render()
}

// ClearFilter clears the active filter.
func (pl *PeerList) ClearFilter() {
	pl.filter = ""
	pl.render()
}

// Filter returns the active filter text.
func (pl *PeerList) Filter() string { return pl.filter }

func (pl *PeerList) render() {
	pl.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{" #", 0},
		{" USERNAME", 1},
		{" ID", 1},
	}
	for col, h := range headers {
		cell := tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(pl.theme.TableHeaderFg).
			SetBackgroundColor(pl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp)
		pl.SetCell(0, col, cell)
	}

	pl.visible = model.FilterPeers(pl.peers, pl.filter)
	for i, p := range pl.visible {
		row := i + 1
		name := p.Username
		if name == "" {
			name = "-"
		}
		color := pl.theme.FgColor
		if p.ID == pl.active {
			name = "● " + name
			color = pl.theme.PeerColor
		}
		pl.SetCell(row, 0, tview.NewTableCell(fmt.Sprintf(" %d", row)).SetTextColor(pl.theme.NumericKeyColor))
		pl.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(name))).SetExpansion(1).SetTextColor(color))
		pl.SetCell(row, 2, tview.NewTableCell(" "+tview.Escape(p.ID)).SetExpansion(1).SetTextColor(pl.theme.FgColor))
	}

	if pl.filter != "" {
		pl.SetTitle(fmt.Sprintf(" Peers (%d/%d) filter: %s ", len(pl.visible), len(pl.peers), pl.filter))
	} else {
		pl.SetTitle(fmt.Sprintf(" Peers (%d) ", len(pl.peers)))
	}
}

// SelectedPeer returns the peer under the cursor.
func (pl *PeerList) SelectedPeer() (chat.User, bool) {
	row, _ := pl.GetSelection()
	return pl.PeerByIndex(row)
}

// PeerByIndex returns the Nth visible peer (1-based).
func (pl *PeerList) PeerByIndex(n int) (chat.User, bool) {
	if n < 1 || n > len(pl.visible) {
		return chat.User{}, false
	}
	return pl.visible[n-1], true
}
