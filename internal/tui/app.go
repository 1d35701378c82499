package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/matheus3301/parley/internal/apperr"
	"github.com/matheus3301/parley/internal/auth"
	"github.com/matheus3301/parley/internal/bus"
	"github.com/matheus3301/parley/internal/chat"
	"github.com/matheus3301/parley/internal/chatsync"
	"github.com/matheus3301/parley/internal/resolver"
	"github.com/matheus3301/parley/internal/tui/keys"
	"github.com/matheus3301/parley/internal/tui/model"
	"github.com/matheus3301/parley/internal/tui/ui"
	"github.com/matheus3301/parley/internal/tui/views"
)

const (
	pagePeers   = "peers"
	pageThread  = "thread"
	pageDetails = "details"
	pageHelp    = "help"
	pageLogin   = "login"
)

// Core is the synchronizer surface the TUI drives.
type Core interface {
	SelectConversation(ctx context.Context, peerID string) error
	Send(ctx context.Context, text string) (chat.Message, error)
	Resend(ctx context.Context, localID string) (chat.Message, error)
	Snapshot() chatsync.Snapshot
}

// Sessions stores and revokes the signed-in session.
type Sessions interface {
	Session() (chat.Session, bool)
	Set(s chat.Session) error
	Invalidate(reason string)
}

// Realtime reopens the realtime channel on demand.
type Realtime interface {
	Connect(ctx context.Context) error
}

// Deps are the collaborators the TUI is built from.
type Deps struct {
	Profile   string
	Core      Core
	Directory model.Directory
	Sessions  Sessions
	Realtime  Realtime
	Bus       *bus.Bus
	Logger    *zap.Logger
}

// App is the main TUI application shell.
type App struct {
	deps Deps

	app      *tview.Application
	theme    *ui.Theme
	pages    *ui.Pages
	vm       *model.ViewModel
	registry *keys.Registry
	flash    *ui.FlashModel

	info     *ui.ProfileInfo
	menu     *ui.Menu
	crumbs   *ui.Crumbs
	flashBar *ui.FlashBar
	prompt   *ui.Prompt
	body     *tview.Flex

	peers   *views.PeerList
	thread  *views.MessageThread
	details *views.ConversationInfo
	help    *views.HelpView
	login   *views.LoginView

	promptOpen bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(d Deps) *App {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		deps:     d,
		app:      tview.NewApplication(),
		theme:    theme,
		pages:    ui.NewPages(),
		vm:       model.NewViewModel(d.Directory),
		registry: keys.NewRegistry(),
		flash:    ui.NewFlashModel(),
		info:     ui.NewProfileInfo(theme),
		menu:     ui.NewMenu(theme),
		crumbs:   ui.NewCrumbs(theme),
		flashBar: ui.NewFlashBar(theme),
		prompt:   ui.NewPrompt(theme),
		peers:    views.NewPeerList(theme),
		thread:   views.NewMessageThread(theme),
		details:  views.NewConversationInfo(theme),
		help:     views.NewHelpView(theme),
		login:    views.NewLoginView(theme),
		ctx:      ctx,
		cancel:   cancel,
	}
	a.crumbs.SetProfile(d.Profile)
	if sess, ok := d.Sessions.Session(); ok {
		a.vm.SetSelf(sess.UserID)
	}

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(&keys.Action{Name: "quit", Key: tcell.KeyRune, Rune: 'q', Handler: a.Stop})
	a.registry.AddGlobal(&keys.Action{Name: "help", Key: tcell.KeyRune, Rune: '?', Handler: func() { a.push(pageHelp) }})
	a.registry.AddGlobal(&keys.Action{Name: "command", Key: tcell.KeyRune, Rune: ':', Handler: func() { a.openPrompt(ui.PromptCommand) }})

	a.registry.AddView(pagePeers, &keys.Action{Name: "filter", Key: tcell.KeyRune, Rune: '/', Handler: func() { a.openPrompt(ui.PromptFilter) }})
	a.registry.AddView(pagePeers, &keys.Action{Name: "reload", Key: tcell.KeyRune, Rune: 'r', Handler: a.reloadPeers})
	a.registry.AddView(pagePeers, &keys.Action{Name: "clear-filter", Key: tcell.KeyRune, Rune: '0', Handler: a.peers.ClearFilter})
	for n := 1; n <= 9; n++ {
		a.registry.AddView(pagePeers, &keys.Action{
			Name: fmt.Sprintf("jump-%d", n), Key: tcell.KeyRune, Rune: rune('0' + n),
			Handler: func() {
				if p, ok := a.peers.PeerByIndex(n); ok {
					a.openPeer(p)
				}
			},
		})
	}

	a.registry.AddView(pageThread, &keys.Action{Name: "compose", Key: tcell.KeyRune, Rune: 'i', Handler: func() { a.app.SetFocus(a.thread.Composer()) }})
	a.registry.AddView(pageThread, &keys.Action{Name: "details", Key: tcell.KeyRune, Rune: 'd', Handler: func() { a.push(pageDetails) }})
	a.registry.AddView(pageThread, &keys.Action{Name: "resend", Key: tcell.KeyCtrlR, Handler: a.resendLast})
}

func (a *App) setupCallbacks() {
	a.peers.SetSelectedFunc(func(row, _ int) {
		if p, ok := a.peers.PeerByIndex(row); ok {
			a.openPeer(p)
		}
	})

	a.thread.SetOnSend(func(text string) {
		go func() {
			_, err := a.deps.Core.Send(a.ctx, text)
			a.handleActionError(err)
		}()
	})

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.closePrompt()
		switch mode {
		case ui.PromptCommand:
			a.execCommand(ParseCommand(text))
		case ui.PromptFilter:
			a.peers.SetFilter(text)
		}
	})
	a.prompt.SetOnCancel(a.closePrompt)

	a.login.SetOnSubmit(a.signIn)
	a.login.SetOnCancel(func() { a.pop() })

	a.pages.SetOnChange(func(stack []ui.Component) {
		names := make([]string, len(stack))
		for i, c := range stack {
			names[i] = c.Name()
		}
		a.crumbs.Update(names)
		a.menu.Update(stack[len(stack)-1].Hints())
	})
}

func (a *App) setupLayout() {
	a.pages.Add(pagePeers, a.peers)
	a.pages.Add(pageThread, a.thread)
	a.pages.Add(pageDetails, a.details)
	a.pages.Add(pageHelp, a.help)
	a.pages.Add(pageLogin, a.login)

	header := tview.NewFlex().
		AddItem(a.info, 0, 2, false).
		AddItem(a.menu, 0, 2, false).
		AddItem(ui.NewLogo(a.theme), ui.LogoWidth, 0, false)

	a.body = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, ui.MenuRows+1, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flashBar, 1, 0, false)

	a.app.SetRoot(a.body, true)
	a.app.SetInputCapture(a.captureInput)
}

func (a *App) captureInput(event *tcell.EventKey) *tcell.EventKey {
	current := a.pages.Current()

	if event.Key() == tcell.KeyEscape {
		if a.promptOpen {
			return event
		}
		if a.app.GetFocus() == a.thread.Composer() {
			a.app.SetFocus(a.thread.Messages())
			return nil
		}
		if current == pagePeers && a.peers.Filter() != "" {
			a.peers.ClearFilter()
			return nil
		}
		if a.pages.Depth() > 1 {
			a.pop()
			return nil
		}
		return event
	}

	// Let text input widgets handle all keys normally.
	switch a.app.GetFocus().(type) {
	case *tview.InputField, *tview.Button:
		return event
	}

	if a.registry.HandleEvent(current, event) {
		return nil
	}
	return event
}

func (a *App) push(page string) {
	if page == pageDetails {
		a.renderDetails()
	}
	if a.pages.Push(page) {
		a.focusCurrent()
	}
}

func (a *App) pop() {
	if a.pages.Pop() != "" {
		a.focusCurrent()
	}
}

func (a *App) focusCurrent() {
	if c := a.pages.Top(); c != nil {
		a.app.SetFocus(c.FocusTarget())
	}
}

func (a *App) openPrompt(mode ui.PromptMode) {
	a.prompt.Activate(mode)
	if !a.promptOpen {
		a.body.AddItem(a.prompt, 3, 0, false)
		a.promptOpen = true
	}
	a.app.SetFocus(a.prompt)
}

func (a *App) closePrompt() {
	if a.promptOpen {
		a.body.RemoveItem(a.prompt)
		a.promptOpen = false
	}
	a.focusCurrent()
}

func (a *App) execCommand(cmd Command) {
	switch cmd.Canonical() {
	case CmdPeer:
		p, ok := a.vm.FindPeer(cmd.Args)
		if !ok {
			a.flash.Warn(fmt.Sprintf("no unique peer matches %q", cmd.Args))
			return
		}
		a.openPeer(p)
	case CmdPeers:
		a.reloadPeers()
	case CmdResend:
		a.resendLast()
	case CmdLogin:
		a.showLogin("")
	case CmdLogout:
		a.deps.Sessions.Invalidate("signed out")
	case CmdReconnect:
		go func() {
			if err := a.deps.Realtime.Connect(a.ctx); err != nil {
				a.flash.Err(err)
				return
			}
			a.flash.Info("realtime reconnected")
		}()
	case CmdDetails:
		a.push(pageDetails)
	case CmdHelp:
		a.push(pageHelp)
	case CmdQuit:
		a.Stop()
	case "":
	default:
		a.flash.Warn(fmt.Sprintf("unknown command %q", cmd.Name))
	}
}

func (a *App) openPeer(p chat.User) {
	a.thread.SetPeerName(a.vm.PeerName(p.ID))
	a.peers.SetActive(p.ID)
	if a.pages.Current() != pageThread {
		a.pages.Reset(pagePeers)
		a.push(pageThread)
	}
	go func() {
		a.handleActionError(a.deps.Core.SelectConversation(a.ctx, p.ID))
	}()
}

func (a *App) resendLast() {
	id, ok := a.vm.LastFailed()
	if !ok {
		a.flash.Info("nothing to resend")
		return
	}
	go func() {
		_, err := a.deps.Core.Resend(a.ctx, id)
		a.handleActionError(err)
	}()
}

func (a *App) reloadPeers() {
	go func() {
		if err := a.vm.LoadPeers(a.ctx); err != nil {
			a.handleActionError(err)
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.peers.Update(a.vm.Peers())
			a.refreshHeader()
		})
	}()
}

func (a *App) showLogin(msg string) {
	a.login.Reset()
	if msg == "" {
		msg = "Paste a bearer token to sign in."
	}
	a.login.ShowMessage(msg)
	a.push(pageLogin)
}

func (a *App) signIn(token, userID string) {
	sess, err := auth.SessionFromToken(token, userID)
	if err != nil {
		a.login.ShowMessage(err.Error())
		return
	}
	if err := a.deps.Sessions.Set(sess); err != nil {
		a.login.ShowMessage("could not store session: " + err.Error())
		return
	}
	a.vm.SetSelf(sess.UserID)
	a.flash.Info("signed in as " + sess.UserID)
	a.pages.Reset(pagePeers)
	a.focusCurrent()
	a.reloadPeers()
}

// handleActionError reports errors the synchronizer does not already publish
// on the bus. Called from worker goroutines.
func (a *App) handleActionError(err error) {
	switch {
	case err == nil,
		errors.Is(err, resolver.ErrStale),
		errors.Is(err, context.Canceled),
		errors.Is(err, chatsync.ErrStopped):
		return
	case apperr.Is(err, apperr.CodeAuthRequired):
		a.app.QueueUpdateDraw(func() { a.showLogin("Sign in to continue.") })
	case apperr.Is(err, apperr.CodeSendFailed),
		apperr.Is(err, apperr.CodeConversationResolutionFailed):
		// Already reported through chat.error.
	default:
		a.deps.Logger.Warn("tui action failed", zap.Error(err))
		a.flash.Err(err)
	}
}

// watch forwards bus events and flash messages to the screen.
func (a *App) watch() {
	events, unsub := a.deps.Bus.Subscribe("", 64)
	defer unsub()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	dropped := a.deps.Bus.Dropped()

	for {
		select {
		case evt := <-events:
			a.handleEvent(evt)
		case msg := <-a.flash.Watch():
			m := msg
			a.app.QueueUpdateDraw(func() { a.flashBar.Update(&m) })
		case <-ticker.C:
			// A dropped chat.updated would leave the screen stale.
			if d := a.deps.Bus.Dropped(); d != dropped {
				dropped = d
				a.vm.SetSnapshot(a.deps.Core.Snapshot())
				a.app.QueueUpdateDraw(a.renderSnapshot)
			}
			a.app.QueueUpdateDraw(func() { a.flashBar.Update(a.flash.Current()) })
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.KindChatUpdated:
		snap, ok := evt.Payload.(chatsync.Snapshot)
		if !ok {
			return
		}
		a.vm.SetSnapshot(snap)
		a.app.QueueUpdateDraw(a.renderSnapshot)
	case bus.KindChatError:
		if err, ok := evt.Payload.(error); ok {
			a.flash.Err(err)
		}
	case bus.KindAuthInvalidated:
		reason := "session ended"
		if inv, ok := evt.Payload.(auth.Invalidation); ok && inv.Reason != "" {
			reason = inv.Reason
		}
		a.vm.SetSelf("")
		a.app.QueueUpdateDraw(func() {
			a.refreshHeader()
			a.showLogin("Signed out: " + reason)
		})
	}
}

func (a *App) renderSnapshot() {
	snap := a.vm.Snapshot()
	a.thread.Update(snap, a.vm.Self(), a.vm.PeerName)
	if a.pages.Current() == pageDetails {
		a.renderDetails()
	}
	a.peers.SetActive(snap.PeerID)
	a.refreshHeader()
}

func (a *App) renderDetails() {
	snap := a.vm.Snapshot()
	a.details.Update(snap, a.vm.PeerName(snap.PeerID))
}

func (a *App) refreshHeader() {
	snap := a.vm.Snapshot()
	peer := ""
	if snap.PeerID != "" {
		peer = a.vm.PeerName(snap.PeerID)
	}
	a.info.Update(&ui.ProfileData{
		Profile:    a.deps.Profile,
		User:       a.vm.Self(),
		State:      string(snap.State),
		Connection: string(snap.Connection),
		Peer:       peer,
		Messages:   len(snap.Messages),
	})
}

// Run starts the TUI application and blocks until it exits.
func (a *App) Run() error {
	a.vm.SetSnapshot(a.deps.Core.Snapshot())
	a.pages.Reset(pagePeers)
	a.renderSnapshot()

	if _, ok := a.deps.Sessions.Session(); ok {
		a.reloadPeers()
	} else {
		a.showLogin("")
	}
	if snap := a.vm.Snapshot(); snap.PeerID != "" {
		a.thread.SetPeerName(a.vm.PeerName(snap.PeerID))
		a.push(pageThread)
	}

	go a.watch()
	return a.app.Run()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
