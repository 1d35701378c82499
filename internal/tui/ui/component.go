package ui

import "github.com/rivo/tview"

// HintKind decides how a menu hint is colored.
type HintKind int

const (
	HintView HintKind = iota
	HintJump
	HintGlobal
)

// MenuHint describes a keyboard shortcut for display in the menu bar.
type MenuHint struct {
	Key         string
	Description string
	Kind        HintKind
}

// GlobalHints are the shortcuts every page accepts.
var GlobalHints = []MenuHint{
	{Key: ":", Description: "Command", Kind: HintGlobal},
	{Key: "?", Description: "Help", Kind: HintGlobal},
	{Key: "q", Description: "Quit", Kind: HintGlobal},
}

// Component is a page that can sit on the page stack.
type Component interface {
	tview.Primitive
	Name() string
	Hints() []MenuHint
	// FocusTarget returns the widget that takes focus when the page comes to front.
	FocusTarget() tview.Primitive
}
