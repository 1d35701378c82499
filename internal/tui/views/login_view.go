package views

import (
	"strings"

	"github.com/rivo/tview"

	"github.com/matheus3301/parley/internal/tui/ui"
)

// LoginView asks for a bearer token and, optionally, the user id it belongs
// to when the token does not carry one.
type LoginView struct {
	*tview.Flex
	theme    *ui.Theme
	form     *tview.Form
	notice   *tview.TextView
	onSubmit func(token, userID string)
	onCancel func()
}

// NewLoginView creates a new login view.
func NewLoginView(theme *ui.Theme) *LoginView {
	notice := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	notice.SetBackgroundColor(theme.BgColor)

	form := tview.NewForm()
	form.SetBackgroundColor(theme.BgColor)
	form.SetFieldBackgroundColor(theme.BgColor)
	form.SetFieldTextColor(theme.FgColor)
	form.SetLabelColor(theme.MenuKeyColor)
	form.SetButtonBackgroundColor(theme.TableCursorBg)
	form.SetButtonTextColor(theme.TableCursorFg)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(notice, 3, 0, false).
		AddItem(form, 0, 1, true)
	flex.SetBorder(true)
	flex.SetBorderColor(theme.BorderColor)
	flex.SetBackgroundColor(theme.BgColor)
	flex.SetTitle(" Sign In ")
	flex.SetTitleColor(theme.TitleColor)

	lv := &LoginView{
		Flex:   flex,
		theme:  theme,
		form:   form,
		notice: notice,
	}

	form.AddPasswordField("Token", "", 0, '*', nil)
	form.AddInputField("User ID (optional)", "", 0, nil, nil)
	form.AddButton("Sign in", lv.submit)
	form.AddButton("Cancel", func() {
		if lv.onCancel != nil {
			lv.onCancel()
		}
	})

	return lv
}

// Name implements ui.Component.
func (lv *LoginView) Name() string { return "Sign In" }

// FocusTarget implements ui.Component.
func (lv *LoginView) FocusTarget() tview.Primitive { return lv.form }

// Hints implements ui.Component.
func (lv *LoginView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Tab", Description: "Next field"},
		{Key: "Enter", Description: "Submit"},
		{Key: "Esc", Description: "Back"},
	}
}

// SetOnSubmit sets the callback for submitted credentials.
func (lv *LoginView) SetOnSubmit(fn func(token, userID string)) {
	lv.onSubmit = fn
}

// SetOnCancel sets the callback for the cancel button.
func (lv *LoginView) SetOnCancel(fn func()) {
	lv.onCancel = fn
}

// ShowMessage displays a status line above the form.
func (lv *LoginView) ShowMessage(msg string) {
	lv.notice.Clear()
	_, _ = lv.notice.Write([]byte("\n" + tview.Escape(msg)))
}

// Reset clears the form fields.
func (lv *LoginView) Reset() {
	lv.field(0).SetText("")
	lv.field(1).SetText("")
	lv.form.SetFocus(0)
}

func (lv *LoginView) field(i int) *tview.InputField {
	return lv.form.GetFormItem(i).(*tview.InputField)
}

func (lv *LoginView) submit() {
	token := strings.TrimSpace(lv.field(0).GetText())
	userID := strings.TrimSpace(lv.field(1).GetText())
	if token == "" {
		lv.ShowMessage("A token is required.")
		return
	}
	if lv.onSubmit != nil {
		lv.onSubmit(token, userID)
	}
}
