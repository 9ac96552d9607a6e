package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"crawlwatch/internal/api"
)

// formField is one labelled input
type formField struct {
	label string
	input textinput.Model
}

// FormModel is a small vertical form of text inputs. Tab and shift+tab move
// between fields; the owner decides what enter and esc do.
type FormModel struct {
	Title   string
	fields  []formField
	focus   int
	active  bool
	styles  Styles
	hintTxt string
}

func newInput(placeholder string, limit int) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = limit
	ti.Prompt = ""
	ti.Cursor.SetChar("█")
	ti.Cursor.Blink = false // Disable blinking for SSH compatibility
	return ti
}

// NewFilterForm builds the record filter form
func NewFilterForm(styles Styles) FormModel {
	mk := func(label, placeholder string) formField {
		return formField{label: label, input: newInput(placeholder, 64)}
	}
	return FormModel{
		Title: "Filters",
		fields: []formField{
			mk("Account", "account username"),
			mk("Keyword", "keyword"),
			mk("Status", "e.g. 在线 / 离线 / 忙碌"),
			mk("Guild", "guild name"),
			mk("Min count", "minimum count"),
			mk("Max count", "maximum count"),
		},
		styles:  styles,
		hintTxt: "enter apply  esc close  tab next field",
	}
}

// NewAccountForm builds the add-account form
func NewAccountForm(styles Styles) FormModel {
	user := newInput("username", 64)
	pass := newInput("password", 128)
	pass.EchoMode = textinput.EchoPassword
	pass.EchoCharacter = '*'
	return FormModel{
		Title: "Add account",
		fields: []formField{
			{label: "Username", input: user},
			{label: "Password", input: pass},
		},
		styles:  styles,
		hintTxt: "enter validate & add  esc cancel  tab next field",
	}
}

// Active reports whether the form has keyboard focus
func (f FormModel) Active() bool {
	return f.active
}

// Open gives the form focus, starting at the first field
func (f *FormModel) Open() tea.Cmd {
	f.active = true
	f.focus = 0
	return f.focusField()
}

// Close removes focus without clearing values
func (f *FormModel) Close() {
	f.active = false
	for i := range f.fields {
		f.fields[i].input.Blur()
	}
}

// Reset clears every field
func (f *FormModel) Reset() {
	for i := range f.fields {
		f.fields[i].input.Reset()
	}
}

// Value returns the trimmed value of field i
func (f FormModel) Value(i int) string {
	if i < 0 || i >= len(f.fields) {
		return ""
	}
	return strings.TrimSpace(f.fields[i].input.Value())
}

// SetValue sets field i
func (f *FormModel) SetValue(i int, v string) {
	if i < 0 || i >= len(f.fields) {
		return
	}
	f.fields[i].input.SetValue(v)
}

func (f *FormModel) focusField() tea.Cmd {
	var cmd tea.Cmd
	for i := range f.fields {
		if i == f.focus {
			cmd = f.fields[i].input.Focus()
		} else {
			f.fields[i].input.Blur()
		}
	}
	return cmd
}

// Update routes navigation keys and forwards everything else to the focused
// input
func (f *FormModel) Update(msg tea.Msg) tea.Cmd {
	if !f.active {
		return nil
	}
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "down":
			f.focus = (f.focus + 1) % len(f.fields)
			return f.focusField()
		case "shift+tab", "up":
			f.focus = (f.focus + len(f.fields) - 1) % len(f.fields)
			return f.focusField()
		}
	}
	var cmd tea.Cmd
	f.fields[f.focus].input, cmd = f.fields[f.focus].input.Update(msg)
	return cmd
}

// View renders the form
func (f FormModel) View() string {
	var sb strings.Builder
	sb.WriteString(f.styles.Bold.Render(f.Title))
	sb.WriteString("\n")
	for i, field := range f.fields {
		label := f.styles.FormLabel
		if f.active && i == f.focus {
			label = f.styles.FormFocused
		}
		sb.WriteString(label.Render(field.label))
		sb.WriteString(field.input.View())
		sb.WriteString("\n")
	}
	if f.active {
		sb.WriteString(f.styles.Help.Render(f.hintTxt))
	}
	return f.styles.FormBox.Render(sb.String())
}

// Filters reads the filter form
func (f FormModel) Filters() api.Filters {
	return api.Filters{
		AccountUsername: f.Value(0),
		Keyword:         f.Value(1),
		Status:          f.Value(2),
		Guild:           f.Value(3),
		MinCount:        f.Value(4),
		MaxCount:        f.Value(5),
	}
}

// SetFilters fills the filter form
func (f *FormModel) SetFilters(flt api.Filters) {
	f.SetValue(0, flt.AccountUsername)
	f.SetValue(1, flt.Keyword)
	f.SetValue(2, flt.Status)
	f.SetValue(3, flt.Guild)
	f.SetValue(4, flt.MinCount)
	f.SetValue(5, flt.MaxCount)
}

// Credentials reads the add-account form. The password is not trimmed.
func (f FormModel) Credentials() api.Credentials {
	creds := api.Credentials{Username: f.Value(0)}
	if len(f.fields) > 1 {
		creds.Password = f.fields[1].input.Value()
	}
	return creds
}
