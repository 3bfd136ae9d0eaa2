package compose

import (
	"fmt"
	"log"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/graylingsocial/grayling/domain"
	"github.com/graylingsocial/grayling/ui/common"
	"github.com/graylingsocial/grayling/util"
)

const MaxLetters = 300

type Model struct {
	Textarea    textarea.Model
	deps        *common.Deps
	person      *domain.Person
	lettersLeft int
	width       int
	status      string
}

func InitialModel(deps *common.Deps, person *domain.Person, contentWidth int) Model {
	width := common.DefaultComposeWidth(contentWidth)
	ti := textarea.New()
	ti.Placeholder = "what's happening?"
	ti.CharLimit = MaxLetters
	ti.ShowLineNumbers = false
	ti.SetWidth(30)
	ti.Focus()

	return Model{
		Textarea:    ti,
		deps:        deps,
		person:      person,
		lettersLeft: MaxLetters,
		width:       width,
	}
}

// postNoteCmd persists the note through the feed service, which also takes
// care of mention extraction and hub pings.
func postNoteCmd(deps *common.Deps, person *domain.Person, content string) tea.Cmd {
	return func() tea.Msg {
		if _, err := deps.Service.Post(person, domain.ObjectNote, "", content); err != nil {
			log.Printf("Compose: note could not be saved: %v", err)
		}
		return common.UpdateTimeline
	}
}

func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlA:
			if m.Textarea.Focused() {
				m.Textarea.Blur()
			}
		case tea.KeyCtrlS:
			value := util.NormalizeInput(m.Textarea.Value())
			if value == "" {
				return m, nil
			}
			m.Textarea.SetValue("")
			m.status = "posted!"
			return m, postNoteCmd(m.deps, m.person, value)
		case tea.KeyCtrlC:
			return m, tea.Quit
		default:
			if !m.Textarea.Focused() {
				cmd = m.Textarea.Focus()
				cmds = append(cmds, cmd)
			}
			m.status = ""
		}
	}

	m.Textarea, cmd = m.Textarea.Update(msg)
	m.lettersLeft = MaxLetters - len(m.Textarea.Value())
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	counter := lipgloss.NewStyle().
		Foreground(lipgloss.Color(common.COLOR_GREY)).
		Render(fmt.Sprintf("%d letters left", m.lettersLeft))

	view := fmt.Sprintf(
		"%s\n%s\n%s",
		m.Textarea.View(),
		counter,
		common.HelpStyle.Render("ctrl+s: post • tab: switch view • ctrl+c: exit"),
	)

	if m.status != "" {
		view += "\n" + common.StatusStyle.Render(m.status)
	}

	return view
}
