package followuser

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/graylingsocial/grayling/domain"
	"github.com/graylingsocial/grayling/ui/common"
)

var (
	Style = lipgloss.NewStyle().
		Padding(1, 2).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63"))
)

type Model struct {
	TextInput textinput.Model
	deps      *common.Deps
	person    *domain.Person
	Status    string
	Error     string
}

func InitialModel(deps *common.Deps, person *domain.Person) Model {
	ti := textinput.New()
	ti.Placeholder = "user@rstat.us"
	ti.Focus()
	ti.CharLimit = 100
	ti.Width = 50

	return Model{
		TextInput: ti,
		deps:      deps,
		person:    person,
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

type followResultMsg struct {
	acct string
	err  error
}

// followCmd resolves the identifier (discovering it remotely when unknown)
// and adds the follow edge.
func followCmd(deps *common.Deps, person *domain.Person, identifier string) tea.Cmd {
	return func() tea.Msg {
		identity, err := deps.Resolver.Discover(identifier)
		if err != nil {
			return followResultMsg{err: err}
		}
		if err := deps.Graph.Follow(person, identity); err != nil {
			return followResultMsg{err: err}
		}
		return followResultMsg{acct: identity.Acct()}
	}
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case followResultMsg:
		if msg.err != nil {
			m.Error = fmt.Sprintf("Failed: %v", msg.err)
			m.Status = ""
		} else {
			m.Status = fmt.Sprintf("✓ Now following %s", msg.acct)
			m.Error = ""
			m.TextInput.SetValue("")
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			input := strings.TrimSpace(m.TextInput.Value())
			if input == "" {
				m.Error = "Please enter a user@domain"
				return m, nil
			}

			m.Status = fmt.Sprintf("Resolving %s...", input)
			m.Error = ""
			return m, followCmd(m.deps, m.person, input)
		case "esc":
			m.TextInput.SetValue("")
			m.Status = ""
			m.Error = ""
			return m, nil
		}
	}

	m.TextInput, cmd = m.TextInput.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString("Follow someone\n\n")
	s.WriteString(m.TextInput.View())
	s.WriteString("\n\n")

	if m.Status != "" {
		s.WriteString(common.StatusStyle.Render(m.Status))
		s.WriteString("\n")
	}
	if m.Error != "" {
		s.WriteString(common.ErrorStyle.Render(m.Error))
		s.WriteString("\n")
	}

	s.WriteString(common.HelpStyle.Render("enter: follow • esc: clear • tab: switch view"))

	return Style.Render(s.String())
}
