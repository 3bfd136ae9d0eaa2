package following

import (
	"fmt"
	"log"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/graylingsocial/grayling/domain"
	"github.com/graylingsocial/grayling/ui/common"
)

var (
	itemStyle = lipgloss.NewStyle().
			PaddingLeft(2).
			MarginBottom(0)

	selectedStyle = lipgloss.NewStyle().
			PaddingLeft(2).
			MarginBottom(0).
			Foreground(lipgloss.Color("86")).
			Bold(true)
)

type Model struct {
	deps      *common.Deps
	person    *domain.Person
	Following []domain.Identity
	Selected  int
	Width     int
	Height    int
	Status    string
	Error     string
}

func InitialModel(deps *common.Deps, person *domain.Person, width, height int) Model {
	return Model{
		deps:      deps,
		person:    person,
		Following: []domain.Identity{},
		Width:     width,
		Height:    height,
	}
}

func (m Model) Init() tea.Cmd {
	return loadFollowing(m.deps, m.person)
}

type followingLoadedMsg struct {
	following []domain.Identity
}

type unfollowedMsg struct {
	acct string
	err  error
}

type clearStatusMsg struct{}

func loadFollowing(deps *common.Deps, person *domain.Person) tea.Cmd {
	return func() tea.Msg {
		following, err := deps.Aggregator.Following(person)
		if err != nil {
			log.Printf("Following: failed to load: %v", err)
			return followingLoadedMsg{following: []domain.Identity{}}
		}
		return followingLoadedMsg{following: following}
	}
}

func unfollowCmd(deps *common.Deps, person *domain.Person, identity domain.Identity) tea.Cmd {
	return func() tea.Msg {
		if err := deps.Graph.Unfollow(person, &identity); err != nil {
			return unfollowedMsg{err: err}
		}
		return unfollowedMsg{acct: identity.Acct()}
	}
}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case followingLoadedMsg:
		m.Following = msg.following
		if m.Selected >= len(m.Following) && m.Selected > 0 {
			m.Selected = len(m.Following) - 1
		}
		return m, nil

	case unfollowedMsg:
		if msg.err != nil {
			m.Error = fmt.Sprintf("Failed: %v", msg.err)
		} else {
			m.Status = fmt.Sprintf("Unfollowed %s", msg.acct)
		}
		return m, tea.Batch(loadFollowing(m.deps, m.person), clearStatusAfter(3*time.Second))

	case clearStatusMsg:
		m.Status = ""
		m.Error = ""
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.Selected > 0 {
				m.Selected--
			}
		case "down", "j":
			if m.Selected < len(m.Following)-1 {
				m.Selected++
			}
		case "u", "enter":
			if len(m.Following) > 0 && m.Selected < len(m.Following) {
				return m, unfollowCmd(m.deps, m.person, m.Following[m.Selected])
			}
		case "r":
			return m, loadFollowing(m.deps, m.person)
		}
	}
	return m, nil
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("Following (%d)", len(m.Following))))
	s.WriteString("\n\n")

	if len(m.Following) == 0 {
		s.WriteString(common.EmptyStyle.Render("Not following anyone yet."))
	} else {
		for i, identity := range m.Following {
			line := identity.Acct()
			if i == m.Selected {
				s.WriteString(selectedStyle.Render("> " + line))
			} else {
				s.WriteString(itemStyle.Render(line))
			}
			s.WriteString("\n")
		}
	}

	s.WriteString("\n")
	if m.Status != "" {
		s.WriteString(common.StatusStyle.Render(m.Status))
		s.WriteString("\n")
	}
	if m.Error != "" {
		s.WriteString(common.ErrorStyle.Render(m.Error))
		s.WriteString("\n")
	}

	s.WriteString(common.HelpStyle.Render("↑/↓: select • u: unfollow • r: reload • tab: switch view"))

	return s.String()
}
