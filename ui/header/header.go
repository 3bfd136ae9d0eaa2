package header

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/graylingsocial/grayling/domain"
	"github.com/graylingsocial/grayling/ui/common"
	"github.com/graylingsocial/grayling/util"
)

type Model struct {
	Width  int
	Person *domain.Person
	Acct   string
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

func (m Model) View() string {
	// Each styled box carries border and padding overhead of 4 chars; three
	// boxes in the row.
	overhead := 12
	availableWidth := m.Width - overhead

	if availableWidth < 40 {
		availableWidth = 40
	}

	acctWidth := availableWidth / 3
	versionWidth := availableWidth / 3
	createdWidth := availableWidth - acctWidth - versionWidth

	acct := lipgloss.
		NewStyle().
		SetString(m.Acct).
		Align(lipgloss.Left).
		Background(lipgloss.Color(common.COLOR_PURPLE)).
		Padding(1).
		Height(2).
		Width(acctWidth).
		Border(lipgloss.NormalBorder(), true, false, true, false).
		BorderForeground(lipgloss.Color(common.COLOR_MAGENTA)).
		String()

	version := lipgloss.
		NewStyle().
		SetString(util.GetNameAndVersion()).
		Width(versionWidth).
		Height(2).
		Background(lipgloss.Color(common.COLOR_GREY)).
		Padding(1).
		Border(lipgloss.NormalBorder(), true, false, true, false).
		BorderForeground(lipgloss.Color(common.COLOR_MAGENTA)).
		String()

	created := lipgloss.
		NewStyle().
		SetString("registered: "+m.Person.CreatedAt.Format(util.DateTimeFormat())).
		Background(lipgloss.Color(common.COLOR_MAGENTA)).
		Padding(1).
		Align(lipgloss.Left).
		Height(2).
		Width(createdWidth).
		Border(lipgloss.NormalBorder(), true, false, true, false).
		BorderForeground(lipgloss.Color(common.COLOR_MAGENTA)).
		String()

	return lipgloss.JoinHorizontal(
		lipgloss.Left,
		acct,
		version,
		created,
	)
}
