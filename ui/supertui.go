package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/graylingsocial/grayling/domain"
	"github.com/graylingsocial/grayling/ui/common"
	"github.com/graylingsocial/grayling/ui/compose"
	"github.com/graylingsocial/grayling/ui/followuser"
	"github.com/graylingsocial/grayling/ui/following"
	"github.com/graylingsocial/grayling/ui/header"
	"github.com/graylingsocial/grayling/ui/timeline"
)

var (
	modelStyle = lipgloss.NewStyle().
			Align(lipgloss.Top, lipgloss.Top).
			BorderStyle(lipgloss.HiddenBorder()).MarginLeft(1)
	focusedModelStyle = lipgloss.NewStyle().
				Align(lipgloss.Top, lipgloss.Top).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(lipgloss.Color(common.COLOR_LIGHTBLUE)).MarginLeft(1)
)

type MainModel struct {
	width          int
	height         int
	person         domain.Person
	state          common.SessionState
	headerModel    header.Model
	composeModel   compose.Model
	timelineModel  timeline.Model
	followModel    followuser.Model
	followingModel following.Model
}

func NewModel(deps *common.Deps, person domain.Person, acct string, width, height int) MainModel {
	width = common.DefaultWindowWidth(width)
	height = common.DefaultWindowHeight(height)

	m := MainModel{state: common.ComposeView}
	m.person = person
	m.headerModel = header.Model{Width: width, Person: &person, Acct: acct}
	m.composeModel = compose.InitialModel(deps, &m.person, width)
	m.timelineModel = timeline.InitialModel(deps, &m.person, width, height)
	m.followModel = followuser.InitialModel(deps, &m.person)
	m.followingModel = following.InitialModel(deps, &m.person, width, height)
	m.width = width
	m.height = height
	return m
}

func (m MainModel) Init() tea.Cmd {
	return tea.Batch(
		m.composeModel.Init(),
		m.timelineModel.Init(),
		m.followingModel.Init(),
	)
}

func (m MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.headerModel.Width = msg.Width
		return m, nil

	case common.SessionState:
		switch msg {
		case common.ComposeView, common.TimelineView, common.FollowUserView, common.FollowingView:
			m.state = msg
		case common.UpdateTimeline:
			m.timelineModel, cmd = m.timelineModel.Update(msg)
			return m, cmd
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "tab":
			switch m.state {
			case common.ComposeView:
				m.state = common.TimelineView
			case common.TimelineView:
				m.state = common.FollowUserView
			case common.FollowUserView:
				m.state = common.FollowingView
			case common.FollowingView:
				m.state = common.ComposeView
			}
			cmds = append(cmds, m.viewInitCmd())
		case "shift+tab":
			switch m.state {
			case common.ComposeView:
				m.state = common.FollowingView
			case common.TimelineView:
				m.state = common.ComposeView
			case common.FollowUserView:
				m.state = common.TimelineView
			case common.FollowingView:
				m.state = common.FollowUserView
			}
			cmds = append(cmds, m.viewInitCmd())
		}
	}

	// Non-keyboard messages reach every pane so data loads land where they
	// belong; key strokes go only to the focused pane.
	if _, isKeyMsg := msg.(tea.KeyMsg); !isKeyMsg {
		m.headerModel, _ = m.headerModel.Update(msg)
		m.timelineModel, cmd = m.timelineModel.Update(msg)
		cmds = append(cmds, cmd)
		m.followModel, cmd = m.followModel.Update(msg)
		cmds = append(cmds, cmd)
		m.followingModel, cmd = m.followingModel.Update(msg)
		cmds = append(cmds, cmd)
	} else {
		switch m.state {
		case common.ComposeView:
			m.composeModel, cmd = m.composeModel.Update(msg)
		case common.TimelineView:
			m.timelineModel, cmd = m.timelineModel.Update(msg)
		case common.FollowUserView:
			m.followModel, cmd = m.followModel.Update(msg)
		case common.FollowingView:
			m.followingModel, cmd = m.followingModel.Update(msg)
		}
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// viewInitCmd reloads the data behind the freshly focused pane.
func (m *MainModel) viewInitCmd() tea.Cmd {
	switch m.state {
	case common.TimelineView:
		return m.timelineModel.Init()
	case common.FollowingView:
		return m.followingModel.Init()
	}
	return nil
}

func (m MainModel) View() string {
	availableHeight := m.height - 10
	leftPanelWidth := m.width / 3
	rightPanelWidth := m.width - leftPanelWidth - 6

	var rightView string
	switch m.state {
	case common.TimelineView:
		rightView = m.timelineModel.View()
	case common.FollowUserView:
		rightView = m.followModel.View()
	case common.FollowingView:
		rightView = m.followingModel.View()
	default:
		rightView = m.timelineModel.View()
	}

	leftStyle := modelStyle
	rightStyle := focusedModelStyle
	if m.state == common.ComposeView {
		leftStyle = focusedModelStyle
		rightStyle = modelStyle
	}

	left := leftStyle.Render(lipgloss.NewStyle().
		MaxHeight(availableHeight).
		Height(availableHeight).
		Width(leftPanelWidth).
		MaxWidth(leftPanelWidth).
		Render(m.composeModel.View()))

	right := rightStyle.Render(lipgloss.NewStyle().
		MaxHeight(availableHeight).
		Height(availableHeight).
		Width(rightPanelWidth).
		MaxWidth(rightPanelWidth).
		Margin(1).
		Render(rightView))

	return lipgloss.JoinVertical(
		lipgloss.Top,
		m.headerModel.View(),
		lipgloss.JoinHorizontal(lipgloss.Top, left, right),
	)
}
