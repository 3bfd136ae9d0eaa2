package timeline

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
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")).
			MarginBottom(1)

	postStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			MarginBottom(1)

	authorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Bold(true)

	contentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Faint(true)
)

type Post struct {
	Actor   string
	Content string
	Time    time.Time
}

type Model struct {
	Posts  []Post
	deps   *common.Deps
	person *domain.Person
	Width  int
	Height int
}

func InitialModel(deps *common.Deps, person *domain.Person, width, height int) Model {
	return Model{
		Posts:  []Post{},
		deps:   deps,
		person: person,
		Width:  width,
		Height: height,
	}
}

func (m Model) Init() tea.Cmd {
	return loadTimeline(m.deps, m.person)
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case postsLoadedMsg:
		m.Posts = msg.posts
		return m, nil
	case common.SessionState:
		if msg == common.UpdateTimeline {
			return m, loadTimeline(m.deps, m.person)
		}
	}
	return m, nil
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(headerStyle.Render(fmt.Sprintf("Timeline (%d posts)", len(m.Posts))))
	s.WriteString("\n\n")

	if len(m.Posts) == 0 {
		s.WriteString(common.EmptyStyle.Render("Nothing here yet.\nFollow some people or post a note!"))
	} else {
		displayCount := min(len(m.Posts), 5)
		for i := 0; i < displayCount; i++ {
			post := m.Posts[i]

			postContent := fmt.Sprintf("%s\n%s\n%s",
				authorStyle.Render(post.Actor),
				contentStyle.Render(truncate(post.Content, 80)),
				timeStyle.Render(formatTime(post.Time)),
			)

			s.WriteString(postStyle.Render(postContent))
			s.WriteString("\n")
		}

		if len(m.Posts) > 5 {
			s.WriteString(common.EmptyStyle.Render(fmt.Sprintf("... and %d more posts", len(m.Posts)-5)))
			s.WriteString("\n")
		}
	}

	s.WriteString("\n")
	s.WriteString(lipgloss.NewStyle().Faint(true).Render("tab: switch view • ctrl-c: exit"))

	return s.String()
}

type postsLoadedMsg struct {
	posts []Post
}

// loadTimeline reads the aggregated timeline projection and resolves each
// actor to its display acct.
func loadTimeline(deps *common.Deps, person *domain.Person) tea.Cmd {
	return func() tea.Msg {
		activities, err := deps.Aggregator.Timeline(person)
		if err != nil {
			log.Printf("Timeline: failed to load: %v", err)
			return postsLoadedMsg{posts: []Post{}}
		}

		acctCache := make(map[string]string)
		posts := make([]Post, 0, len(activities))
		for _, activity := range activities {
			if activity.Verb != domain.VerbPost {
				continue
			}

			acct, ok := acctCache[activity.ActorId.String()]
			if !ok {
				identity, err := deps.Store.ReadIdentityById(activity.ActorId)
				if err != nil {
					continue
				}
				acct = identity.Acct()
				acctCache[activity.ActorId.String()] = acct
			}

			posts = append(posts, Post{
				Actor:   acct,
				Content: activity.Content,
				Time:    activity.CreatedAt,
			})
		}

		return postsLoadedMsg{posts: posts}
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func formatTime(t time.Time) string {
	elapsed := time.Since(t)
	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		return fmt.Sprintf("%dm ago", int(elapsed.Minutes()))
	case elapsed < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(elapsed.Hours()))
	default:
		return t.Format("2006-01-02 15:04")
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
