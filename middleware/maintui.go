package middleware

import (
	"log"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	bm "github.com/charmbracelet/wish/bubbletea"
	"github.com/graylingsocial/grayling/ui"
	"github.com/graylingsocial/grayling/ui/common"
	"github.com/muesli/termenv"
)

// MainTui attaches the terminal frontend to authenticated sessions.
func MainTui(deps *common.Deps) wish.Middleware {
	teaHandler := func(s ssh.Session) *tea.Program {
		pty, _, active := s.Pty()
		if !active {
			wish.Println(s, "no active terminal, skipping")
			return nil
		}

		person, err := deps.Store.ReadPersonBySession(s)
		if err != nil {
			log.Println("Could not read the user:", err)
			return nil
		}

		acct := person.Username
		if identity, err := deps.Store.ReadIdentityById(person.IdentityId); err == nil {
			acct = identity.Acct()
		}

		m := ui.NewModel(deps, *person, acct, pty.Window.Width, pty.Window.Height)
		return tea.NewProgram(m, tea.WithInput(s), tea.WithOutput(s), tea.WithAltScreen())
	}
	return bm.MiddlewareWithProgramHandler(teaHandler, termenv.ANSI256)
}
