package middleware

import (
	"log"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/graylingsocial/grayling/db"
	"github.com/graylingsocial/grayling/util"
)

// AuthMiddleware maps the session's public key to a local person, creating
// one on first connect. The SSH username becomes the handle.
func AuthMiddleware(conf *util.AppConfig) wish.Middleware {
	return func(h ssh.Handler) ssh.Handler {
		return func(s ssh.Session) {
			username := s.User()
			if username == "" {
				username = util.RandomString(10)
			}

			_, err := db.GetDB().EnsurePersonBySession(s, username, conf.Domain())
			if err != nil {
				log.Println("Could not create a user:", err)
				return
			}

			util.LogPublicKey(s)
			h(s)
		}
	}
}
