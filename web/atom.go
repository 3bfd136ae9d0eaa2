package web

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/feeds"
	"github.com/graylingsocial/grayling/db"
	"github.com/graylingsocial/grayling/domain"
	"github.com/graylingsocial/grayling/util"
)

// renderProjection serializes one activity projection as an atom feed.
func renderProjection(store *db.DB, title, link string, activities []domain.Activity) (string, error) {
	feed := &feeds.Feed{
		Title:       title,
		Link:        &feeds.Link{Href: link},
		Description: fmt.Sprintf("%s activity feed", util.Name),
		Created:     time.Now(),
	}

	// Actor acct lookups repeat across items of the same author.
	acctCache := make(map[string]string)

	var feedItems []*feeds.Item
	for _, activity := range activities {
		acct, ok := acctCache[activity.ActorId.String()]
		if !ok {
			identity, err := store.ReadIdentityById(activity.ActorId)
			if err != nil {
				log.Printf("Atom: unknown actor %s on %s: %v", activity.ActorId, activity.Url, err)
				continue
			}
			acct = identity.Acct()
			acctCache[activity.ActorId.String()] = acct
		}

		title := activity.Title
		if title == "" {
			title = activity.CreatedAt.Format(util.DateTimeFormat())
		}

		feedItems = append(feedItems,
			&feeds.Item{
				Id:      activity.Url,
				Title:   title,
				Link:    &feeds.Link{Href: activity.Url},
				Content: activity.Content,
				Author:  &feeds.Author{Name: acct, Email: acct},
				Created: activity.CreatedAt,
				Updated: activity.UpdatedAt,
			})
	}

	feed.Items = feedItems
	return feed.ToAtom()
}

// GetActivityAtom renders a single activity as a one-item feed.
func GetActivityAtom(store *db.DB, activity *domain.Activity) (string, error) {
	identity, err := store.ReadIdentityById(activity.ActorId)
	if err != nil {
		log.Println("Could not get activity author!", err)
		return "", errors.New("error retrieving activity author")
	}

	acct := identity.Acct()
	feed := &feeds.Feed{
		Title:       fmt.Sprintf("%s: %s", acct, activity.Verb),
		Link:        &feeds.Link{Href: activity.Url},
		Description: fmt.Sprintf("%s activity", util.Name),
		Author:      &feeds.Author{Name: acct, Email: acct},
		Created:     activity.CreatedAt,
	}

	feed.Items = []*feeds.Item{
		{
			Id:      activity.Url,
			Title:   activity.CreatedAt.Format(util.DateTimeFormat()),
			Link:    &feeds.Link{Href: activity.Url},
			Content: activity.Content,
			Author:  &feeds.Author{Name: acct, Email: acct},
			Created: activity.CreatedAt,
			Updated: activity.UpdatedAt,
		},
	}

	return feed.ToAtom()
}
