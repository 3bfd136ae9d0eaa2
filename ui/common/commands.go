package common

import (
	"github.com/graylingsocial/grayling/db"
	"github.com/graylingsocial/grayling/federation"
	"github.com/graylingsocial/grayling/feeds"
	"github.com/graylingsocial/grayling/social"
	"github.com/graylingsocial/grayling/util"
)

type SessionState uint

const (
	ComposeView SessionState = iota
	TimelineView
	FollowUserView
	FollowingView
	CreateUserView
	UpdateTimeline
)

// Deps bundles the engine handles the console panes operate on. The panes
// never reach for globals; everything flows through here.
type Deps struct {
	Conf       *util.AppConfig
	Store      *db.DB
	Resolver   *federation.Resolver
	Graph      *social.Graph
	Service    *feeds.Service
	Aggregator *feeds.Aggregator
}
