package web

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/google/uuid"
	"github.com/graylingsocial/grayling/db"
	"github.com/graylingsocial/grayling/domain"
	"github.com/graylingsocial/grayling/federation"
	"github.com/graylingsocial/grayling/feeds"
	"github.com/graylingsocial/grayling/social"
	"github.com/graylingsocial/grayling/util"
	"golang.org/x/time/rate"
)

// Server binds the engine to HTTP. It never reads ambient session state;
// the acting person always comes from the request path.
type Server struct {
	conf       *util.AppConfig
	store      *db.DB
	resolver   *federation.Resolver
	processor  *federation.Processor
	graph      *social.Graph
	service    *feeds.Service
	aggregator *feeds.Aggregator
}

func NewServer(conf *util.AppConfig, store *db.DB, resolver *federation.Resolver,
	processor *federation.Processor, graph *social.Graph,
	service *feeds.Service, aggregator *feeds.Aggregator) *Server {
	return &Server{
		conf:       conf,
		store:      store,
		resolver:   resolver,
		processor:  processor,
		graph:      graph,
		service:    service,
		aggregator: aggregator,
	}
}

func (s *Server) Router() error {
	log.Printf("Starting federation server on %s:%d", s.conf.Conf.Host, s.conf.Conf.HttpPort)
	g := s.engine()
	return g.Run(fmt.Sprintf(":%d", s.conf.Conf.HttpPort))
}

func (s *Server) engine() *gin.Engine {
	g := gin.Default()
	g.Use(gzip.Gzip(gzip.DefaultCompression))

	// Global rate limiter: 10 requests per second per IP, burst of 20
	globalLimiter := NewRateLimiter(rate.Limit(10), 20)
	g.Use(RateLimitMiddleware(globalLimiter))

	// Stricter limit for inbound federation: 5 req/sec per IP
	salmonLimiter := NewRateLimiter(rate.Limit(5), 10)
	maxBodySize := MaxBytesMiddleware(1 * 1024 * 1024) // 1MB

	g.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{"server": util.GetNameAndVersion(), "domain": s.conf.Domain()})
	})

	g.GET("/.well-known/host-meta", func(c *gin.Context) {
		c.Header("Content-Type", "application/xrd+xml; charset=utf-8")
		c.Render(200, render.String{Format: GetHostMeta(s.conf)})
	})

	g.GET("/.well-known/webfinger", s.handleWebfinger)

	g.GET("/people/:username", s.handleProfile)
	g.PUT("/people/:username", s.handleProfileEdit)
	g.GET("/people/:username/feed", s.handleProjection("feed"))
	g.GET("/people/:username/timeline", s.handleProjection("timeline"))
	g.GET("/people/:username/mentions", s.handleProjection("mentions"))
	g.GET("/people/:username/replies", s.handleProjection("replies"))
	g.GET("/people/:username/favorites", s.handleProjection("favorites"))
	g.GET("/people/:username/shared", s.handleProjection("shared"))

	g.GET("/people/:username/following", s.handleEdges(s.aggregator.Following))
	g.GET("/people/:username/followers", s.handleEdges(s.aggregator.Followers))

	g.POST("/people/:username/salmon", RateLimitMiddleware(salmonLimiter), maxBodySize, s.handleSalmon)

	g.POST("/people/:username/activities", s.handlePost)
	g.POST("/people/:username/following", s.handleFollow)
	g.DELETE("/people/:username/following/:identityId", s.handleUnfollow)
	g.POST("/people/:username/favorites", s.handleMark(domain.VerbFavorite))
	g.POST("/people/:username/shared", s.handleMark(domain.VerbShare))
	g.DELETE("/people/:username/favorites/:activityId", s.handleUnmark(domain.VerbFavorite))
	g.DELETE("/people/:username/shared/:activityId", s.handleUnmark(domain.VerbShare))

	g.GET("/activities/:id", s.handleActivity)

	return g
}

func (s *Server) person(c *gin.Context) *domain.Person {
	person, err := s.store.ReadPersonByUsername(c.Param("username"))
	if err != nil {
		c.JSON(404, gin.H{"error": "Person not found"})
		return nil
	}
	return person
}

func (s *Server) handleWebfinger(c *gin.Context) {
	resource := c.Query("resource")
	if resource == "" {
		c.JSON(404, gin.H{"detail": "Not Found"})
		return
	}

	username, domainName, err := federation.NormalizeIdentifier(resource)
	if err != nil || !strings.EqualFold(domainName, s.conf.Domain()) {
		c.JSON(404, gin.H{"detail": "Not Found"})
		return
	}

	doc, err := GetWebfinger(s.store, username, s.conf)
	if err != nil {
		c.JSON(404, gin.H{"detail": "Not Found"})
		return
	}

	c.Header("Content-Type", "application/jrd+json; charset=utf-8")
	c.JSON(200, doc)
}

// handleSalmon is the ingestion endpoint. The processor's four outcomes map
// onto distinct statuses, with the activity url as Location on accept.
func (s *Server) handleSalmon(c *gin.Context) {
	person := s.person(c)
	if person == nil {
		return
	}

	raw, err := c.GetRawData()
	if err != nil {
		log.Printf("Salmon: failed to read body: %v", err)
		c.Status(400)
		return
	}

	// A transport signature is optional on salmon, but a present one must
	// check out against the sender's key.
	if c.GetHeader("Signature") != "" {
		if err := s.processor.VerifySender(c.Request, raw); err != nil {
			log.Printf("Salmon: %v", err)
			c.Status(http.StatusUnauthorized)
			return
		}
	}

	result := s.processor.Process(raw, person)
	switch result.Outcome {
	case federation.OutcomeCreated:
		c.Header("Location", result.Location)
		c.Status(http.StatusAccepted)
	case federation.OutcomeUpdated:
		c.Header("Location", result.Location)
		c.Status(http.StatusOK)
	case federation.OutcomeRejectedUnverified:
		c.Status(http.StatusForbidden)
	case federation.OutcomeRejectedMalformed:
		c.Status(http.StatusBadRequest)
	}
}

func (s *Server) handleProfile(c *gin.Context) {
	person := s.person(c)
	if person == nil {
		return
	}

	identity, err := s.store.ReadIdentityById(person.IdentityId)
	if err != nil {
		c.JSON(404, gin.H{"error": "Identity not found"})
		return
	}

	c.JSON(200, gin.H{
		"acct":        identity.Acct(),
		"profilePage": identity.ProfilePage,
		"salmon":      identity.SalmonEndpoint,
		"outbox":      identity.OutboxId,
		"createdAt":   identity.CreatedAt,
	})
}

// handleProfileEdit updates endpoint metadata. The payload passes through
// the sanitizer first, so unknown fields and _id never reach the store.
func (s *Server) handleProfileEdit(c *gin.Context) {
	person := s.person(c)
	if person == nil {
		return
	}

	var raw map[string]any
	if err := c.BindJSON(&raw); err != nil {
		c.JSON(400, gin.H{"error": "Invalid payload"})
		return
	}

	identity, err := s.store.ReadIdentityById(person.IdentityId)
	if err != nil {
		c.JSON(404, gin.H{"error": "Identity not found"})
		return
	}

	clean := federation.SanitizeParams(raw)
	for key, value := range clean {
		text, ok := value.(string)
		if !ok {
			continue
		}
		switch key {
		case "salmon_endpoint":
			identity.SalmonEndpoint = text
		case "dialback_endpoint":
			identity.DialbackEndpoint = text
		case "activity_inbox_endpoint":
			identity.ActivityInboxEndpoint = text
		case "profile_page":
			identity.ProfilePage = text
		case "outbox_id":
			identity.OutboxId = text
		case "public_key_pem":
			identity.PublicKeyPem = text
		}
	}

	if err := s.store.UpdateIdentityMeta(identity); err != nil {
		c.JSON(500, gin.H{"error": "Update failed"})
		return
	}
	c.Status(204)
}

// handleProjection renders one of the activity-ordered views as atom.
func (s *Server) handleProjection(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		person := s.person(c)
		if person == nil {
			return
		}

		var activities []domain.Activity
		var err error
		switch name {
		case "feed":
			activities, err = s.store.ReadFeedActivities(person.FeedId)
		case "timeline":
			activities, err = s.aggregator.Timeline(person)
		case "mentions":
			activities, err = s.aggregator.Mentions(person)
		case "replies":
			activities, err = s.aggregator.Replies(person)
		case "favorites":
			activities, err = s.aggregator.Favorites(person)
		case "shared":
			activities, err = s.aggregator.Shared(person)
		}
		if err != nil {
			c.JSON(500, gin.H{"error": "Projection failed"})
			return
		}

		link := fmt.Sprintf("%s/people/%s/%s", s.conf.SiteRoot(), person.Username, name)
		title := fmt.Sprintf("%s - %s", person.Username, name)
		atom, err := renderProjection(s.store, title, link, activities)
		if err != nil {
			c.JSON(500, gin.H{"error": "Rendering failed"})
			return
		}

		c.Header("Content-Type", "application/atom+xml; charset=utf-8")
		c.Render(200, render.String{Format: atom})
	}
}

func (s *Server) handleEdges(read func(*domain.Person) ([]domain.Identity, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		person := s.person(c)
		if person == nil {
			return
		}

		identities, err := read(person)
		if err != nil {
			c.JSON(500, gin.H{"error": "Edge lookup failed"})
			return
		}

		edges := make([]gin.H, 0, len(identities))
		for _, identity := range identities {
			edges = append(edges, gin.H{
				"id":          identity.Id,
				"acct":        identity.Acct(),
				"profilePage": identity.ProfilePage,
			})
		}
		c.JSON(200, edges)
	}
}

func (s *Server) handlePost(c *gin.Context) {
	person := s.person(c)
	if person == nil {
		return
	}

	var body struct {
		Type    string `json:"type"`
		Title   string `json:"title"`
		Content string `json:"content"`
		Target  string `json:"target"`
	}
	if err := c.BindJSON(&body); err != nil || body.Content == "" {
		c.JSON(400, gin.H{"error": "Content required"})
		return
	}

	objectType := body.Type
	if objectType == "" {
		objectType = domain.ObjectNote
	}

	var activity *domain.Activity
	var err error
	if body.Target != "" {
		activity, err = s.service.Reply(person, body.Content, body.Target)
	} else {
		activity, err = s.service.Post(person, objectType, body.Title, body.Content)
	}
	if err != nil {
		c.JSON(500, gin.H{"error": "Post failed"})
		return
	}

	c.Header("Location", activity.Url)
	c.JSON(201, gin.H{"id": activity.Id, "url": activity.Url})
}

func (s *Server) handleFollow(c *gin.Context) {
	person := s.person(c)
	if person == nil {
		return
	}

	var body struct {
		Identifier string `json:"identifier"`
	}
	if err := c.BindJSON(&body); err != nil || body.Identifier == "" {
		c.JSON(400, gin.H{"error": "Identifier required"})
		return
	}

	identity, err := s.resolver.Discover(body.Identifier)
	if err != nil {
		log.Printf("Web: discovery of %s failed: %v", body.Identifier, err)
		c.JSON(422, gin.H{"error": "Could not resolve identifier"})
		return
	}

	if err := s.graph.Follow(person, identity); err != nil {
		c.JSON(500, gin.H{"error": "Follow failed"})
		return
	}

	c.JSON(201, gin.H{"id": identity.Id, "acct": identity.Acct()})
}

func (s *Server) handleUnfollow(c *gin.Context) {
	person := s.person(c)
	if person == nil {
		return
	}

	identityId, err := uuid.Parse(c.Param("identityId"))
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid identity ID"})
		return
	}

	if err := s.graph.UnfollowById(person, identityId); err != nil {
		c.JSON(404, gin.H{"error": "Identity not found"})
		return
	}

	c.Status(204)
}

// handleMark covers the favorite and share actions; share additionally
// reposts into the person's own feed.
func (s *Server) handleMark(verb domain.Verb) gin.HandlerFunc {
	return func(c *gin.Context) {
		person := s.person(c)
		if person == nil {
			return
		}

		var body struct {
			ActivityId string `json:"activityId"`
		}
		if err := c.BindJSON(&body); err != nil {
			c.JSON(400, gin.H{"error": "Activity ID required"})
			return
		}

		activityId, err := uuid.Parse(body.ActivityId)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid activity ID"})
			return
		}

		activity, err := s.store.ReadActivityById(activityId)
		if err != nil {
			c.JSON(404, gin.H{"error": "Activity not found"})
			return
		}

		if verb == domain.VerbShare {
			err = s.graph.Share(person, activity)
		} else {
			err = s.graph.Favorite(person, activity)
		}
		if err != nil {
			c.JSON(500, gin.H{"error": "Mark failed"})
			return
		}

		c.Status(204)
	}
}

// handleUnmark removes the favorite or share edge again.
func (s *Server) handleUnmark(verb domain.Verb) gin.HandlerFunc {
	return func(c *gin.Context) {
		person := s.person(c)
		if person == nil {
			return
		}

		activityId, err := uuid.Parse(c.Param("activityId"))
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid activity ID"})
			return
		}

		activity, err := s.store.ReadActivityById(activityId)
		if err != nil {
			c.JSON(404, gin.H{"error": "Activity not found"})
			return
		}

		if verb == domain.VerbShare {
			err = s.graph.Unshare(person, activity)
		} else {
			err = s.graph.Unfavorite(person, activity)
		}
		if err != nil {
			c.JSON(500, gin.H{"error": "Unmark failed"})
			return
		}

		c.Status(204)
	}
}

func (s *Server) handleActivity(c *gin.Context) {
	activityId, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(404, gin.H{"error": "Invalid activity ID"})
		return
	}

	activity, err := s.store.ReadActivityById(activityId)
	if err != nil {
		c.JSON(404, gin.H{"error": "Activity not found"})
		return
	}

	atom, err := GetActivityAtom(s.store, activity)
	if err != nil {
		c.JSON(500, gin.H{"error": "Rendering failed"})
		return
	}

	c.Header("Content-Type", "application/atom+xml; charset=utf-8")
	c.Render(200, render.String{Format: atom})
}
