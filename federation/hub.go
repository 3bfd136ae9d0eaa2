package federation

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/graylingsocial/grayling/db"
)

// HubPinger queues best-effort "this feed changed" notifications to
// subscription hubs. Pings are fire-and-forget from the caller's view; the
// queue worker retries with backoff and eventually gives up.
type HubPinger struct {
	store *db.DB
}

func NewHubPinger(store *db.DB) *HubPinger {
	return &HubPinger{store: store}
}

// Notify enqueues one ping. Failures are logged, never surfaced; pings are
// not on the consistency-critical path.
func (h *HubPinger) Notify(hubUrl, feedUrl string) {
	ping := &db.HubPing{
		Id:          uuid.New(),
		HubUrl:      hubUrl,
		FeedUrl:     feedUrl,
		NextRetryAt: time.Now(),
		CreatedAt:   time.Now(),
	}
	if err := h.store.EnqueueHubPing(ping); err != nil {
		log.Printf("HubPinger: failed to enqueue ping to %s: %v", hubUrl, err)
	}
}

// StartWorker starts the background worker that drains the ping queue.
func (h *HubPinger) StartWorker() {
	log.Println("Starting hub ping worker...")

	ticker := time.NewTicker(10 * time.Second)
	go func() {
		for range ticker.C {
			h.processQueue()
		}
	}()
}

func (h *HubPinger) processQueue() {
	pings, err := h.store.ReadPendingHubPings(50)
	if err != nil {
		log.Printf("HubPinger: Failed to read queue: %v", err)
		return
	}

	if len(pings) == 0 {
		return
	}

	log.Printf("HubPinger: Processing %d pending pings", len(pings))

	for _, ping := range pings {
		if err := sendPing(&ping); err != nil {
			ping.Attempts++
			backoffMinutes := []int{1, 5, 15, 60, 240, 1440}[min(ping.Attempts-1, 5)]
			ping.NextRetryAt = time.Now().Add(time.Duration(backoffMinutes) * time.Minute)

			if ping.Attempts >= 10 {
				// Give up after 10 attempts
				log.Printf("HubPinger: Giving up on ping to %s after %d attempts", ping.HubUrl, ping.Attempts)
				h.store.DeleteHubPing(ping.Id)
			} else {
				log.Printf("HubPinger: Ping to %s failed (attempt %d), retry in %dm: %v",
					ping.HubUrl, ping.Attempts, backoffMinutes, err)
				h.store.UpdateHubPingAttempt(ping.Id, ping.Attempts, ping.NextRetryAt)
			}
		} else {
			log.Printf("HubPinger: Successfully pinged %s for %s", ping.HubUrl, ping.FeedUrl)
			h.store.DeleteHubPing(ping.Id)
		}
	}
}

// sendPing performs one PubSubHubbub publish request.
func sendPing(ping *db.HubPing) error {
	form := url.Values{}
	form.Set("hub.mode", "publish")
	form.Set("hub.url", ping.FeedUrl)

	req, err := http.NewRequest("POST", ping.HubUrl, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("hub returned status: %d", resp.StatusCode)
	}

	return nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
