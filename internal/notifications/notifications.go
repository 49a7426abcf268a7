package notifications

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultBaseURL  = "https://ntfy.sh"
	DefaultInterval = 10 * time.Minute
)

// Notifier posts operator alerts to ntfy. Each key is sent at most once per
// interval; repeats are dropped.
type Notifier struct {
	baseURL  string
	topic    string
	client   *http.Client
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	sent map[string]time.Time
}

// New returns nil when no topic is configured; a nil *Notifier drops every
// message.
func New(topic string) *Notifier {
	if topic == "" {
		log.Warn().Msg("Ntfy topic not configured - notifications disabled")
		return nil
	}

	log.Info().Str("topic", topic).Msg("Ntfy notifications initialized")
	return &Notifier{
		baseURL:  DefaultBaseURL,
		topic:    topic,
		client:   &http.Client{Timeout: 10 * time.Second},
		interval: DefaultInterval,
		now:      time.Now,
		sent:     map[string]time.Time{},
	}
}

// Notify sends title/message unless key was sent within the interval. It
// reports whether a message went out.
func (n *Notifier) Notify(key, title, message string) (bool, error) {
	if n == nil {
		return false, nil
	}

	n.mu.Lock()
	now := n.now()
	if last, ok := n.sent[key]; ok && now.Sub(last) < n.interval {
		n.mu.Unlock()
		log.Debug().Str("key", key).Msg("Notification suppressed")
		return false, nil
	}
	n.sent[key] = now
	n.mu.Unlock()

	if err := n.send(title, message); err != nil {
		return false, err
	}
	return true, nil
}

func (n *Notifier) send(title, message string) error {
	url := fmt.Sprintf("%s/%s", strings.TrimRight(n.baseURL, "/"), n.topic)

	payload := map[string]interface{}{
		"topic":   n.topic,
		"title":   title,
		"message": message,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy returned non-success status: %d", resp.StatusCode)
	}

	log.Debug().
		Str("title", title).
		Int("status", resp.StatusCode).
		Msg("Notification sent successfully")
	return nil
}
