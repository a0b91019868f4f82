// Package forum is the bundled HTTP connector to the hosting discussion
// platform. It implements every collaborator interface the engine consumes
// (thread reading, group membership, permissions, notification delivery)
// against a small JSON API, so the serve command can run as a sidecar next
// to a forum exposing these endpoints.
package forum

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/raffleworks/topicdraw/internal/participant"
)

// Client talks to the forum's draw-integration API.
//
// Endpoints, relative to BaseURL:
//
//	GET  /topics/{id}/replies                 -> {"replies": [...]}
//	GET  /users/{id}/excluded?groups=a,b      -> {"excluded": bool}
//	GET  /topics/{id}/can-create-draw?user_id&categories=1,2
//	                                          -> {"allowed": bool}
//	POST /topics/{id}/posts                   body {"raw": "..."}
//	POST /messages                            body {"user_id", "title", "raw"}
//	PUT  /topics/{id}/tags                    body {"tag": "..."}
//	PUT  /topics/{id}/close
//	PUT  /topics/{id}/lock-first-post
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client

	// allowedCategories restricts where draws may be created. Empty means
	// every category; the forum enforces the restriction since only it
	// knows a topic's category.
	allowedCategories []int64
}

// NewClient builds a connector for the forum at baseURL.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// RestrictCategories limits draw creation to the given category IDs.
func (c *Client) RestrictCategories(ids []int64) {
	c.allowedCategories = ids
}

type wireReply struct {
	ReplyID   int64     `json:"reply_id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	Deleted   bool      `json:"deleted"`
	Hidden    bool      `json:"hidden"`
}

// Replies implements participant.ThreadReader.
func (c *Client) Replies(ctx context.Context, topicID int64) ([]participant.Reply, error) {
	var resp struct {
		Replies []wireReply `json:"replies"`
	}
	if err := c.get(ctx, fmt.Sprintf("/topics/%d/replies", topicID), &resp); err != nil {
		return nil, err
	}
	replies := make([]participant.Reply, len(resp.Replies))
	for i, r := range resp.Replies {
		replies[i] = participant.Reply(r)
	}
	return replies, nil
}

// IsExcluded implements participant.GroupDirectory.
func (c *Client) IsExcluded(ctx context.Context, userID int64, excludedGroups []string) (bool, error) {
	if len(excludedGroups) == 0 {
		return false, nil
	}
	q := url.Values{"groups": {strings.Join(excludedGroups, ",")}}
	var resp struct {
		Excluded bool `json:"excluded"`
	}
	if err := c.get(ctx, fmt.Sprintf("/users/%d/excluded?%s", userID, q.Encode()), &resp); err != nil {
		return false, err
	}
	return resp.Excluded, nil
}

// CanCreateDraw implements engine.PermissionChecker.
func (c *Client) CanCreateDraw(ctx context.Context, userID, topicID int64) (bool, error) {
	q := url.Values{"user_id": {fmt.Sprint(userID)}}
	if len(c.allowedCategories) > 0 {
		ids := make([]string, len(c.allowedCategories))
		for i, id := range c.allowedCategories {
			ids[i] = fmt.Sprint(id)
		}
		q.Set("categories", strings.Join(ids, ","))
	}
	var resp struct {
		Allowed bool `json:"allowed"`
	}
	path := fmt.Sprintf("/topics/%d/can-create-draw?%s", topicID, q.Encode())
	if err := c.get(ctx, path, &resp); err != nil {
		return false, err
	}
	return resp.Allowed, nil
}

// PostAnnouncement implements engine.Notifier.
func (c *Client) PostAnnouncement(ctx context.Context, topicID int64, body string) error {
	return c.send(ctx, http.MethodPost, fmt.Sprintf("/topics/%d/posts", topicID),
		map[string]string{"raw": body})
}

// SendPrivateMessage implements engine.Notifier.
func (c *Client) SendPrivateMessage(ctx context.Context, userID int64, title, body string) error {
	return c.send(ctx, http.MethodPost, "/messages",
		map[string]any{"user_id": userID, "title": title, "raw": body})
}

// UpdateTags implements engine.Notifier.
func (c *Client) UpdateTags(ctx context.Context, topicID int64, tag string) error {
	return c.send(ctx, http.MethodPut, fmt.Sprintf("/topics/%d/tags", topicID),
		map[string]string{"tag": tag})
}

// CloseTopic implements engine.Notifier.
func (c *Client) CloseTopic(ctx context.Context, topicID int64) error {
	return c.send(ctx, http.MethodPut, fmt.Sprintf("/topics/%d/close", topicID), nil)
}

// LockFirstPost implements engine.Notifier.
func (c *Client) LockFirstPost(ctx context.Context, topicID int64) error {
	return c.send(ctx, http.MethodPut, fmt.Sprintf("/topics/%d/lock-first-post", topicID), nil)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("forum request %s: %w", path, err)
	}
	return c.do(req, out)
}

func (c *Client) send(ctx context.Context, method, path string, body any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("forum request %s: %w", path, err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("forum request %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.apiKey != "" {
		req.Header.Set("Api-Key", c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("forum %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("forum %s %s: unexpected status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("forum %s %s: decode response: %w", req.Method, req.URL.Path, err)
		}
	}
	return nil
}
