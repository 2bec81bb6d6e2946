package pull

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Client fetches authoritative state over the REST-like pull endpoints. Every
// request is bound to its caller's context, so the resync coordinator can
// supersede an in-flight pull by cancelling it.
type Client struct {
	base   string
	http   *http.Client
	logger *zap.Logger
}

func NewClient(base string, logger *zap.Logger) *Client {
	return &Client{
		base:   base,
		http:   &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
}

// TableDetail fetches one table's raw state in the same loose shape the
// normalizer accepts.
func (c *Client) TableDetail(ctx context.Context, tableID int64) (map[string]any, error) {
	var out map[string]any
	if err := c.get(ctx, fmt.Sprintf("%s/tables/%d", c.base, tableID), &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// MyTables fetches the raw listing of tables the user is seated at.
func (c *Client) MyTables(ctx context.Context, userID string) ([]map[string]any, error) {
	var out []map[string]any
	if err := c.get(ctx, fmt.Sprintf("%s/players/%s/tables", c.base, userID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pull %s: unexpected status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("pull %s: decode: %w", url, err)
	}
	c.logger.Debug("pull ok", zap.String("url", url), zap.String("request_id", reqID))
	return nil
}
