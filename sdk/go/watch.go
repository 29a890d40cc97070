package outreach

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Watch connects to the status channel and streams events until ctx is done
// or the connection drops. When campaignIDs is non-empty only those
// campaigns' events are delivered. The returned channel is closed on exit.
func (c *Client) Watch(ctx context.Context, campaignIDs ...string) (<-chan Event, error) {
	wsURL, err := c.websocketURL()
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if c.cfg.APIToken != "" {
		header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	}

	conn, _, err := c.cfg.Dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("outreach: failed to connect to status channel: %w", err)
	}

	if len(campaignIDs) > 0 {
		sub := map[string]any{"type": "subscribe", "campaignIds": campaignIDs}
		if err := conn.WriteJSON(sub); err != nil {
			conn.Close()
			return nil, fmt.Errorf("outreach: failed to subscribe: %w", err)
		}
	}

	events := make(chan Event, 64)
	stop := make(chan struct{})

	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		conn.Close()
	}()

	go func() {
		defer close(events)
		defer close(stop)
		for {
			var ev Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}

func (c *Client) websocketURL() (string, error) {
	u, err := url.Parse(strings.TrimSuffix(c.cfg.BaseURL, "/api/v1"))
	if err != nil {
		return "", fmt.Errorf("outreach: invalid base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/workflow"
	return u.String(), nil
}
