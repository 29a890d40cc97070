package outreach

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	query  string
	auth   string
	body   map[string]any
}

func newTestServer(t *testing.T, status int, response string) (*httptest.Server, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.query = r.URL.RawQuery
		rec.auth = r.Header.Get("Authorization")
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			assert.NoError(t, json.Unmarshal(data, &rec.body))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func TestConfigDefaults(t *testing.T) {
	c := NewClient(Config{BaseURL: "https://outreach.example.com/"})
	assert.Equal(t, "https://outreach.example.com/api/v1", c.cfg.BaseURL)

	c = NewClient(Config{BaseURL: "https://outreach.example.com/api/v1"})
	assert.Equal(t, "https://outreach.example.com/api/v1", c.cfg.BaseURL)
	assert.NotNil(t, c.cfg.HTTPClient)
}

func TestStartCampaign(t *testing.T) {
	srv, rec := newTestServer(t, http.StatusCreated, `{"id":"c1","status":"discovering_prospects","smtp":{"host":"smtp.acme.test","password":"********"}}`)
	c := NewClient(Config{BaseURL: srv.URL, APIToken: "tok"})

	camp, err := c.StartCampaign(context.Background(), StartCampaignRequest{
		TargetWebsite: "https://acme.test",
		Goal:          "demo",
		SMTP:          &SMTPConfig{Host: "smtp.acme.test", Port: 587, FromAddress: "me@acme.test"},
	})
	require.NoError(t, err)
	assert.Equal(t, "c1", camp.ID)
	assert.Equal(t, StatusDiscoveringProspects, camp.Status)

	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "/api/v1/campaigns", rec.path)
	assert.Equal(t, "Bearer tok", rec.auth)
	assert.Equal(t, "https://acme.test", rec.body["targetWebsite"])
}

func TestListCampaigns(t *testing.T) {
	srv, rec := newTestServer(t, http.StatusOK, `{"campaigns":[{"id":"c1"}],"total":1,"page":2,"pageSize":5}`)
	c := NewClient(Config{BaseURL: srv.URL})

	page, err := c.ListCampaigns(context.Background(), ListOptions{Page: 2, PageSize: 5, Status: StatusCompleted})
	require.NoError(t, err)
	assert.Len(t, page.Campaigns, 1)
	assert.Equal(t, "page=2&page_size=5&status=completed", rec.query)
	assert.Empty(t, rec.auth)
}

func TestReview(t *testing.T) {
	srv, rec := newTestServer(t, http.StatusOK, `{"campaignId":"c1","status":"sending"}`)
	c := NewClient(Config{BaseURL: srv.URL})

	res, err := c.Review(context.Background(), "c1", ReviewRequest{Decision: DecisionApprove, PauseID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, StatusSending, res.Status)
	assert.Equal(t, "/api/v1/campaigns/c1/review", rec.path)
	assert.Equal(t, "approve", rec.body["decision"])
	assert.Equal(t, "p1", rec.body["pauseId"])
}

func TestCancel_EmptyID(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://localhost"})
	_, err := c.Cancel(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyID)
}

func TestAPIError(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusConflict, `{"error":{"code":"stale_action","message":"pause p1 is no longer open","request_id":"r-1"}}`)
	c := NewClient(Config{BaseURL: srv.URL})

	_, err := c.SelectTemplate(context.Background(), "c1", SelectTemplateRequest{TemplateID: "modern_tech", PauseID: "p1"})
	require.Error(t, err)
	assert.True(t, IsStale(err))

	apiErr, ok := IsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "r-1", apiErr.RequestID)
	assert.Contains(t, apiErr.Error(), "stale_action")
}

func TestAPIError_NonJSON(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusBadGateway, `upstream down`)
	c := NewClient(Config{BaseURL: srv.URL})

	_, err := c.Templates(context.Background())
	apiErr, ok := IsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "unknown", apiErr.Code)
	assert.Equal(t, "upstream down", apiErr.Message)
	assert.False(t, IsStale(errors.New("other")))
}

func TestEmails(t *testing.T) {
	srv, rec := newTestServer(t, http.StatusOK, `{"emails":[{"id":"e1","prospectEmail":"a@acme.test","status":"sent","method":"primary"}]}`)
	c := NewClient(Config{BaseURL: srv.URL})

	emails, err := c.Emails(context.Background(), "c 1")
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, "primary", emails[0].Method)
	assert.Equal(t, "/api/v1/campaigns/c 1/emails", rec.path)
}

func TestEvents(t *testing.T) {
	srv, rec := newTestServer(t, http.StatusOK, `{"events":[{"id":"v1","emailId":"e1","type":"click","linkIndex":0,"url":"https://acme.test/demo"}]}`)
	c := NewClient(Config{BaseURL: srv.URL})

	events, err := c.Events(context.Background(), "c1", "click")
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].LinkIndex)
	assert.Equal(t, 0, *events[0].LinkIndex)
	assert.Equal(t, "/api/v1/campaigns/c1/events", rec.path)
	assert.Equal(t, "type=click", rec.query)

	_, err = c.Events(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrEmptyID)
}

func TestWatch(t *testing.T) {
	subscribed := make(chan []string, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws/workflow" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var msg struct {
			Type        string   `json:"type"`
			CampaignIDs []string `json:"campaignIds"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		subscribed <- msg.CampaignIDs

		conn.WriteJSON(map[string]any{
			"type":       "status_update",
			"campaignId": "c1",
			"timestamp":  time.Now().UTC(),
			"data":       map[string]any{"status": "sending"},
		})
		// hold the connection until the client goes away
		conn.ReadMessage()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewClient(Config{BaseURL: srv.URL})
	events, err := c.Watch(ctx, "c1")
	require.NoError(t, err)

	assert.Equal(t, []string{"c1"}, <-subscribed)

	select {
	case ev := <-events:
		assert.Equal(t, "status_update", ev.Type)
		assert.Equal(t, "c1", ev.CampaignID)
		assert.JSONEq(t, `{"status":"sending"}`, string(ev.Data))
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
	}

	cancel()
	select {
	case _, ok := <-events:
		for ok {
			_, ok = <-events
		}
	case <-time.After(5 * time.Second):
		t.Fatal("event channel was not closed")
	}
}

func TestWebsocketURL(t *testing.T) {
	c := NewClient(Config{BaseURL: "https://outreach.example.com/base"})
	u, err := c.websocketURL()
	require.NoError(t, err)
	assert.Equal(t, "wss://outreach.example.com/base/ws/workflow", u)
}
