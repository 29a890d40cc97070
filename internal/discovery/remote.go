package discovery

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fruitai/outreach/internal/model"
)

// RemoteSource asks an external discovery service for prospects. The service
// receives the criteria as JSON and streams one prospect per line (NDJSON).
type RemoteSource struct {
	client   *http.Client
	endpoint string
}

// NewRemoteSource creates a RemoteSource. A nil client uses a 5 minute timeout.
func NewRemoteSource(client *http.Client, endpoint string) *RemoteSource {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	return &RemoteSource{client: client, endpoint: endpoint}
}

// Name implements Source
func (s *RemoteSource) Name() string { return "remote" }

type remoteProspect struct {
	Email    string         `json:"email"`
	Name     string         `json:"name"`
	Company  string         `json:"company"`
	Metadata map[string]any `json:"metadata"`
	// Error lets the service report a failure mid-stream
	Error string `json:"error"`
}

// Discover implements Source
func (s *RemoteSource) Discover(ctx context.Context, c Criteria, emit EmitFunc) error {
	body, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode criteria: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discovery service returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var rp remoteProspect
		if err := json.Unmarshal(line, &rp); err != nil {
			return fmt.Errorf("malformed prospect line: %w", err)
		}
		if rp.Error != "" {
			return fmt.Errorf("discovery service error: %s", rp.Error)
		}
		if rp.Email == "" {
			continue
		}

		metadata := rp.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		if _, ok := metadata["source"]; !ok {
			metadata["source"] = s.Name()
		}

		if err := emit(model.Prospect{
			Email:    strings.TrimSpace(rp.Email),
			Name:     strings.TrimSpace(rp.Name),
			Company:  strings.TrimSpace(rp.Company),
			Metadata: metadata,
		}); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read prospect stream: %w", err)
	}
	return nil
}
