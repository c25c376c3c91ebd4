// Package signaling talks to the backend signaling service: outbound
// request/response calls over HTTP and inbound push events over a
// websocket. Credentials ride on the injected http.Client (cookie jar).
package signaling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nortonjulian/chatforia-calls/internal/core"
	"github.com/nortonjulian/chatforia-calls/internal/domain"
)

// Client implements core.Signaler against the backend REST surface.
type Client struct {
	http *http.Client
	base string
}

func NewClient(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		http: httpClient,
		base: strings.TrimRight(baseURL, "/"),
	}
}

type iceServersResponse struct {
	IceServers []domain.ICEServer `json:"iceServers"`
}

func (c *Client) IceServers(ctx context.Context) ([]domain.ICEServer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/webrtc/ice-servers", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch ice servers: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, body)
	}

	var out iceServersResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("unmarshal ice servers: %w", err)
	}
	return out.IceServers, nil
}

func (c *Client) Invite(ctx context.Context, req core.InviteRequest) (*core.InviteResponse, error) {
	var out core.InviteResponse
	if err := c.post(ctx, "/calls/invite", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type answerRequest struct {
	CallID domain.CallID `json:"callId"`
	Answer domain.SDP    `json:"answer"`
}

func (c *Client) Answer(ctx context.Context, callID domain.CallID, answer domain.SDP) error {
	return c.post(ctx, "/calls/answer", answerRequest{CallID: callID, Answer: answer}, nil)
}

func (c *Client) Candidate(ctx context.Context, req core.CandidateRequest) error {
	return c.post(ctx, "/calls/candidate", req, nil)
}

type endRequest struct {
	CallID domain.CallID `json:"callId"`
	Reason string        `json:"reason,omitempty"`
}

func (c *Client) End(ctx context.Context, callID domain.CallID, reason string) error {
	return c.post(ctx, "/calls/end", endRequest{CallID: callID, Reason: reason}, nil)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post %s: http %d: %s", path, resp.StatusCode, respBody)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	log.Debug().Str("module", "signaling").Str("path", path).Msg("request ok")
	return nil
}
