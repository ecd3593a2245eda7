package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/mpadronm90/simple-chatbot-platform/internal/domain"
	"github.com/mpadronm90/simple-chatbot-platform/internal/threadsync"
)

// Client talks to the platform's HTTP and websocket endpoints.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{},
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 == 2 {
		return resp, nil
	}
	defer resp.Body.Close()
	var body struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(resp.Body)
	if json.Unmarshal(raw, &body) != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(raw))
	}
	return nil, &APIError{Status: resp.StatusCode, Message: body.Error}
}

// Dispatch posts one facade request and returns the raw JSON result.
func (c *Client) Dispatch(ctx context.Context, action domain.Action, data json.RawMessage) (json.RawMessage, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/api", domain.DispatchRequest{Action: action, Data: data})
	if err != nil {
		return nil, err
	}
	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// StreamRun runs the assistant on a thread and copies the streamed text to w.
func (c *Client) StreamRun(ctx context.Context, run domain.RunAssistantRequest, w io.Writer) error {
	run.Stream = true
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api", domain.DispatchRequest{Action: domain.ActionRunAssistant, Data: data})
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, err = io.Copy(w, resp.Body)
	return err
}

// SelectThread returns the caller's thread on a chatbot.
func (c *Client) SelectThread(ctx context.Context, chatbotID string) (*domain.Thread, *domain.Chatbot, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/v1/chatbots/"+url.PathEscape(chatbotID)+"/thread", nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := c.send(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	var out struct {
		Thread  domain.Thread  `json:"thread"`
		Chatbot domain.Chatbot `json:"chatbot"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, nil, fmt.Errorf("decode thread: %w", err)
	}
	return &out.Thread, &out.Chatbot, nil
}

// Watch follows a thread over the websocket and calls fn with every rendered message list.
func (c *Client) Watch(ctx context.Context, threadID string, fn func([]domain.Message)) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws/threads/" + url.PathEscape(threadID)
	u.RawQuery = url.Values{"token": {c.token}}.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		var frame threadsync.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		if frame.Type == threadsync.FrameMessages {
			fn(frame.Messages)
		}
	}
}
