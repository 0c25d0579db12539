package ui

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Cyclone1070/sandchat/internal/chat"
)

// Client talks to a running sandchat server over its NDJSON API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
}

// History fetches the persisted transcript.
func (c *Client) History(ctx context.Context) ([]chat.Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/chat/", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("history request: %s", resp.Status)
	}

	var messages []chat.Message
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg chat.Message
		if err := json.Unmarshal(line, &msg); err != nil {
			return nil, fmt.Errorf("decode history line: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, scanner.Err()
}

// Send posts one prompt and streams the turn's messages as they arrive. The
// error channel delivers at most one error after the message channel closes.
func (c *Client) Send(ctx context.Context, prompt string) (<-chan chat.Message, <-chan error) {
	out := make(chan chat.Message)
	errc := make(chan error, 1)

	go func() {
		defer close(errc)
		defer close(out)
		if err := c.stream(ctx, prompt, out); err != nil {
			errc <- err
		}
	}()

	return out, errc
}

func (c *Client) stream(ctx context.Context, prompt string, out chan<- chat.Message) error {
	form := url.Values{"prompt": {prompt}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chat request: %s", resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg chat.Message
		if err := json.Unmarshal(line, &msg); err != nil {
			return fmt.Errorf("decode stream line: %w", err)
		}
		select {
		case out <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return scanner.Err()
}
