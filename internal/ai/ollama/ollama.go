package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type Client struct {
	Host string
	http *http.Client
}

func New(host string, timeout time.Duration) *Client {
	if host == "" {
		host = "http://localhost:11434"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{Host: strings.TrimRight(host, "/"), http: &http.Client{Timeout: timeout}}
}

type ChatRequest struct {
	Model       string
	System      string
	Prompt      string
	JSON        bool
	Temperature float64
}

func (c *Client) Chat(ctx context.Context, r ChatRequest) (string, error) {
	messages := []map[string]string{}
	if r.System != "" {
		messages = append(messages, map[string]string{"role": "system", "content": r.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": r.Prompt})
	payload := map[string]any{
		"model":    r.Model,
		"messages": messages,
		"stream":   false,
		"options":  map[string]any{"temperature": r.Temperature},
	}
	if r.JSON {
		payload["format"] = "json"
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Host+"/api/chat", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("ollama status %d", resp.StatusCode)
	}
	var out struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Message.Content), nil
}
