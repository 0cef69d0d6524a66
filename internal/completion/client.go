package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai"
	DefaultModel   = "llama3-8b-8192"

	chatCompletionsPath = "/v1/chat/completions"
	responsesPath       = "/v1/responses"
)

// Style selects the request shape sent to the provider.
type Style string

const (
	// StyleChat posts a single user message to chat completions.
	StyleChat Style = "chat"
	// StyleResponses posts the prompt as the input of the responses API.
	StyleResponses Style = "responses"
)

// ParseStyle accepts "chat" or "responses".
func ParseStyle(raw string) (Style, error) {
	switch s := Style(strings.ToLower(strings.TrimSpace(raw))); s {
	case StyleChat, StyleResponses:
		return s, nil
	case "":
		return StyleChat, nil
	default:
		return "", fmt.Errorf("unknown completion style %q", raw)
	}
}

// Params are the generation settings sent with every prompt.
type Params struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// Config describes how to reach an OpenAI-compatible provider.
type Config struct {
	BaseURL string
	APIKey  string
	Style   Style
	Timeout time.Duration
}

// Client sends one prompt and returns one generated text.
type Client struct {
	baseURL    string
	apiKey     string
	style      Style
	timeout    time.Duration
	httpClient *http.Client
	log        *slog.Logger
}

// New builds a client. An empty API key is rejected.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("completion: api key required")
	}
	style := cfg.Style
	if style == "" {
		style = StyleChat
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		style:      style,
		timeout:    timeout,
		httpClient: &http.Client{Transport: tr},
		log:        logger,
	}, nil
}

// NewWithHTTPClient is intended for tests that swap the transport.
func NewWithHTTPClient(cfg Config, httpClient *http.Client) (*Client, error) {
	c, err := New(cfg, nil)
	if err != nil {
		return nil, err
	}
	if httpClient != nil {
		c.httpClient = httpClient
	}
	return c, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Text string `json:"text,omitempty"`
	} `json:"choices"`
}

type responsesRequest struct {
	Model           string  `json:"model"`
	Input           string  `json:"input"`
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"max_output_tokens,omitempty"`
}

type responsesResponse struct {
	OutputText string `json:"output_text,omitempty"`
	Output     []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

// Complete sends the prompt verbatim and returns the generated text. Every
// failure is returned as *Error; there is no retry.
func (c *Client) Complete(ctx context.Context, prompt string, p Params) (string, error) {
	model := strings.TrimSpace(p.Model)
	if model == "" {
		model = DefaultModel
	}

	start := time.Now()
	text, err := c.complete(ctx, prompt, model, p)
	if err != nil {
		c.log.Warn("completion failed",
			slog.String("model", model),
			slog.String("style", string(c.style)),
			slog.Any("err", err),
		)
		return "", &Error{Err: err}
	}

	c.log.Debug("completion done",
		slog.String("model", model),
		slog.Int("prompt_bytes", len(prompt)),
		slog.Duration("took", time.Since(start)),
	)
	return text, nil
}

func (c *Client) complete(ctx context.Context, prompt, model string, p Params) (string, error) {
	switch c.style {
	case StyleResponses:
		var resp responsesResponse
		err := c.doJSON(ctx, responsesPath, responsesRequest{
			Model:           model,
			Input:           prompt,
			Temperature:     p.Temperature,
			MaxOutputTokens: p.MaxTokens,
		}, &resp)
		if err != nil {
			return "", err
		}
		return nonEmpty(extractResponsesText(resp))
	default:
		var resp chatResponse
		err := c.doJSON(ctx, chatCompletionsPath, chatRequest{
			Model:       model,
			Messages:    []chatMessage{{Role: "user", Content: prompt}},
			Temperature: p.Temperature,
			MaxTokens:   p.MaxTokens,
		}, &resp)
		if err != nil {
			return "", err
		}
		return nonEmpty(extractChatText(resp))
	}
}

func nonEmpty(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

func extractChatText(resp chatResponse) string {
	for _, c := range resp.Choices {
		if strings.TrimSpace(c.Message.Content) != "" {
			return c.Message.Content
		}
		if strings.TrimSpace(c.Text) != "" {
			return c.Text
		}
	}
	return ""
}

func extractResponsesText(resp responsesResponse) string {
	if strings.TrimSpace(resp.OutputText) != "" {
		return resp.OutputText
	}
	var b strings.Builder
	for _, item := range resp.Output {
		for _, part := range item.Content {
			if part.Type == "output_text" || part.Type == "text" {
				b.WriteString(part.Text)
			}
		}
	}
	return b.String()
}

func (c *Client) doJSON(ctx context.Context, path string, body, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
