package disambig

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/newsword/newsword/pkg/config"
	"github.com/newsword/newsword/pkg/logging"
)

const (
	chatCompletionsPath = "/v1/chat/completions"
	maxChatResponse     = 1 << 20
)

const systemPrompt = `You choose which Korean dictionary sense matches a word as used in the given text.
Respond with a single JSON object only, no prose:
{"index": <0-based candidate index, or -1 if none fits>, "confidence": <0..1>, "rationale": "<short reason>"}`

// ChatClient is a Disambiguator backed by a chat-completions endpoint.
type ChatClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	log        *zap.Logger
}

var _ Disambiguator = (*ChatClient)(nil)

// NewChatClient creates a client from cfg. Timeouts come from the caller's context.
func NewChatClient(cfg config.AIConfig, logger *zap.Logger) *ChatClient {
	return NewChatClientWithHTTPClient(cfg, &http.Client{}, logger)
}

// NewChatClientWithHTTPClient is intended for tests.
func NewChatClientWithHTTPClient(cfg config.AIConfig, hc *http.Client, logger *zap.Logger) *ChatClient {
	return &ChatClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		model:      cfg.Model,
		httpClient: hc,
		log:        logging.OrNop(logger).With(zap.String("component", "disambig")),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type userPayload struct {
	Context    string           `json:"context"`
	Candidates []indexCandidate `json:"candidates"`
}

type indexCandidate struct {
	Index int `json:"index"`
	Candidate
}

type decisionPayload struct {
	Index      *int    `json:"index"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// Choose sends text and candidates to the model and parses its JSON decision.
func (c *ChatClient) Choose(ctx context.Context, text string, candidates []Candidate) (Decision, error) {
	if len(candidates) == 0 {
		return Decision{}, ErrNoConfidentPick
	}
	payload := userPayload{Context: text}
	for i, cand := range candidates {
		payload.Candidates = append(payload.Candidates, indexCandidate{Index: i, Candidate: cand})
	}
	user, err := json.Marshal(payload)
	if err != nil {
		return Decision{}, fmt.Errorf("disambig: encode candidates: %w", err)
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: string(user)},
		},
		ResponseFormat: &struct {
			Type string `json:"type"`
		}{Type: "json_object"},
	}
	content, err := c.complete(ctx, reqBody)
	if err != nil {
		return Decision{}, err
	}

	raw, err := extractJSON(content)
	if err != nil {
		return Decision{}, fmt.Errorf("disambig: %w", err)
	}
	var dp decisionPayload
	if err := json.Unmarshal([]byte(raw), &dp); err != nil {
		return Decision{}, fmt.Errorf("disambig: decode decision: %w", err)
	}
	if dp.Index == nil {
		return Decision{}, errors.New("disambig: decision missing index")
	}
	if *dp.Index < 0 {
		return Decision{Index: -1, Rationale: dp.Rationale}, ErrNoConfidentPick
	}
	c.log.Debug("disambiguated",
		zap.Int("index", *dp.Index),
		zap.Float64("confidence", dp.Confidence),
		zap.String("rationale", dp.Rationale))
	return Decision{Index: *dp.Index, Confidence: dp.Confidence, Rationale: dp.Rationale}, nil
}

func (c *ChatClient) complete(ctx context.Context, body chatRequest) (string, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("disambig: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatCompletionsPath, bytes.NewReader(buf))
	if err != nil {
		return "", fmt.Errorf("disambig: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("disambig: request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxChatResponse))
	if err != nil {
		return "", fmt.Errorf("disambig: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("disambig: status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	var cr chatResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return "", fmt.Errorf("disambig: decode response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", errors.New("disambig: empty choices")
	}
	return cr.Choices[0].Message.Content, nil
}

// extractJSON returns the outermost {...} span of s; models sometimes wrap JSON in prose or fences.
func extractJSON(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in response")
	}
	return s[start : end+1], nil
}
