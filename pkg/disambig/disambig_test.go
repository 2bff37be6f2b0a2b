package disambig

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsword/newsword/pkg/config"
)

var pearCandidates = []Candidate{
	{Lemma: "배", TargetCode: 100, SenseNo: 1, Definition: "사람이나 동물의 몸에서 위장 창자 등의 내장이 들어 있는 곳", Categories: []string{"의학"}},
	{Lemma: "배", TargetCode: 500, SenseNo: 2, Definition: "사람이나 짐을 싣고 물 위로 떠다니는 교통수단", Example: "배를 타고 바다를 건너다", Categories: []string{"교통"}},
	{Lemma: "배", TargetCode: 300, SenseNo: 1, Definition: "배나무의 열매", Categories: []string{"식물"}},
}

func chatServer(t *testing.T, content string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, chatCompletionsPath, r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Messages, 2)
		w.WriteHeader(status)
		resp := map[string]any{"choices": []any{map[string]any{"message": map[string]any{"content": content}}}}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newChat(srv *httptest.Server) *ChatClient {
	return NewChatClientWithHTTPClient(config.AIConfig{BaseURL: srv.URL, APIKey: "sk-test", Model: "m"}, srv.Client(), nil)
}

func TestChatClientChoose(t *testing.T) {
	srv := chatServer(t, "```json\n{\"index\": 1, \"confidence\": 0.9, \"rationale\": \"boat\"}\n```", http.StatusOK)
	d, err := newChat(srv).Choose(context.Background(), "배를 타고 섬에 갔다", pearCandidates)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Index)
	assert.InDelta(t, 0.9, d.Confidence, 1e-9)
	assert.Equal(t, "boat", d.Rationale)
}

func TestChatClientNoPick(t *testing.T) {
	srv := chatServer(t, `{"index": -1, "confidence": 0.1, "rationale": "unclear"}`, http.StatusOK)
	_, err := newChat(srv).Choose(context.Background(), "배", pearCandidates)
	assert.ErrorIs(t, err, ErrNoConfidentPick)
}

func TestChatClientMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
		status  int
	}{
		{"not json", "I think it is the boat.", http.StatusOK},
		{"missing index", `{"confidence": 1}`, http.StatusOK},
		{"server error", `{}`, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := chatServer(t, tt.content, tt.status)
			_, err := newChat(srv).Choose(context.Background(), "배", pearCandidates)
			assert.Error(t, err)
		})
	}
}

func TestHeuristicIndex(t *testing.T) {
	text := "배를 타고 바다를 건너 섬에 도착했다"
	got := HeuristicIndex(text, pearCandidates)
	assert.Equal(t, 1, got)
	for i := 0; i < 5; i++ {
		assert.Equal(t, got, HeuristicIndex(text, pearCandidates))
	}

	assert.Equal(t, 0, HeuristicIndex("전혀 관련 없는 문장", pearCandidates), "ties go to first")
	assert.Equal(t, -1, HeuristicIndex("x", nil))
}

type stubAI struct {
	d     Decision
	err   error
	sleep time.Duration
}

func (s stubAI) Choose(ctx context.Context, _ string, _ []Candidate) (Decision, error) {
	if s.sleep > 0 {
		select {
		case <-ctx.Done():
			return Decision{}, ctx.Err()
		case <-time.After(s.sleep):
		}
	}
	return s.d, s.err
}

func TestChooserPick(t *testing.T) {
	text := "배를 타고 바다를 건너 섬에 도착했다"
	heuristic := HeuristicIndex(text, pearCandidates)

	tests := []struct {
		name string
		ai   Disambiguator
		want int
	}{
		{"no ai", nil, heuristic},
		{"confident ai", stubAI{d: Decision{Index: 2, Confidence: 0.8}}, 2},
		{"low confidence", stubAI{d: Decision{Index: 2, Confidence: 0.1}}, heuristic},
		{"out of range", stubAI{d: Decision{Index: 7, Confidence: 1}}, heuristic},
		{"error", stubAI{err: errors.New("boom")}, heuristic},
		{"no pick", stubAI{d: Decision{Index: -1}, err: ErrNoConfidentPick}, heuristic},
		{"timeout", stubAI{d: Decision{Index: 2, Confidence: 1}, sleep: time.Second}, heuristic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Chooser{AI: tt.ai, Timeout: 20 * time.Millisecond, MinConfidence: 0.5}
			assert.Equal(t, tt.want, c.Pick(context.Background(), text, pearCandidates))
		})
	}
}

func TestChooserTimeoutFallbackIsDeterministic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c := &Chooser{AI: newChat(srv), Timeout: 20 * time.Millisecond, MinConfidence: 0.5}
	text := "배나무의 열매가 달다"
	first := c.Pick(context.Background(), text, pearCandidates)
	assert.Equal(t, 2, first)
	assert.Equal(t, first, c.Pick(context.Background(), text, pearCandidates))
}

func TestChooserSingleCandidate(t *testing.T) {
	c := &Chooser{AI: stubAI{err: errors.New("never called")}}
	assert.Equal(t, 0, c.Pick(context.Background(), "x", pearCandidates[:1]))
	assert.Equal(t, -1, c.Pick(context.Background(), "x", nil))
}
