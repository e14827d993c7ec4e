package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/roastarena/roastarena/go/internal/ai"
)

// Judge calls the OpenAI chat completions API to pick a round winner.
type Judge struct {
	APIKey  string
	BaseURL string
	Model   string
	http    *http.Client
}

func New(apiKey, baseURL, model string) *Judge {
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Judge{
		APIKey:  apiKey,
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		http:    &http.Client{Timeout: 20 * time.Second},
	}
}

// verdictJSON is the shape the model is instructed to answer with.
type verdictJSON struct {
	WinnerID  string `json:"winner_id"`
	Reasoning string `json:"reasoning"`
}

func (j *Judge) JudgeRound(ctx context.Context, rc ai.RoundContext) (*ai.Verdict, error) {
	if j.APIKey == "" {
		return nil, errors.New("missing OPENAI_API_KEY")
	}
	if len(rc.Submissions) == 0 {
		return nil, errors.New("no submissions to judge")
	}

	payload := map[string]any{
		"model": j.Model,
		"messages": []map[string]string{
			{"role": "system", "content": j.systemPrompt(rc)},
			{"role": "user", "content": j.userPrompt(rc)},
		},
		"temperature":     0.8,
		"max_tokens":      300,
		"response_format": map[string]string{"type": "json_object"},
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", j.BaseURL+"/v1/chat/completions", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+j.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("openai status %d", resp.StatusCode)
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 {
		return nil, errors.New("no choices")
	}

	var v verdictJSON
	if err := json.Unmarshal([]byte(out.Choices[0].Message.Content), &v); err != nil {
		return nil, fmt.Errorf("parse verdict: %w", err)
	}
	winnerID, err := uuid.Parse(v.WinnerID)
	if err != nil {
		return nil, fmt.Errorf("parse winner id %q: %w", v.WinnerID, err)
	}

	return &ai.Verdict{
		WinnerID:  winnerID,
		Reasoning: strings.TrimSpace(v.Reasoning),
	}, nil
}

func (j *Judge) systemPrompt(rc ai.RoundContext) string {
	return fmt.Sprintf(
		"You are %s, the judge of a roast battle. %s\n"+
			"Pick exactly one winning roast. Answer with a JSON object: "+
			`{"winner_id": "<submission uuid>", "reasoning": "<1-3 sentences in character>"}`,
		rc.Judge.DisplayName, rc.Judge.StylePrompt,
	)
}

func (j *Judge) userPrompt(rc ai.RoundContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Round %s. %d roasts to judge:\n\n", rc.RoundID, len(rc.Submissions))
	for i, sub := range rc.Submissions {
		fmt.Fprintf(&sb, "%d. [%s] %s\n", i+1, sub.ID, sub.RoastText)
	}
	sb.WriteString("\nChoose the winner.")
	return sb.String()
}
