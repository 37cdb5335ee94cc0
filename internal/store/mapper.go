package store

import (
	"encoding/json"
	"math"
	"time"

	"github.com/capitalize-ai/sentiment-support-agent/internal/model"
)

// NewRecord builds the durable record for a finished conversation. It copies
// everything it reads and never mutates its inputs.
func NewRecord(userID string, turns []model.Turn, summary *model.ConversationSummary, startedAt, completedAt time.Time) (*model.Record, error) {
	if summary == nil {
		return nil, ErrNoSummary
	}

	messages := make([]model.Turn, len(turns))
	copy(messages, turns)

	moments := append([]model.EmotionalMoment{}, summary.KeyEmotionalMoments...)
	insights := append([]string{}, summary.Insights...)

	full, err := rawSummary(summary)
	if err != nil {
		return nil, err
	}

	return &model.Record{
		UserID:              userID,
		CreatedAt:           startedAt,
		CompletedAt:         completedAt,
		TotalMessages:       len(messages),
		Messages:            messages,
		OverallSentiment:    summary.Overall,
		SentimentJourney:    summary.Journey,
		KeyEmotionalMoments: moments,
		Insights:            insights,
		FullSummary:         full,
	}, nil
}

// rawSummary returns the summary as the model sent it, or its normalized
// form when the raw object is not available.
func rawSummary(summary *model.ConversationSummary) (map[string]any, error) {
	src := any(summary)
	if summary.Raw != nil {
		src = summary.Raw
	}

	// A JSON round trip deep-copies the map and gives it plain JSON types.
	b, err := json.Marshal(src)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// roundScore rounds an aggregate score to three decimals for reporting.
func roundScore(v float64) float64 {
	return math.Round(v*1000) / 1000
}
