package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/capitalize-ai/sentiment-support-agent/internal/model"
)

// Fallback texts shown to the user when a turn could not be completed.
const (
	FallbackParseResponse     = "I apologize, but I encountered an error. Could you please rephrase?"
	FallbackTransportResponse = "I apologize, but I encountered an unexpected error."
)

// ParseError reports model output that is not a usable structured response.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "conversation: malformed model response: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// StripFences removes a leading ``` or ```lang marker and a trailing ```
// marker, then trims surrounding whitespace.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		s = s[3:]
		// A language tag runs up to the first newline.
		if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[\"") {
			s = s[nl+1:]
		} else if strings.HasPrefix(s, "json") {
			s = s[len("json"):]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")

	return strings.TrimSpace(s)
}

// ParseResponse decodes raw completion text into a structured response. It
// has no side effects and never retries.
func ParseResponse(raw string) (*model.Response, error) {
	cleaned := StripFences(raw)

	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return nil, &ParseError{Err: err}
	}
	if doc == nil {
		return nil, &ParseError{Err: errors.New("response is not a JSON object")}
	}

	rawText, ok := doc["response"]
	if !ok {
		return nil, &ParseError{Err: errors.New(`missing "response" field`)}
	}
	var text string
	if err := json.Unmarshal(rawText, &text); err != nil {
		return nil, &ParseError{Err: fmt.Errorf(`"response" field: %w`, err)}
	}

	resp := &model.Response{Response: text}

	rawSummary, ok := doc["conversation_summary"]
	if !ok || string(rawSummary) == "null" {
		return resp, nil
	}

	var body any
	if err := json.Unmarshal(rawSummary, &body); err != nil {
		return nil, &ParseError{Err: fmt.Errorf(`"conversation_summary" field: %w`, err)}
	}

	summary, defaulted := decodeSummary(body)
	resp.ConversationSummary = summary
	resp.Defaulted = defaulted
	return resp, nil
}

// summaryReader pulls typed fields out of an untrusted JSON object,
// substituting defaults and remembering which paths were defaulted.
type summaryReader struct {
	defaulted []string
}

func (r *summaryReader) miss(path string) {
	r.defaulted = append(r.defaulted, path)
}

func (r *summaryReader) object(m map[string]any, key, path string) map[string]any {
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	r.miss(path)
	return map[string]any{}
}

func (r *summaryReader) text(m map[string]any, key, path string) string {
	if v, ok := m[key].(string); ok && strings.TrimSpace(v) != "" {
		return v
	}
	r.miss(path)
	return model.NotAvailable
}

func (r *summaryReader) number(m map[string]any, key, path string) float64 {
	v, ok := m[key].(float64)
	if !ok {
		r.miss(path)
		return 0
	}
	return v
}

// score reads a number and clamps it into [-1, 1].
func (r *summaryReader) score(m map[string]any, key, path string) float64 {
	v := r.number(m, key, path)
	if v < -1 || v > 1 {
		r.miss(path)
		if v < -1 {
			return -1
		}
		return 1
	}
	return v
}

func (r *summaryReader) phase(m map[string]any, key, path string) model.Phase {
	p := r.object(m, key, path)
	return model.Phase{
		Sentiment:   r.text(p, "sentiment", path+".sentiment"),
		Score:       r.score(p, "score", path+".score"),
		Description: r.text(p, "description", path+".description"),
	}
}

func decodeSummary(body any) (*model.ConversationSummary, []string) {
	r := &summaryReader{}

	root, ok := body.(map[string]any)
	if !ok {
		r.miss("conversation_summary")
		root = map[string]any{}
	}

	overall := r.object(root, "full_conversation_sentiment", "full_conversation_sentiment")
	rawDirection, _ := overall["overall_emotional_direction"].(string)
	direction, valid := model.ParseDirection(rawDirection)
	if !valid {
		r.miss("full_conversation_sentiment.overall_emotional_direction")
	}

	journey := r.object(root, "sentiment_journey", "sentiment_journey")

	summary := &model.ConversationSummary{
		TotalUserMessages: int(r.number(root, "total_user_messages", "total_user_messages")),
		Overall: model.OverallSentiment{
			Direction:            direction,
			AverageScore:         r.score(overall, "average_sentiment_score", "full_conversation_sentiment.average_sentiment_score"),
			NarrativeDescription: r.text(overall, "narrative_description", "full_conversation_sentiment.narrative_description"),
		},
		Journey: model.SentimentJourney{
			Opening:           r.phase(journey, "opening_phase", "sentiment_journey.opening_phase"),
			Middle:            r.phase(journey, "middle_phase", "sentiment_journey.middle_phase"),
			Closing:           r.phase(journey, "closing_phase", "sentiment_journey.closing_phase"),
			MoodShiftAnalysis: r.text(journey, "mood_shift_analysis", "sentiment_journey.mood_shift_analysis"),
		},
		KeyEmotionalMoments: []model.EmotionalMoment{},
		Insights:            []string{},
		Raw:                 root,
	}

	if moments, ok := root["key_emotional_moments"].([]any); ok {
		for i, item := range moments {
			path := fmt.Sprintf("key_emotional_moments[%d]", i)
			m, ok := item.(map[string]any)
			if !ok {
				r.miss(path)
				continue
			}
			summary.KeyEmotionalMoments = append(summary.KeyEmotionalMoments, model.EmotionalMoment{
				MessageNumber:           int(r.number(m, "message_number", path+".message_number")),
				SentimentClassification: r.text(m, "sentiment_classification", path+".sentiment_classification"),
				SentimentScore:          r.score(m, "sentiment_score", path+".sentiment_score"),
				Significance:            r.text(m, "significance", path+".significance"),
			})
		}
	} else {
		r.miss("key_emotional_moments")
	}

	if insights, ok := root["insights"].([]any); ok {
		for i, item := range insights {
			s, ok := item.(string)
			if !ok {
				r.miss(fmt.Sprintf("insights[%d]", i))
				continue
			}
			summary.Insights = append(summary.Insights, s)
		}
	} else {
		r.miss("insights")
	}

	return summary, r.defaulted
}
