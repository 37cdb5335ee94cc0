package model

import "strings"

// NotAvailable is substituted for summary text fields the model omitted.
const NotAvailable = "N/A"

// Direction classifies the net sentiment trend of a whole conversation.
type Direction string

const (
	DirectionEvolvedPositive       Direction = "evolved_positive"
	DirectionEvolvedNegative       Direction = "evolved_negative"
	DirectionPredominantlyPositive Direction = "predominantly_positive"
	DirectionPredominantlyNegative Direction = "predominantly_negative"
	DirectionNeutral               Direction = "neutral"
	DirectionMixed                 Direction = "mixed"

	// DirectionUnknown marks a summary whose direction was missing or not in the enum.
	DirectionUnknown Direction = NotAvailable
)

// Directions lists every valid emotional direction.
var Directions = []Direction{
	DirectionEvolvedPositive,
	DirectionEvolvedNegative,
	DirectionPredominantlyPositive,
	DirectionPredominantlyNegative,
	DirectionNeutral,
	DirectionMixed,
}

// Valid reports whether d is one of the enumerated directions.
func (d Direction) Valid() bool {
	for _, v := range Directions {
		if d == v {
			return true
		}
	}
	return false
}

// ParseDirection normalizes s and reports whether it names a valid direction.
func ParseDirection(s string) (Direction, bool) {
	d := Direction(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return DirectionUnknown, false
	}
	return d, true
}

// OverallSentiment is the whole-conversation sentiment block.
type OverallSentiment struct {
	Direction            Direction `json:"overall_emotional_direction" bson:"overall_emotional_direction"`
	AverageScore         float64   `json:"average_sentiment_score" bson:"average_sentiment_score"`
	NarrativeDescription string    `json:"narrative_description" bson:"narrative_description"`
}

// Phase is one third of the sentiment journey.
type Phase struct {
	Sentiment   string  `json:"sentiment" bson:"sentiment"`
	Score       float64 `json:"score" bson:"score"`
	Description string  `json:"description" bson:"description"`
}

// SentimentJourney breaks sentiment down over the opening, middle and closing of a conversation.
type SentimentJourney struct {
	Opening           Phase  `json:"opening_phase" bson:"opening_phase"`
	Middle            Phase  `json:"middle_phase" bson:"middle_phase"`
	Closing           Phase  `json:"closing_phase" bson:"closing_phase"`
	MoodShiftAnalysis string `json:"mood_shift_analysis" bson:"mood_shift_analysis"`
}

// EmotionalMoment is a single turning point called out by the model.
type EmotionalMoment struct {
	MessageNumber           int     `json:"message_number" bson:"message_number"`
	SentimentClassification string  `json:"sentiment_classification" bson:"sentiment_classification"`
	SentimentScore          float64 `json:"sentiment_score" bson:"sentiment_score"`
	Significance            string  `json:"significance" bson:"significance"`
}

// ConversationSummary is the terminal, model-produced sentiment report.
// Its presence on a response ends the conversation.
type ConversationSummary struct {
	TotalUserMessages   int               `json:"total_user_messages" bson:"total_user_messages"`
	Overall             OverallSentiment  `json:"full_conversation_sentiment" bson:"full_conversation_sentiment"`
	Journey             SentimentJourney  `json:"sentiment_journey" bson:"sentiment_journey"`
	KeyEmotionalMoments []EmotionalMoment `json:"key_emotional_moments" bson:"key_emotional_moments"`
	Insights            []string          `json:"insights" bson:"insights"`

	// Raw is the summary object exactly as the model sent it.
	Raw map[string]any `json:"-" bson:"-"`
}
