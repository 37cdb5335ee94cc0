package nats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/capitalize-ai/sentiment-support-agent/internal/model"
)

func TestEventSubject(t *testing.T) {
	tests := []struct {
		direction model.Direction
		want      string
	}{
		{model.DirectionEvolvedPositive, "sentiment.conversation.completed.evolved_positive"},
		{model.DirectionMixed, "sentiment.conversation.completed.mixed"},
		{model.DirectionUnknown, "sentiment.conversation.completed.unknown"},
		{"", "sentiment.conversation.completed.unknown"},
		{"odd.value *", "sentiment.conversation.completed.odd_value__"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, EventSubject(model.EventTypeCompleted, tt.direction))
	}
}
