package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/capitalize-ai/sentiment-support-agent/internal/model"
	"github.com/capitalize-ai/sentiment-support-agent/internal/service"
	"github.com/capitalize-ai/sentiment-support-agent/internal/store"
	"github.com/capitalize-ai/sentiment-support-agent/internal/usage"
)

// repl is the interactive terminal loop over one ChatService.
type repl struct {
	in    *bufio.Scanner
	out   io.Writer
	chat  *service.ChatService
	store store.Store
}

func newREPL(in io.Reader, out io.Writer, chat *service.ChatService, st store.Store) *repl {
	return &repl{in: bufio.NewScanner(in), out: out, chat: chat, store: st}
}

func (r *repl) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

// prompt writes label and reads one trimmed line. ok is false at end of input.
func (r *repl) prompt(label string) (string, bool) {
	r.printf("%s", label)
	if !r.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(r.in.Text()), true
}

// run drives the conversation until the user quits, declines a new
// conversation or input ends. Only a credential failure is returned.
func (r *repl) run(ctx context.Context) error {
	for {
		line, ok := r.prompt("\nYou: ")
		if !ok {
			r.printf("\nExiting...\n")
			return nil
		}
		if line == "" {
			continue
		}

		switch strings.ToLower(line) {
		case "quit":
			r.printf("\nExiting without saving conversation...\n")
			r.printCost(r.chat.Cost())
			return nil
		case "stats":
			r.printStats(ctx)
			continue
		}

		r.printf("\nProcessing...\n")
		resp, err := r.chat.SendMessage(ctx, line)
		if err != nil {
			return err
		}
		r.printResponse(resp)

		if r.chat.IsActive() {
			continue
		}

		r.printf("\nConversation completed!\n")
		id, err := r.chat.EndConversation(ctx)
		switch {
		case errors.Is(err, service.ErrSpooled):
			r.printf("Document store unavailable; conversation queued for retry.\n")
		case err != nil:
			r.printf("Failed to save conversation: %v\n", err)
		case id != "":
			r.printf("Conversation saved with ID: %s\n", id)
		}
		r.printCost(r.chat.Cost())

		again, ok := r.prompt("\nStart new conversation? (y/n): ")
		if !ok || strings.ToLower(again) != "y" {
			return nil
		}
		r.chat.Restart()
	}
}

func (r *repl) printResponse(resp *model.Response) {
	r.printf("\nAssistant: %s\n", resp.Response)

	s := resp.ConversationSummary
	if s == nil {
		return
	}

	r.printf("\n%s\nCONVERSATION SUMMARY\n%s\n", rule, rule)
	r.printf("User messages:     %d\n", s.TotalUserMessages)
	r.printf("Overall direction: %s\n", s.Overall.Direction)
	r.printf("Average sentiment: %.2f\n", s.Overall.AverageScore)
	r.printf("Narrative:         %s\n", s.Overall.NarrativeDescription)

	r.printf("\nSentiment journey\n")
	for _, p := range []struct {
		name  string
		phase model.Phase
	}{
		{"Opening", s.Journey.Opening},
		{"Middle", s.Journey.Middle},
		{"Closing", s.Journey.Closing},
	} {
		r.printf("  %-8s %s (%.2f) %s\n", p.name, p.phase.Sentiment, p.phase.Score, p.phase.Description)
	}
	r.printf("  Mood shift: %s\n", s.Journey.MoodShiftAnalysis)

	if len(s.KeyEmotionalMoments) > 0 {
		r.printf("\nKey emotional moments\n")
		for _, m := range s.KeyEmotionalMoments {
			r.printf("  #%d %s (%.2f) %s\n", m.MessageNumber, m.SentimentClassification, m.SentimentScore, m.Significance)
		}
	}

	if len(s.Insights) > 0 {
		r.printf("\nInsights\n")
		for _, in := range s.Insights {
			r.printf("  - %s\n", in)
		}
	}
}

func (r *repl) printCost(est model.CostEstimate) {
	m := r.chat.Metrics()
	r.printf("\n%s\nUSAGE\n%s\n", rule, rule)
	r.printf("Messages: %d   Duration: %s\n", m.MessageCount, usage.FormatDuration(time.Duration(m.DurationSeconds*float64(time.Second))))
	r.printf("Tokens:   %s in / %s out / %s total\n",
		usage.FormatTokens(est.InputTokens), usage.FormatTokens(est.OutputTokens), usage.FormatTokens(est.TotalTokens))
	r.printf("Cost:     %s in / %s out / %s total\n",
		usage.FormatCost(est.InputCost), usage.FormatCost(est.OutputCost), usage.FormatCost(est.TotalCost))
}

func (r *repl) printStats(ctx context.Context) {
	stats, err := r.store.Statistics(ctx)
	if err != nil {
		r.printf("Error retrieving statistics: %v\n", err)
		return
	}
	r.printf("\n%s\nDATABASE STATISTICS\n%s\n", rule, rule)
	r.printf("Conversations:     %d\n", stats.TotalConversations)
	r.printf("Messages:          %d\n", stats.TotalMessages)
	r.printf("Average sentiment: %.3f\n", stats.AverageSentiment)
}

const rule = "============================================================"
