// Package main is the interactive terminal front end.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/capitalize-ai/sentiment-support-agent/internal/bootstrap"
	"github.com/capitalize-ai/sentiment-support-agent/internal/config"
	"github.com/capitalize-ai/sentiment-support-agent/internal/service"
	"github.com/capitalize-ai/sentiment-support-agent/pkg/logger"
)

func main() {
	cfg := config.Load()

	// Logs go to stderr so they do not interleave with the conversation.
	log, err := logger.NewStderr(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer rt.Close(context.Background())

	rt.DrainSpool(ctx)

	fmt.Printf("%s\nSENTIMENT SUPPORT AGENT\n%s\n", rule, rule)
	fmt.Printf("Using %s %s\n", cfg.LLMProvider, cfg.Model())
	fmt.Println("\nType your messages below")
	fmt.Println("Type 'quit' to exit without saving")
	fmt.Println("Type 'bye' or 'goodbye' to end and save the conversation")
	fmt.Println("Type 'stats' to see database statistics")

	r := newREPL(os.Stdin, os.Stdout, nil, rt.Store)
	userID, _ := r.prompt("\nEnter your user ID (or press Enter for 'anonymous'): ")
	r.chat = service.NewChatService(rt.Deps(), bootstrap.ChatConfig(cfg), userID)

	if err := r.run(ctx); err != nil {
		log.Error("conversation aborted", zap.Error(err))
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
	}

	fmt.Println("\nThank you for using the support agent!")
}
