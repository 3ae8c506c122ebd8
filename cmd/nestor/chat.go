package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/nestor-ai/nestor/pkg/llms"
	"github.com/nestor-ai/nestor/pkg/orchestrator"
)

// ChatCmd talks to the assistant from the terminal: an interactive REPL when
// stdin is a terminal, a one-shot generation when input is piped.
type ChatCmd struct {
	Model string `help:"Model id to use (gemini, openai)."`
}

func (c *ChatCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	cleanup, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	if c.Model != "" {
		if err := rt.agents.SetCurrentModel(c.Model); err != nil {
			return err
		}
	}

	ctx := context.Background()
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return c.oneShot(ctx, rt)
	}
	return c.repl(ctx, rt)
}

// oneShot reads the whole of stdin as a single prompt.
func (c *ChatCmd) oneShot(ctx context.Context, rt *runtime) error {
	input, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	prompt := strings.TrimSpace(string(input))
	if prompt == "" {
		return fmt.Errorf("empty prompt")
	}

	reply := rt.orch.GenerateResponse(ctx, orchestrator.Request{Prompt: prompt, Model: c.Model})
	fmt.Println(reply)
	return nil
}

// repl runs the interactive loop, streaming each reply as it arrives.
func (c *ChatCmd) repl(ctx context.Context, rt *runtime) error {
	fmt.Printf("nestor (%s) — type a message, or 'exit' to quit.\n", rt.agents.CurrentModel().ID)

	var history []llms.Message
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		history = append(history, llms.Message{Role: llms.RoleUser, Content: line})

		chunks, err := rt.orch.StreamResponse(ctx, history)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}

		var reply strings.Builder
		for chunk := range chunks {
			fmt.Print(chunk)
			reply.WriteString(chunk)
		}
		fmt.Println()

		history = append(history, llms.Message{Role: llms.RoleAssistant, Content: reply.String()})
	}
}
