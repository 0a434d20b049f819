package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"finnguide/internal/domain"
	"finnguide/internal/infra/middleware"
	"finnguide/internal/usecase"
)

// asker is the slice of usecase.Agent the ask command drives.
type asker interface {
	Ask(ctx context.Context, query string, emit func(string)) (*usecase.Answer, error)
}

func newAskCmd(cfgPath *string) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one question, or read questions from stdin",
		Long: "Answer the question given as arguments and exit. Without arguments,\n" +
			"each line read from stdin is asked in turn, so follow-up questions\nsee the previous exchange.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			rt, err := setupRuntime(ctx, *cfgPath)
			if err != nil {
				return err
			}
			defer rt.cleanup()

			comps, err := initAgent(ctx, rt.cfg, rt.log)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(args) > 0 {
				return askOnce(ctx, comps.Agent, strings.Join(args, " "), out, verbose)
			}
			return askLoop(ctx, comps.Agent, cmd.InOrStdin(), out, verbose)
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print the tool calls behind each answer")
	return cmd
}

// askOnce streams the answer to question onto out. When the agent fails
// the apology is printed and the error returned.
func askOnce(ctx context.Context, agent asker, question string, out io.Writer, verbose bool) error {
	ctx = domain.ContextWithRequestID(ctx, middleware.NewRequestID())

	answer, err := agent.Ask(ctx, question, func(chunk string) {
		fmt.Fprint(out, chunk)
	})
	if err != nil {
		fmt.Fprintln(out, usecase.UnavailableAnswer)
		return err
	}
	fmt.Fprintln(out)

	if verbose {
		for i, step := range answer.Steps {
			fmt.Fprintf(out, "  [%d] %s(%q)\n", i+1, step.Action.Tool, step.Action.ToolInput)
		}
		fmt.Fprintf(out, "  tokens: %d prompt, %d completion\n", answer.Usage.PromptTokens, answer.Usage.CompletionTokens)
	}
	return nil
}

// askLoop asks every non-empty line of in until EOF or ctx is done.
func askLoop(ctx context.Context, agent asker, in io.Reader, out io.Writer, verbose bool) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if err := askOnce(ctx, agent, question, out, verbose); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			fmt.Fprintf(out, "  (error: %v)\n", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}
