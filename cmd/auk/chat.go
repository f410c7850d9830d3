package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/auk/agent"
	"github.com/effective-security/auk/callbacks"
	"github.com/effective-security/auk/chatmodel"
	"github.com/effective-security/auk/hitl"
	"github.com/effective-security/auk/pkg/llmutils"
	"github.com/effective-security/auk/tools"
	"github.com/effective-security/xlog"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	promptColor = color.New(color.FgGreen, color.Bold)
	agentColor  = color.New(color.FgCyan)
	askColor    = color.New(color.FgYellow)
	errColor    = color.New(color.FgRed)
	statsColor  = color.New(color.FgHiBlack)
)

func chatCmd() *cobra.Command {
	var (
		cfgFile string
		chatID  string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the agent, the paused tool calls are answered in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := agent.LoadConfig(cfgFile)
			if err != nil {
				return err
			}

			var (
				opts []agent.Option
				pad  *callbacks.Scratchpad
			)
			if verbose {
				pad = callbacks.NewScratchpad(callbacks.ModeDefault)
				opts = append(opts, agent.WithCallback(callbacks.NewFanout(
					callbacks.NewPrinter(cmd.ErrOrStderr(), callbacks.ModeVerbose),
					pad,
				)))
			}
			r, err := agent.New(cfg, opts...)
			if err != nil {
				return err
			}
			defer r.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			if chatID == "" {
				chatID = chatmodel.NewChatID()
			}
			c := &console{
				runner: r,
				chatID: chatID,
				in:     bufio.NewScanner(cmd.InOrStdin()),
				out:    cmd.OutOrStdout(),
				pad:    pad,
				info:   cmd.ErrOrStderr(),
			}
			return c.loop(ctx)
		},
	}

	cmd.Flags().StringVarP(&cfgFile, "config", "c", "", "Agent config file")
	cmd.Flags().StringVar(&chatID, "chat", "", "Chat ID to continue, a new chat is started if empty")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print the assistant and tool events, and the stats of each turn")
	return cmd
}

type console struct {
	runner *agent.Runner
	chatID string
	in     *bufio.Scanner
	out    io.Writer
	// pad records the turns, the stats are written to info
	pad  *callbacks.Scratchpad
	info io.Writer
}

// chatContext returns ctx with the chat of the console
func (c *console) chatContext(ctx context.Context) context.Context {
	return chatmodel.WithChatContext(ctx, chatmodel.NewChatContext(c.runner.Config().TenantID, c.chatID, nil))
}

// turn runs a call of the runner, recorded by the scratchpad if verbose
func (c *console) turn(ctx context.Context, call func(context.Context) (*agent.State, error)) (*agent.State, error) {
	if c.pad == nil {
		return call(ctx)
	}
	ctx = c.chatContext(ctx)
	c.pad.StartRun(ctx)
	s, err := call(ctx)
	if stats, transcript := c.pad.EndRun(ctx); stats != nil {
		_, _ = statsColor.Fprintf(c.info, "[%s] llm calls: %d, tokens: %d/%d, tool calls: %d, interrupts: %d, action requests: %d\n",
			stats.Duration.Round(time.Millisecond),
			stats.AssistantLLMCalls,
			stats.LLMInputTokens,
			stats.LLMOutputTokens,
			stats.ToolsCalls,
			stats.Interrupts,
			stats.ActionRequests)
		logger.KV(xlog.DEBUG, "chat_id", c.chatID, "transcript", string(transcript))
	}
	return s, err
}

// history prints the stored messages of the chat
func (c *console) history(ctx context.Context) {
	llmutils.PrintMessages(c.out, c.runner.Store().Messages(c.chatContext(ctx)))
}

func (c *console) readLine(prompt string) (string, bool) {
	_, _ = promptColor.Fprint(c.out, prompt)
	if !c.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.in.Text()), true
}

func (c *console) loop(ctx context.Context) error {
	// a chat left with a pending interrupt is resumed first
	if in, err := c.runner.Pending(ctx, c.chatID); err == nil {
		if err = c.resume(ctx, in); err != nil {
			return err
		}
	} else if !errors.Is(err, hitl.ErrInterruptNotFound) {
		return err
	}

	for ctx.Err() == nil {
		line, ok := c.readLine("> ")
		if !ok {
			return nil
		}
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/history":
			c.history(ctx)
			continue
		}

		s, err := c.turn(ctx, func(ctx context.Context) (*agent.State, error) {
			return c.runner.Invoke(ctx, c.chatID, line)
		})
		if err = c.handle(ctx, s, err); err != nil {
			return err
		}
	}
	return nil
}

// handle prints the turn output and resolves the interrupts until the turn ends
func (c *console) handle(ctx context.Context, s *agent.State, err error) error {
	for {
		if in, ok := hitl.AsInterrupt(err); ok {
			decisions, ok := c.decide(in)
			if !ok {
				return nil
			}
			s, err = c.turn(ctx, func(ctx context.Context) (*agent.State, error) {
				return c.runner.Resume(ctx, c.chatID, decisions)
			})
			continue
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			logger.KV(xlog.ERROR, "chat_id", c.chatID, "err", err.Error())
			_, _ = errColor.Fprintf(c.out, "error: %s\n", err.Error())
			return nil
		}
		_, _ = agentColor.Fprintln(c.out, s.Output)
		return nil
	}
}

func (c *console) resume(ctx context.Context, in *hitl.Interrupt) error {
	decisions, ok := c.decide(in)
	if !ok {
		return nil
	}
	s, err := c.turn(ctx, func(ctx context.Context) (*agent.State, error) {
		return c.runner.Resume(ctx, c.chatID, decisions)
	})
	return c.handle(ctx, s, err)
}

// decide asks the human for a decision on every action request
func (c *console) decide(in *hitl.Interrupt) ([]hitl.Decision, bool) {
	decisions := make([]hitl.Decision, 0, len(in.Requests))
	for _, req := range in.Requests {
		_, _ = askColor.Fprintf(c.out, "[%s] %s\n", req.Name, req.Description)
		fmt.Fprintf(c.out, "%s\n", string(req.Args))

		d, ok := c.decision(&req)
		if !ok {
			return nil, false
		}
		decisions = append(decisions, d)
	}
	return decisions, true
}

func (c *console) decision(req *hitl.ActionRequest) (hitl.Decision, bool) {
	if req.Allows(tools.DecisionRespond) {
		line, ok := c.readLine("answer> ")
		return hitl.Respond(line), ok
	}

	for {
		line, ok := c.readLine("approve? [y/n]> ")
		if !ok {
			return hitl.Decision{}, false
		}
		switch strings.ToLower(line) {
		case "y", "yes":
			if req.Allows(tools.DecisionApprove) {
				return hitl.Approve(), true
			}
		case "n", "no":
			if req.Allows(tools.DecisionReject) {
				reason, ok := c.readLine("reason> ")
				return hitl.Reject(reason), ok
			}
		}
		_, _ = errColor.Fprintf(c.out, "allowed decisions: %v\n", req.AllowedDecisions)
	}
}
