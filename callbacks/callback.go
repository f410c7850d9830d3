// Package callbacks provides the assistant event handlers:
// fan-out, console printer, package logger and the per-run scratchpad.
package callbacks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/effective-security/auk/assistants"
	"github.com/effective-security/auk/hitl"
	"github.com/effective-security/auk/pkg/llms"
	"github.com/effective-security/auk/tools"
	"github.com/effective-security/xlog"
	"github.com/fatih/color"
)

var (
	_ assistants.Callback = (*Noop)(nil)
	_ assistants.Callback = (*Printer)(nil)
	_ assistants.Callback = (*PackageLogger)(nil)
	_ assistants.Callback = (*Fanout)(nil)
	_ assistants.Callback = (*Scratchpad)(nil)
)

// Mode defines the mode for callback printing
type Mode int

const (
	// ModeDefault prints the events
	ModeDefault Mode = iota
	// ModeVerbose prints the events with the content
	ModeVerbose
)

// Fanout is a callback handler that forwards the events to multiple callbacks.
type Fanout struct {
	callbacks []assistants.Callback
}

func NewFanout(callbacks ...assistants.Callback) *Fanout {
	return &Fanout{callbacks: callbacks}
}

func (l *Fanout) Add(callback assistants.Callback) {
	l.callbacks = append(l.callbacks, callback)
}

func (l *Fanout) OnAssistantStart(ctx context.Context, a assistants.IAssistant, input string) {
	for _, cb := range l.callbacks {
		cb.OnAssistantStart(ctx, a, input)
	}
}

func (l *Fanout) OnAssistantEnd(ctx context.Context, a assistants.IAssistant, input string, resp *llms.ContentResponse, messages []llms.Message) {
	for _, cb := range l.callbacks {
		cb.OnAssistantEnd(ctx, a, input, resp, messages)
	}
}

func (l *Fanout) OnAssistantError(ctx context.Context, a assistants.IAssistant, input string, err error, messages []llms.Message) {
	for _, cb := range l.callbacks {
		cb.OnAssistantError(ctx, a, input, err, messages)
	}
}

func (l *Fanout) OnAssistantInterrupt(ctx context.Context, a assistants.IAssistant, in *hitl.Interrupt) {
	for _, cb := range l.callbacks {
		cb.OnAssistantInterrupt(ctx, a, in)
	}
}

func (l *Fanout) OnAssistantLLMCallStart(ctx context.Context, a assistants.IAssistant, llm llms.Model, payload []llms.Message) {
	for _, cb := range l.callbacks {
		cb.OnAssistantLLMCallStart(ctx, a, llm, payload)
	}
}

func (l *Fanout) OnAssistantLLMCallEnd(ctx context.Context, a assistants.IAssistant, llm llms.Model, resp *llms.ContentResponse) {
	for _, cb := range l.callbacks {
		cb.OnAssistantLLMCallEnd(ctx, a, llm, resp)
	}
}

func (l *Fanout) OnAssistantLLMParseError(ctx context.Context, a assistants.IAssistant, input string, response string, err error) {
	for _, cb := range l.callbacks {
		cb.OnAssistantLLMParseError(ctx, a, input, response, err)
	}
}

func (l *Fanout) OnToolStart(ctx context.Context, tool tools.ITool, assistantName, input string) {
	for _, cb := range l.callbacks {
		cb.OnToolStart(ctx, tool, assistantName, input)
	}
}

func (l *Fanout) OnToolEnd(ctx context.Context, tool tools.ITool, assistantName, input string, output string) {
	for _, cb := range l.callbacks {
		cb.OnToolEnd(ctx, tool, assistantName, input, output)
	}
}

func (l *Fanout) OnToolError(ctx context.Context, tool tools.ITool, assistantName, input string, err error) {
	for _, cb := range l.callbacks {
		cb.OnToolError(ctx, tool, assistantName, input, err)
	}
}

func (l *Fanout) OnToolNotFound(ctx context.Context, a assistants.IAssistant, tool string) {
	for _, cb := range l.callbacks {
		cb.OnToolNotFound(ctx, a, tool)
	}
}

// Noop does nothing.
type Noop struct{}

func NewNoop() *Noop {
	return &Noop{}
}

func (l *Noop) OnAssistantStart(context.Context, assistants.IAssistant, string) {}
func (l *Noop) OnAssistantEnd(context.Context, assistants.IAssistant, string, *llms.ContentResponse, []llms.Message) {
}
func (l *Noop) OnAssistantError(context.Context, assistants.IAssistant, string, error, []llms.Message) {
}
func (l *Noop) OnAssistantInterrupt(context.Context, assistants.IAssistant, *hitl.Interrupt) {}
func (l *Noop) OnAssistantLLMCallStart(context.Context, assistants.IAssistant, llms.Model, []llms.Message) {
}
func (l *Noop) OnAssistantLLMCallEnd(context.Context, assistants.IAssistant, llms.Model, *llms.ContentResponse) {
}
func (l *Noop) OnAssistantLLMParseError(context.Context, assistants.IAssistant, string, string, error) {
}
func (l *Noop) OnToolStart(context.Context, tools.ITool, string, string)        {}
func (l *Noop) OnToolEnd(context.Context, tools.ITool, string, string, string)  {}
func (l *Noop) OnToolError(context.Context, tools.ITool, string, string, error) {}
func (l *Noop) OnToolNotFound(context.Context, assistants.IAssistant, string)   {}

// Printer is a callback handler that prints to the Writer,
// the event names are colored when the Writer is a terminal.
type Printer struct {
	Out  io.Writer
	Mode Mode

	lock sync.Mutex
}

var (
	eventColor = color.New(color.FgCyan)
	errorColor = color.New(color.FgRed)
	askColor   = color.New(color.FgYellow)
)

func NewPrinter(out io.Writer, mode Mode) *Printer {
	return &Printer{Out: out, Mode: mode}
}

func (l *Printer) event(c *color.Color, format string, args ...any) {
	l.lock.Lock()
	defer l.lock.Unlock()
	_, _ = c.Fprintf(l.Out, format, args...)
}

func (l *Printer) verbose(format string, args ...any) {
	if l.Mode != ModeVerbose {
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, format, args...)
}

func (l *Printer) OnAssistantStart(_ context.Context, a assistants.IAssistant, input string) {
	l.event(eventColor, "Assistant Start: %s\n", a.Name())
	l.verbose("Input: %s\n", input)
}

func (l *Printer) OnAssistantEnd(_ context.Context, a assistants.IAssistant, _ string, resp *llms.ContentResponse, _ []llms.Message) {
	l.event(eventColor, "Assistant End: %s\n", a.Name())
	for _, choice := range resp.Choices {
		if choice.Content != "" {
			l.verbose("%s\n", choice.Content)
		}
	}
}

func (l *Printer) OnAssistantError(_ context.Context, a assistants.IAssistant, _ string, err error, _ []llms.Message) {
	l.event(errorColor, "Assistant Error: %s: %s\n", a.Name(), err.Error())
}

func (l *Printer) OnAssistantInterrupt(_ context.Context, a assistants.IAssistant, in *hitl.Interrupt) {
	l.event(askColor, "Assistant Interrupt: %s: %d action(s)\n", a.Name(), len(in.Requests))
	for _, req := range in.Requests {
		l.verbose("  - %s %s\n", req.Name, string(req.Args))
	}
}

func (l *Printer) OnAssistantLLMCallStart(_ context.Context, a assistants.IAssistant, llm llms.Model, payload []llms.Message) {
	l.event(eventColor, "Assistant LLM Call: %s: %s model, %d messages\n", a.Name(), llm.GetName(), len(payload))
}

func (l *Printer) OnAssistantLLMCallEnd(_ context.Context, a assistants.IAssistant, llm llms.Model, resp *llms.ContentResponse) {
	l.event(eventColor, "Assistant LLM Call End: %s: %s model, %d choices\n", a.Name(), llm.GetName(), len(resp.Choices))
}

func (l *Printer) OnAssistantLLMParseError(_ context.Context, a assistants.IAssistant, _ string, response string, err error) {
	l.event(errorColor, "Assistant LLM Parse Error: %s: %s\n", a.Name(), err.Error())
	l.verbose("Response: %s\n", response)
}

func (l *Printer) OnToolStart(_ context.Context, tool tools.ITool, assistantName, input string) {
	l.event(eventColor, "Tool Start: %s (%s)\n", tool.Name(), assistantName)
	l.verbose("Input: %s\n", input)
}

func (l *Printer) OnToolEnd(_ context.Context, tool tools.ITool, assistantName, _ string, output string) {
	l.event(eventColor, "Tool End: %s (%s)\n", tool.Name(), assistantName)
	l.verbose("Output: %s\n", output)
}

func (l *Printer) OnToolError(_ context.Context, tool tools.ITool, assistantName, _ string, err error) {
	l.event(errorColor, "Tool Error: %s (%s): %s\n", tool.Name(), assistantName, err.Error())
}

func (l *Printer) OnToolNotFound(_ context.Context, _ assistants.IAssistant, tool string) {
	l.event(errorColor, "Tool Not Found: %s\n", tool)
}

// PackageLogger is a callback handler that prints to the logger.
type PackageLogger struct {
	logger *xlog.PackageLogger
}

func NewPackageLogger(logger *xlog.PackageLogger) *PackageLogger {
	return &PackageLogger{logger: logger}
}

func (l *PackageLogger) OnAssistantStart(ctx context.Context, a assistants.IAssistant, input string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "assistant_start",
		"assistant", a.Name(),
		"input", input,
	)
}

func (l *PackageLogger) OnAssistantEnd(ctx context.Context, a assistants.IAssistant, _ string, resp *llms.ContentResponse, messages []llms.Message) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "assistant_end",
		"assistant", a.Name(),
		"choices", len(resp.Choices),
		"messages", len(messages),
	)
}

func (l *PackageLogger) OnAssistantError(ctx context.Context, a assistants.IAssistant, _ string, err error, _ []llms.Message) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "assistant_error",
		"assistant", a.Name(),
		"err", err.Error(),
	)
}

func (l *PackageLogger) OnAssistantInterrupt(ctx context.Context, a assistants.IAssistant, in *hitl.Interrupt) {
	l.logger.ContextKV(ctx, xlog.INFO,
		"event", "assistant_interrupt",
		"assistant", a.Name(),
		"interrupt_id", in.ID,
		"requests", len(in.Requests),
	)
}

func (l *PackageLogger) OnAssistantLLMCallStart(ctx context.Context, a assistants.IAssistant, llm llms.Model, payload []llms.Message) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "assistant_llm_call_start",
		"assistant", a.Name(),
		"model", llm.GetName(),
		"messages", len(payload),
	)
}

func (l *PackageLogger) OnAssistantLLMCallEnd(ctx context.Context, a assistants.IAssistant, llm llms.Model, resp *llms.ContentResponse) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "assistant_llm_call_end",
		"assistant", a.Name(),
		"model", llm.GetName(),
		"choices", len(resp.Choices),
	)
}

func (l *PackageLogger) OnAssistantLLMParseError(ctx context.Context, a assistants.IAssistant, _ string, response string, err error) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "assistant_llm_parse_error",
		"assistant", a.Name(),
		"err", err.Error(),
		"response", response,
	)
}

func (l *PackageLogger) OnToolStart(ctx context.Context, tool tools.ITool, assistantName, input string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_start",
		"assistant", assistantName,
		"tool", tool.Name(),
		"input", input,
	)
}

func (l *PackageLogger) OnToolEnd(ctx context.Context, tool tools.ITool, assistantName, _ string, output string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_end",
		"assistant", assistantName,
		"tool", tool.Name(),
		"output", output,
	)
}

func (l *PackageLogger) OnToolError(ctx context.Context, tool tools.ITool, assistantName, _ string, err error) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "tool_error",
		"assistant", assistantName,
		"tool", tool.Name(),
		"err", err.Error(),
	)
}

func (l *PackageLogger) OnToolNotFound(ctx context.Context, a assistants.IAssistant, tool string) {
	l.logger.ContextKV(ctx, xlog.WARNING,
		"event", "tool_not_found",
		"assistant", a.Name(),
		"tool", tool,
	)
}
