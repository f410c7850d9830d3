package hitl

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/auk/chatmodel"
	"github.com/effective-security/auk/pkg/llms"
	"github.com/effective-security/auk/pkg/llmutils"
	"github.com/effective-security/auk/pkg/metricskey"
	"github.com/effective-security/auk/tools"
	"github.com/effective-security/xlog"
	"github.com/google/uuid"
)

// Middleware guards the tools configured for human-in-the-loop
type Middleware struct {
	interruptOn tools.InterruptOnMap
	tools       []tools.ITool
	byName      map[string]tools.ITool
}

// New returns the middleware for the tools,
// the tools not in interruptOn run without a guard
func New(interruptOn tools.InterruptOnMap, list ...tools.ITool) *Middleware {
	return &Middleware{
		interruptOn: interruptOn,
		tools:       list,
		byName:      tools.ByName(list...),
	}
}

// InterruptOn returns the policy
func (m *Middleware) InterruptOn() tools.InterruptOnMap {
	return m.interruptOn
}

// Tools returns the tools in the original order,
// the configured tools are replaced by guards
func (m *Middleware) Tools() []tools.ITool {
	list := make([]tools.ITool, 0, len(m.tools))
	for _, t := range m.tools {
		list = append(list, m.Guard(t))
	}
	return list
}

// Guard returns the guarded tool if it is configured, or the tool itself
func (m *Middleware) Guard(t tools.ITool) tools.ITool {
	cfg, ok := m.interruptOn[t.Name()]
	if !ok || len(cfg.AllowedDecisions) == 0 {
		return t
	}
	return &guard{ITool: t, cfg: cfg}
}

// Tool returns the unguarded tool by name
func (m *Middleware) Tool(name string) tools.ITool {
	return m.byName[name]
}

// guard interrupts every call
type guard struct {
	tools.ITool
	cfg tools.InterruptOnConfig
}

// Unwrap returns the guarded tool
func (g *guard) Unwrap() tools.ITool {
	return g.ITool
}

func (g *guard) Call(_ context.Context, input string) (string, error) {
	return "", &InterruptRequired{
		Request: NewActionRequest(g.Name(), input, g.cfg),
	}
}

// NewActionRequest returns the request for the tool call
func NewActionRequest(name, input string, cfg tools.InterruptOnConfig) ActionRequest {
	args := llmutils.CleanJSON([]byte(input))
	if !json.Valid(args) {
		args, _ = json.Marshal(input)
	}
	desc := cfg.Description
	if desc == "" {
		desc = fmt.Sprintf("Tool execution requires approval\n\nTool: %s\nArgs: %s", name, args)
	}
	return ActionRequest{
		ID:               uuid.NewString(),
		Name:             name,
		Args:             json.RawMessage(args),
		Description:      desc,
		AllowedDecisions: cfg.AllowedDecisions,
	}
}

// Resume validates the decisions, one per action request in the same order,
// and returns the tool results.
func (m *Middleware) Resume(ctx context.Context, in *Interrupt, decisions []Decision) ([]llms.ToolCallResponse, error) {
	if in == nil {
		return nil, errors.WithStack(ErrInterruptNotFound)
	}
	if len(decisions) != len(in.Requests) {
		return nil, errors.WithMessagef(ErrDecisionMismatch, "expected %d decisions, got %d", len(in.Requests), len(decisions))
	}
	for i, d := range decisions {
		req := &in.Requests[i]
		if !d.Type.IsValid() || !req.Allows(d.Type) {
			return nil, errors.WithMessagef(ErrDecisionNotAllowed, "%s: %q", req.Name, d.Type)
		}
		if d.Type == tools.DecisionEdit {
			if cfg, ok := m.interruptOn[req.Name]; ok {
				if err := ValidateArgs(cfg.ArgsSchema, d.EditedArgs); err != nil {
					return nil, errors.WithMessagef(err, "%s: invalid edited arguments", req.Name)
				}
			}
		}
	}

	res := make([]llms.ToolCallResponse, 0, len(decisions))
	for i, d := range decisions {
		req := &in.Requests[i]
		content, err := m.apply(ctx, req, d)
		if err != nil {
			return nil, err
		}
		metricskey.StatsInterruptDecisions.IncrCounter(1, req.Name, string(d.Type))
		logger.ContextKV(ctx, xlog.DEBUG,
			"interrupt", in.ID,
			"tool", req.Name,
			"tool_call_id", req.ToolCallID,
			"decision", d.Type)

		res = append(res, llms.ToolCallResponse{
			ToolCallID: req.ToolCallID,
			Name:       req.Name,
			Content:    content,
		})
	}
	return res, nil
}

func (m *Middleware) apply(ctx context.Context, req *ActionRequest, d Decision) (string, error) {
	switch d.Type {
	case tools.DecisionRespond:
		return d.Message, nil
	case tools.DecisionReject:
		return RejectedPrefix + d.Message, nil
	}

	tool := m.byName[req.Name]
	if tool == nil {
		return "", errors.Newf("tool %s not found", req.Name)
	}

	input := req.Input()
	if d.Type == tools.DecisionEdit {
		input = llmutils.ToJSON(d.EditedArgs)
	}
	out, err := tool.Call(ctx, input)
	if err != nil {
		if errors.Is(err, chatmodel.ErrFailedUnmarshalInput) {
			return "", errors.WithMessagef(err, "%s: invalid arguments", req.Name)
		}
		logger.ContextKV(ctx, xlog.WARNING, "tool", req.Name, "err", err.Error())
		return fmt.Sprintf("Tool call failed: %s", err.Error()), nil
	}
	return out, nil
}

// ToolMessages returns a tool message per response
func ToolMessages(responses []llms.ToolCallResponse) []llms.Message {
	msgs := make([]llms.Message, 0, len(responses))
	for _, r := range responses {
		msgs = append(msgs, llms.MessageFromToolResponse(llms.RoleTool, r))
	}
	return msgs
}
