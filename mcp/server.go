package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/auk/chatmodel"
	"github.com/effective-security/auk/hitl"
	"github.com/effective-security/auk/pkg/metricskey"
	"github.com/effective-security/auk/tools"
	"github.com/effective-security/auk/tools/auk"
	"github.com/effective-security/xlog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/auk", "mcp")

const (
	// DefaultName is the server name reported to the hosts
	DefaultName = "auk"
	// DescriptorsURI is the resource with the tool descriptors
	DescriptorsURI = "auk://descriptors"
	// MetaInterrupt is the _meta key of an interrupt result
	MetaInterrupt = "interrupt"
	// agentTag is the agent tag of the metrics
	agentTag = "mcp"
)

// Server exposes the tools of the middleware over MCP
type Server struct {
	srv        *server.MCPServer
	middleware *hitl.Middleware
	tools      []tools.ITool
}

// NewServer returns the server with the tools registered,
// the tools configured in the middleware return interrupts
func NewServer(name, version string, m *hitl.Middleware) (*Server, error) {
	s := &Server{
		srv: server.NewMCPServer(name, version,
			server.WithToolCapabilities(true),
			server.WithResourceCapabilities(false, false),
			server.WithRecovery(),
		),
		middleware: m,
		tools:      m.Tools(),
	}

	for _, t := range s.tools {
		tool, err := NewTool(t)
		if err != nil {
			return nil, err
		}
		s.srv.AddTool(tool, s.handler(t))
	}

	s.srv.AddResource(
		mcp.NewResource(DescriptorsURI, "AUK tool descriptors",
			mcp.WithResourceDescription("The name, description, input and output schemas, and the interrupt policy of the tools"),
			mcp.WithMIMEType("application/json"),
		),
		s.readDescriptors,
	)

	logger.KV(xlog.DEBUG,
		"status", "created",
		"name", name,
		"version", version,
		"tools", tools.Names(s.tools...))
	return s, nil
}

// NewTool returns the MCP tool with the input schema of t
func NewTool(t tools.ITool) (mcp.Tool, error) {
	raw, err := json.Marshal(t.Parameters())
	if err != nil {
		return mcp.Tool{}, errors.Wrapf(err, "failed to marshal schema of %s", t.Name())
	}
	return mcp.NewToolWithRawSchema(t.Name(), t.Description(), raw), nil
}

// MCPServer returns the underlying MCP server
func (s *Server) MCPServer() *server.MCPServer {
	return s.srv
}

// Descriptors returns the descriptors of the registered tools
func (s *Server) Descriptors() []auk.Descriptor {
	res := make([]auk.Descriptor, 0, len(s.tools))
	for _, t := range s.tools {
		d := auk.Describe(s.middleware.Tool(t.Name()))
		if d.InterruptOn == nil {
			if cfg, ok := s.middleware.InterruptOn()[t.Name()]; ok {
				d.InterruptOn = tools.InterruptOnMap{t.Name(): cfg}
			}
		}
		res = append(res, d)
	}
	return res
}

// ServeStdio serves the requests from stdin until it is closed
func (s *Server) ServeStdio() error {
	return errors.WithStack(server.ServeStdio(s.srv))
}

// HTTPHandler returns the streamable HTTP handler
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.srv, server.WithStateLess(true))
}

// ListenAndServe serves the streamable HTTP transport on addr,
// the server is stopped when ctx is done
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := server.NewStreamableHTTPServer(s.srv, server.WithStateLess(true))

	errCh := make(chan error, 1)
	go func() {
		logger.KV(xlog.INFO, "status", "listening", "addr", addr)
		errCh <- httpServer.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.WithStack(err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return errors.WithStack(httpServer.Shutdown(shutdownCtx))
	}
}

func (s *Server) handler(t tools.ITool) server.ToolHandlerFunc {
	name := t.Name()
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		if args == nil {
			args = map[string]any{}
		}
		input, err := json.Marshal(args)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %s", err.Error())), nil
		}

		started := time.Now()
		out, err := t.Call(ctx, string(input))
		metricskey.PerfToolCall.MeasureSince(started, name)

		if err != nil {
			var ir *hitl.InterruptRequired
			if errors.As(err, &ir) {
				metricskey.StatsInterruptsRaised.IncrCounter(1, agentTag, name)
				return InterruptResult(&ir.Request)
			}

			metricskey.StatsToolCallsFailed.IncrCounter(1, name)
			logger.ContextKV(ctx, xlog.WARNING,
				"tool", name,
				"err", err.Error())
			if errors.Is(err, chatmodel.ErrFailedUnmarshalInput) {
				return mcp.NewToolResultError(fmt.Sprintf("Tool call failed: %s", chatmodel.ErrFailedUnmarshalInput.Error())), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("Tool call failed: %s", err.Error())), nil
		}

		metricskey.StatsToolCallsSucceeded.IncrCounter(1, name)
		logger.ContextKV(ctx, xlog.DEBUG,
			"tool", name,
			"content_length", len(out))
		return mcp.NewToolResultText(out), nil
	}
}

// InterruptResult returns the action request as the tool result
func InterruptResult(req *hitl.ActionRequest) (*mcp.CallToolResult, error) {
	js, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal action request")
	}
	res := mcp.NewToolResultText(string(js))
	res.Meta = &mcp.Meta{
		AdditionalFields: map[string]any{MetaInterrupt: true},
	}
	return res, nil
}

func (s *Server) readDescriptors(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	js, err := json.MarshalIndent(s.Descriptors(), "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal descriptors")
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(js),
		},
	}, nil
}
