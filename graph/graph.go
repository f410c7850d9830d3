// Package graph runs nodes over a shared state, following the edges
// from START until END.
package graph

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/auk/chatmodel"
	"github.com/effective-security/auk/pkg/metricskey"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/auk", "graph")

const (
	// START is the virtual entry node
	START = "__start__"
	// END is the virtual exit node
	END = "__end__"

	// DefaultMaxSteps limits the number of node runs in one Invoke
	DefaultMaxSteps = 25
)

var (
	// ErrNoEntryPoint is returned by Compile when there is no edge from START
	ErrNoEntryPoint = errors.New("graph has no entry point")
	// ErrUnknownNode is returned by Compile when an edge references a node that is not added
	ErrUnknownNode = errors.New("unknown node")
	// ErrDuplicateNode is returned by Compile when a node is added twice
	ErrDuplicateNode = errors.New("duplicate node")
	// ErrDuplicateEdge is returned by Compile when a node has more than one outgoing edge
	ErrDuplicateEdge = errors.New("duplicate edge")
	// ErrMaxStepsExceeded is returned by Invoke when the walk does not reach END
	ErrMaxStepsExceeded = errors.New("max steps exceeded")
)

// NodeFunc updates the state
type NodeFunc[S any] func(ctx context.Context, state S) (S, error)

type edge struct {
	from, to string
}

// StateGraph is the builder of a graph, errors are reported by Compile
type StateGraph[S any] struct {
	nodes    map[string]NodeFunc[S]
	order    []string
	edges    []edge
	errs     []error
	maxSteps int
}

// New returns an empty graph
func New[S any]() *StateGraph[S] {
	return &StateGraph[S]{
		nodes:    map[string]NodeFunc[S]{},
		maxSteps: DefaultMaxSteps,
	}
}

// AddNode adds the node
func (g *StateGraph[S]) AddNode(name string, fn NodeFunc[S]) *StateGraph[S] {
	switch {
	case name == "" || name == START || name == END:
		g.errs = append(g.errs, errors.Newf("invalid node name %q", name))
	case fn == nil:
		g.errs = append(g.errs, errors.Newf("node %s: function is required", name))
	case g.nodes[name] != nil:
		g.errs = append(g.errs, errors.WithMessagef(ErrDuplicateNode, "node %s", name))
	default:
		g.nodes[name] = fn
		g.order = append(g.order, name)
	}
	return g
}

// AddEdge adds the edge, the nodes are checked by Compile
func (g *StateGraph[S]) AddEdge(from, to string) *StateGraph[S] {
	g.edges = append(g.edges, edge{from: from, to: to})
	return g
}

// WithMaxSteps sets the limit of node runs in one Invoke
func (g *StateGraph[S]) WithMaxSteps(n int) *StateGraph[S] {
	if n > 0 {
		g.maxSteps = n
	}
	return g
}

// Compile validates the graph
func (g *StateGraph[S]) Compile() (*CompiledGraph[S], error) {
	switch len(g.errs) {
	case 0:
	case 1:
		return nil, g.errs[0]
	default:
		return nil, errors.Join(g.errs...)
	}

	next := make(map[string]string, len(g.edges))
	for _, e := range g.edges {
		if e.from == END || e.to == START {
			return nil, errors.Newf("invalid edge %s -> %s", e.from, e.to)
		}
		if e.from != START && g.nodes[e.from] == nil {
			return nil, errors.WithMessagef(ErrUnknownNode, "edge %s -> %s: %q", e.from, e.to, e.from)
		}
		if e.to != END && g.nodes[e.to] == nil {
			return nil, errors.WithMessagef(ErrUnknownNode, "edge %s -> %s: %q", e.from, e.to, e.to)
		}
		if prev, ok := next[e.from]; ok {
			return nil, errors.WithMessagef(ErrDuplicateEdge, "%s -> %s, already %s -> %s", e.from, e.to, e.from, prev)
		}
		next[e.from] = e.to
	}
	if _, ok := next[START]; !ok {
		return nil, errors.WithStack(ErrNoEntryPoint)
	}

	return &CompiledGraph[S]{
		nodes:    maps.Clone(g.nodes),
		order:    slices.Clone(g.order),
		next:     next,
		maxSteps: g.maxSteps,
	}, nil
}

// CompiledGraph is a validated graph, safe for concurrent use
type CompiledGraph[S any] struct {
	nodes    map[string]NodeFunc[S]
	order    []string
	next     map[string]string
	maxSteps int
}

// Nodes returns the node names in the order they were added
func (g *CompiledGraph[S]) Nodes() []string {
	return slices.Clone(g.order)
}

// Invoke runs the nodes from START until END, or a node without an outgoing edge.
// The state returned with an error is the state before the failed node,
// and a node error is returned as is, so a pending interrupt can be found by errors.As.
func (g *CompiledGraph[S]) Invoke(ctx context.Context, state S) (S, error) {
	started := time.Now()
	tenantID, chatID, _ := chatmodel.GetTenantAndChatID(ctx)
	defer metricskey.PerfGraphInvoke.MeasureSince(started, tenantID)

	current := g.next[START]
	for step := 0; current != END; step++ {
		if step >= g.maxSteps {
			return state, errors.WithMessagef(ErrMaxStepsExceeded, "after %d steps", step)
		}
		if err := ctx.Err(); err != nil {
			return state, errors.WithStack(err)
		}

		logger.ContextKV(ctx, xlog.DEBUG,
			"chat_id", chatID,
			"node", current,
			"step", step,
		)

		res, err := g.nodes[current](ctx, state)
		if err != nil {
			return state, err
		}
		state = res

		to, ok := g.next[current]
		if !ok {
			break
		}
		current = to
	}
	return state, nil
}
