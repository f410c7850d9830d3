package graph_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/auk/graph"
	"github.com/effective-security/auk/hitl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type state struct {
	Visited []string
	Count   int
}

func visit(name string) graph.NodeFunc[state] {
	return func(_ context.Context, s state) (state, error) {
		s.Visited = append(s.Visited, name)
		s.Count++
		return s, nil
	}
}

func TestCompile(t *testing.T) {
	t.Parallel()

	tcases := []struct {
		name  string
		build func() *graph.StateGraph[state]
		err   error
		msg   string
	}{
		{
			name: "no entry point",
			build: func() *graph.StateGraph[state] {
				return graph.New[state]().AddNode("a", visit("a"))
			},
			err: graph.ErrNoEntryPoint,
		},
		{
			name: "unknown target",
			build: func() *graph.StateGraph[state] {
				return graph.New[state]().AddNode("a", visit("a")).AddEdge(graph.START, "b")
			},
			err: graph.ErrUnknownNode,
			msg: `edge __start__ -> b: "b": unknown node`,
		},
		{
			name: "unknown source",
			build: func() *graph.StateGraph[state] {
				return graph.New[state]().AddNode("a", visit("a")).
					AddEdge(graph.START, "a").
					AddEdge("c", graph.END)
			},
			err: graph.ErrUnknownNode,
		},
		{
			name: "duplicate node",
			build: func() *graph.StateGraph[state] {
				return graph.New[state]().AddNode("a", visit("a")).AddNode("a", visit("a")).AddEdge(graph.START, "a")
			},
			err: graph.ErrDuplicateNode,
		},
		{
			name: "duplicate edge",
			build: func() *graph.StateGraph[state] {
				return graph.New[state]().AddNode("a", visit("a")).AddNode("b", visit("b")).
					AddEdge(graph.START, "a").
					AddEdge("a", "b").
					AddEdge("a", graph.END)
			},
			err: graph.ErrDuplicateEdge,
		},
		{
			name: "reserved name",
			build: func() *graph.StateGraph[state] {
				return graph.New[state]().AddNode(graph.END, visit("a")).AddEdge(graph.START, graph.END)
			},
			msg: `invalid node name "__end__"`,
		},
		{
			name: "edge to start",
			build: func() *graph.StateGraph[state] {
				return graph.New[state]().AddNode("a", visit("a")).
					AddEdge(graph.START, "a").
					AddEdge("a", graph.START)
			},
			msg: "invalid edge a -> __start__",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.build().Compile()
			require.Error(t, err)
			if tc.err != nil {
				assert.True(t, errors.Is(err, tc.err), "unexpected error: %v", err)
			}
			if tc.msg != "" {
				assert.EqualError(t, err, tc.msg)
			}
		})
	}
}

func TestInvoke(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("single node", func(t *testing.T) {
		g, err := graph.New[state]().
			AddNode("a", visit("a")).
			AddEdge(graph.START, "a").
			Compile()
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, g.Nodes())

		res, err := g.Invoke(ctx, state{})
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, res.Visited)
		assert.Equal(t, 1, res.Count)
	})

	t.Run("chain", func(t *testing.T) {
		g, err := graph.New[state]().
			AddNode("a", visit("a")).
			AddNode("b", visit("b")).
			AddNode("c", visit("c")).
			AddEdge(graph.START, "a").
			AddEdge("a", "b").
			AddEdge("b", "c").
			AddEdge("c", graph.END).
			Compile()
		require.NoError(t, err)

		res, err := g.Invoke(ctx, state{})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, res.Visited)
	})

	t.Run("cycle", func(t *testing.T) {
		g, err := graph.New[state]().
			AddNode("a", visit("a")).
			AddNode("b", visit("b")).
			AddEdge(graph.START, "a").
			AddEdge("a", "b").
			AddEdge("b", "a").
			WithMaxSteps(5).
			Compile()
		require.NoError(t, err)

		res, err := g.Invoke(ctx, state{})
		assert.True(t, errors.Is(err, graph.ErrMaxStepsExceeded))
		assert.Equal(t, 5, res.Count)
	})

	t.Run("interrupt", func(t *testing.T) {
		pending := hitl.NewInterrupt("chat1", hitl.ActionRequest{Name: "ask_user_with_options"})
		g, err := graph.New[state]().
			AddNode("a", visit("a")).
			AddNode("b", func(_ context.Context, s state) (state, error) {
				return s, pending
			}).
			AddNode("c", visit("c")).
			AddEdge(graph.START, "a").
			AddEdge("a", "b").
			AddEdge("b", "c").
			Compile()
		require.NoError(t, err)

		res, err := g.Invoke(ctx, state{})
		require.Error(t, err)
		in, ok := hitl.AsInterrupt(err)
		require.True(t, ok)
		assert.Same(t, pending, in)
		assert.Equal(t, []string{"a"}, res.Visited)
	})

	t.Run("canceled", func(t *testing.T) {
		g, err := graph.New[state]().
			AddNode("a", visit("a")).
			AddEdge(graph.START, "a").
			Compile()
		require.NoError(t, err)

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err = g.Invoke(cctx, state{})
		assert.True(t, errors.Is(err, context.Canceled))
	})
}
