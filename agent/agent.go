// Package agent wires the AUK tools into a one-node state graph:
// an assistant with the human-in-the-loop middleware, persisting
// the pending interrupts to resume the chat with the human decisions.
package agent

import (
	"context"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/auk/assistants"
	"github.com/effective-security/auk/chatmodel"
	"github.com/effective-security/auk/encoding"
	"github.com/effective-security/auk/graph"
	"github.com/effective-security/auk/hitl"
	"github.com/effective-security/auk/pkg/llmfactory"
	"github.com/effective-security/auk/pkg/llms"
	"github.com/effective-security/auk/pkg/llms/openai"
	"github.com/effective-security/auk/pkg/prompts"
	"github.com/effective-security/auk/store"
	"github.com/effective-security/auk/tools"
	"github.com/effective-security/auk/tools/auk"
	"github.com/effective-security/auk/tools/tavily"
	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/auk", "agent")

// NodeName is the name of the assistant node
const NodeName = "a"

// AssistantName is the name of the agent assistant
const AssistantName = "auk"

// ErrPendingInterrupt is returned when a new input is sent
// to the chat that waits for human decisions
var ErrPendingInterrupt = errors.New("chat has a pending interrupt")

// Option configures the Runner
type Option func(*Runner)

// WithLLM sets the model instead of creating it from the config
func WithLLM(llm llms.Model) Option {
	return func(r *Runner) {
		r.llm = llm
	}
}

// WithMessageStore sets the chat history store
func WithMessageStore(s store.MessageStore) Option {
	return func(r *Runner) {
		r.store = s
	}
}

// WithCheckpointStore sets the store of the pending interrupts
func WithCheckpointStore(s hitl.CheckpointStore) Option {
	return func(r *Runner) {
		r.checkpoints = s
	}
}

// WithImageGenerator replaces the static images of the config
func WithImageGenerator(gen auk.ImageGenerator) Option {
	return func(r *Runner) {
		r.images = gen
	}
}

// WithCallback sets the assistant callback
func WithCallback(cb assistants.Callback) Option {
	return func(r *Runner) {
		r.callback = cb
	}
}

// WithTools adds tools after the AUK tools
func WithTools(list ...tools.ITool) Option {
	return func(r *Runner) {
		r.extra = append(r.extra, list...)
	}
}

// Runner runs the agent graph for a chat
type Runner struct {
	cfg         *Config
	llm         llms.Model
	store       store.MessageStore
	checkpoints hitl.CheckpointStore
	images      auk.ImageGenerator
	callback    assistants.Callback
	extra       []tools.ITool
	redis       redis.UniversalClient

	middleware *hitl.Middleware
	graph      *graph.CompiledGraph[*State]
	turns      turnLocks
}

// New returns the Runner for the config
func New(cfg *Config, opts ...Option) (*Runner, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Runner{cfg: cfg}
	for _, opt := range opts {
		opt(r)
	}

	if r.llm == nil {
		llm, err := newLLM(cfg)
		if err != nil {
			return nil, err
		}
		r.llm = llm
	}
	if err := r.openStores(); err != nil {
		return nil, err
	}
	if r.images == nil {
		r.images = auk.StaticImages(cfg.ImageURLs...)
	}

	list := auk.All(r.images)
	if cfg.Tavily != nil {
		search, err := tavily.New(*cfg.Tavily)
		if err != nil {
			return nil, errors.WithMessage(err, "failed to create web search tool")
		}
		list = append(list, search)
	}
	list = append(list, r.extra...)
	r.middleware = hitl.New(auk.DefaultInterruptOn(), list...)

	g, err := graph.New[*State]().
		AddNode(NodeName, r.callAssistant).
		AddEdge(graph.START, NodeName).
		Compile()
	if err != nil {
		return nil, err
	}
	r.graph = g

	logger.KV(xlog.DEBUG,
		"status", "created",
		"model", r.llm.GetName(),
		"provider", r.llm.GetProviderType(),
		"tools", tools.Names(list...),
		"store", cfg.Store.Kind,
	)
	return r, nil
}

func newLLM(cfg *Config) (llms.Model, error) {
	if len(cfg.LLM.Providers) == 0 {
		return openai.New(openai.WithModel(cfg.Model))
	}
	model, err := llmfactory.New(&cfg.LLM).AssistantModel(AssistantName, cfg.Model)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create LLM")
	}
	return model, nil
}

func (r *Runner) openStores() error {
	if r.store != nil && r.checkpoints != nil {
		return nil
	}

	switch r.cfg.Store.Kind {
	case StoreRedis:
		opts, err := redis.ParseURL(r.cfg.Store.RedisURL)
		if err != nil {
			return errors.Wrap(err, "invalid redis URL")
		}
		ttl, err := r.cfg.Store.GetTTL()
		if err != nil {
			return err
		}
		r.redis = redis.NewClient(opts)
		if r.store == nil {
			r.store = store.NewRedisStore(r.redis, r.cfg.Store.Prefix, ttl)
		}
		if r.checkpoints == nil {
			r.checkpoints = hitl.NewRedisCheckpointStore(r.redis, r.cfg.Store.Prefix, ttl)
		}
	default:
		if r.store == nil {
			r.store = store.NewMemoryStore()
		}
		if r.checkpoints == nil {
			r.checkpoints = hitl.NewMemoryCheckpointStore()
		}
	}
	return nil
}

// Close releases the store connections
func (r *Runner) Close() error {
	if r.redis != nil {
		return errors.WithStack(r.redis.Close())
	}
	return nil
}

// Config returns the agent config
func (r *Runner) Config() *Config {
	return r.cfg
}

// Tools returns the tools of the agent, the interrupting tools are guarded
func (r *Runner) Tools() []tools.ITool {
	return r.middleware.Tools()
}

// Middleware returns the human-in-the-loop middleware
func (r *Runner) Middleware() *hitl.Middleware {
	return r.middleware
}

// Store returns the chat history store
func (r *Runner) Store() store.MessageStore {
	return r.store
}

// Graph returns the compiled agent graph
func (r *Runner) Graph() *graph.CompiledGraph[*State] {
	return r.graph
}

// NewAssistant returns the agent assistant
func (r *Runner) NewAssistant() *assistants.Assistant[chatmodel.String] {
	opts := []assistants.Option{
		assistants.WithMode(encoding.ModePlainText),
		assistants.WithStore(r.store),
	}
	if r.cfg.MaxToolCalls > 0 {
		opts = append(opts, assistants.WithMaxToolCalls(r.cfg.MaxToolCalls))
	}
	if r.callback != nil {
		opts = append(opts, assistants.WithCallback(r.callback))
	}

	return assistants.NewAssistant[chatmodel.String](r.llm,
		prompts.NewPromptTemplate(r.cfg.SystemPrompt, nil),
		opts...).
		WithName(AssistantName).
		WithDescription("An assistant that interacts with the user through forms, options, cards, charts, files and images.").
		WithTools(r.middleware.Tools()...)
}

// callAssistant is the graph node
func (r *Runner) callAssistant(ctx context.Context, s *State) (*State, error) {
	a := r.NewAssistant()

	var out chatmodel.String
	_, err := a.Run(ctx, &assistants.CallInput{
		Input:    s.Input,
		Messages: s.Messages,
	}, &out)
	if err != nil {
		return s, err
	}

	next := *s
	next.Output = out.GetContent()
	next.Messages = a.LastRunMessages()
	next.Interrupt = nil
	return &next, nil
}

// context returns the context of the chat
func (r *Runner) context(ctx context.Context, chatID string) (context.Context, string, string) {
	tenantID := r.cfg.TenantID
	if c := chatmodel.GetChatContext(ctx); c != nil {
		tenantID = c.GetTenantID()
		if chatID == "" {
			chatID = c.GetChatID()
		}
	}
	cc := chatmodel.NewChatContext(tenantID, chatID, nil)
	return chatmodel.WithChatContext(ctx, cc), cc.GetTenantID(), cc.GetChatID()
}

// Invoke runs a turn of the chat with the human input,
// a new chat is started if chatID is empty.
// When the turn is paused, the returned state has the Interrupt,
// and the error is the *hitl.Interrupt.
func (r *Runner) Invoke(ctx context.Context, chatID, input string) (*State, error) {
	ctx, tenantID, chatID := r.context(ctx, chatID)

	unlock := r.turns.acquire(tenantID, chatID)
	defer unlock()

	_, err := r.checkpoints.Load(ctx, tenantID, chatID)
	if err == nil {
		return nil, errors.WithMessagef(ErrPendingInterrupt, "chat %s", chatID)
	}
	if !errors.Is(err, hitl.ErrInterruptNotFound) {
		return nil, err
	}

	return r.invoke(ctx, tenantID, &State{
		ChatID: chatID,
		Input:  input,
	})
}

// Resume applies the human decisions to the pending interrupt of the chat,
// one decision per action request, and continues the turn.
// The checkpoint is taken before the decisions are applied, so concurrent
// resumes of the same chat do not apply the decisions twice; it is restored
// if the turn fails without a new interrupt.
func (r *Runner) Resume(ctx context.Context, chatID string, decisions []hitl.Decision) (*State, error) {
	ctx, tenantID, chatID := r.context(ctx, chatID)

	unlock := r.turns.acquire(tenantID, chatID)
	defer unlock()

	cp, err := r.checkpoints.Take(ctx, tenantID, chatID)
	if err != nil {
		return nil, err
	}
	in := cp.Restore()

	responses, err := r.middleware.Resume(ctx, in, decisions)
	if err != nil {
		r.restore(ctx, tenantID, chatID, cp)
		return nil, err
	}

	messages := slices.Concat(in.Messages, hitl.ToolMessages(responses))
	s, err := r.invoke(ctx, tenantID, &State{
		ChatID:   chatID,
		Messages: messages,
	})
	if err != nil {
		if _, ok := hitl.AsInterrupt(err); !ok {
			r.restore(ctx, tenantID, chatID, cp)
		}
		return s, err
	}
	return s, nil
}

// restore puts back the taken checkpoint, so the failed resume can be retried
func (r *Runner) restore(ctx context.Context, tenantID, chatID string, cp *hitl.Checkpoint) {
	if err := r.checkpoints.Save(ctx, tenantID, chatID, cp); err != nil {
		logger.ContextKV(ctx, xlog.ERROR,
			"chat_id", chatID,
			"status", "failed_to_restore_checkpoint",
			"err", err.Error())
	}
}

// Pending returns the pending interrupt of the chat
func (r *Runner) Pending(ctx context.Context, chatID string) (*hitl.Interrupt, error) {
	ctx, tenantID, chatID := r.context(ctx, chatID)
	cp, err := r.checkpoints.Load(ctx, tenantID, chatID)
	if err != nil {
		return nil, err
	}
	return cp.Restore(), nil
}

func (r *Runner) invoke(ctx context.Context, tenantID string, s *State) (*State, error) {
	res, err := r.graph.Invoke(ctx, s)
	if err != nil {
		in, ok := hitl.AsInterrupt(err)
		if !ok {
			return nil, err
		}

		if serr := r.checkpoints.Save(ctx, tenantID, s.ChatID, hitl.NewCheckpoint(in)); serr != nil {
			return nil, errors.WithMessage(serr, "failed to save checkpoint")
		}
		logger.ContextKV(ctx, xlog.DEBUG,
			"chat_id", s.ChatID,
			"status", "interrupted",
			"interrupt_id", in.ID,
			"requests", len(in.Requests))

		paused := *res
		paused.Interrupt = in
		paused.Output = ""
		return &paused, in
	}
	return res, nil
}
