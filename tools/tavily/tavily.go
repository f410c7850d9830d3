package tavily

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/cockroachdb/errors"
	tavilygo "github.com/diverged/tavily-go"
	tavilyModels "github.com/diverged/tavily-go/models"
	"github.com/effective-security/auk/tools"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/auk/tools", "tavily")

// ToolName is the name of the web search tool
const ToolName = "web_search"

// SearchRequest represents the tool input.
type SearchRequest struct {
	Query string `json:"query" yaml:"Query" validate:"required" jsonschema:"title=Search Query,description=The query to search web."`
}

// SearchResult represents the structure for a search response
type SearchResult struct {
	Results []tavilyModels.SearchResult `json:"results" yaml:"Results" jsonschema:"title=results,description=The results from a web search."`
	Answer  string                      `json:"answer,omitempty" yaml:"Answer" jsonschema:"title=answer,description=The aggregated answer from a web search."`
}

// Config of the web search tool
type Config struct {
	// APIKey defaults to TAVILY_API_KEY environment variable
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	// BaseURL overrides the API endpoint
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	// SearchDepth is basic or advanced
	SearchDepth string `json:"search_depth,omitempty" yaml:"search_depth,omitempty"`
}

// Tool provides a web search functionality
type Tool struct {
	*tools.Func[SearchRequest, SearchResult]

	apiKey      string
	baseURL     string
	searchDepth string
	httpClient  *http.Client
}

// New returns the web search tool
func New(cfg Config) (*Tool, error) {
	apikey := values.StringsCoalesce(cfg.APIKey, os.Getenv("TAVILY_API_KEY"))
	if apikey == "" {
		return nil, errors.New("TAVILY_API_KEY is not set")
	}

	t := &Tool{
		apiKey:      apikey,
		baseURL:     cfg.BaseURL,
		searchDepth: values.StringsCoalesce(cfg.SearchDepth, "basic"),
		httpClient:  http.DefaultClient,
	}
	f, err := tools.New(tools.Config{
		Name:        ToolName,
		Description: "A tool that provides a web search functionality.",
	}, t.Run)
	if err != nil {
		return nil, err
	}
	t.Func = f
	return t, nil
}

func (t *Tool) WithBaseURL(baseURL string) *Tool {
	t.baseURL = baseURL
	return t
}

func (t *Tool) WithHTTPClient(client *http.Client) *Tool {
	t.httpClient = client
	return t
}

// Run performs the search
func (t *Tool) Run(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	if req.Query == "" {
		return nil, errors.New("invalid request: empty query")
	}

	client := tavilygo.NewClient(t.apiKey)
	if t.baseURL != "" {
		client.BaseURL = t.baseURL
	}
	if t.httpClient != nil {
		client.HTTPClient = t.httpClient
	}

	searchResp, err := tavilygo.Search(client, tavilyModels.SearchRequest{
		Query:         req.Query,
		SearchDepth:   t.searchDepth,
		IncludeAnswer: true,
	})
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR, "query", req.Query, "err", err)
		return nil, errors.Wrap(err, "failed to perform search")
	}

	logger.ContextKV(ctx, xlog.DEBUG, "query", req.Query, "results", len(searchResp.Results))

	return &SearchResult{
		Results: searchResp.Results,
		Answer:  searchResp.Answer,
	}, nil
}

func (r SearchResult) String() string {
	var buf bytes.Buffer
	if r.Answer != "" {
		fmt.Fprintf(&buf, "ANSWER: %s\n", r.Answer)
	}

	for _, result := range r.Results {
		fmt.Fprintf(&buf, "- URL: %s\n", result.URL)
		fmt.Fprintf(&buf, "  TITLE: %s\n", result.Title)
		fmt.Fprintf(&buf, "  SCORE: %f\n", result.Score)
		fmt.Fprintf(&buf, "  CONTENT: %s\n", result.Content)
	}

	return buf.String()
}
