package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/corpusqa/corpusqa/internal/core/domain"
	"github.com/corpusqa/corpusqa/internal/core/ports"
)

const serverVersion = "1.0.0"

var askToolSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "query": {"type": "string", "description": "Question to answer"},
    "corpus": {"type": "string", "description": "Corpus to consult, e.g. arxiv or financial"},
    "limit": {"type": "integer", "minimum": 1, "maximum": 20, "description": "How many fragments to retrieve"},
    "hybrid": {"type": "boolean", "description": "Fuse lexical and semantic retrieval (default true)"},
    "filters": {
      "type": "object",
      "properties": {
        "ticker": {"type": "string", "description": "Restrict filings to one ticker symbol"},
        "filing_types": {"type": "array", "items": {"type": "string"}},
        "categories": {"type": "array", "items": {"type": "string"}}
      }
    }
  },
  "required": ["query"]
}`)

var searchToolSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "query": {"type": "string", "description": "Text to search for"},
    "corpus": {"type": "string", "description": "Corpus to consult, e.g. arxiv or financial"},
    "limit": {"type": "integer", "minimum": 1, "maximum": 20},
    "hybrid": {"type": "boolean", "description": "Fuse lexical and semantic retrieval (default true)"},
    "filters": {
      "type": "object",
      "properties": {
        "ticker": {"type": "string"},
        "filing_types": {"type": "array", "items": {"type": "string"}},
        "categories": {"type": "array", "items": {"type": "string"}}
      }
    }
  },
  "required": ["query"]
}`)

// Server exposes the question answering pipeline over the Model Context
// Protocol so agent runtimes can call it as tools.
type Server struct {
	ask      ports.QueryService
	searcher ports.FragmentSearcher
	logger   *slog.Logger
}

func NewServer(ask ports.QueryService, searcher ports.FragmentSearcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{ask: ask, searcher: searcher, logger: logger}
}

// MCPServer assembles the protocol server with both tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer(
		"corpusqa",
		serverVersion,
		server.WithInstructions("Question answering over configured document corpora: ask runs retrieval plus generation, search returns ranked fragments only."),
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	srv.AddTool(
		mcp.NewToolWithRawSchema("ask", "Answer a question from a document corpus with cited sources", askToolSchema),
		s.handleAsk,
	)
	srv.AddTool(
		mcp.NewToolWithRawSchema("search", "Retrieve ranked document fragments without generating an answer", searchToolSchema),
		s.handleSearch,
	)
	return srv
}

// Serve blocks on stdio until the client disconnects.
func (s *Server) Serve() error {
	return server.ServeStdio(s.MCPServer())
}

type toolArguments struct {
	Query   string   `json:"query"`
	Corpus  string   `json:"corpus"`
	Limit   int      `json:"limit"`
	Hybrid  *bool    `json:"hybrid"`
	Filters *filters `json:"filters"`
}

type filters struct {
	Ticker      string   `json:"ticker"`
	FilingTypes []string `json:"filing_types"`
	Categories  []string `json:"categories"`
}

func (args toolArguments) toQuery() domain.Query {
	query := domain.Query{
		Text:   args.Query,
		Corpus: args.Corpus,
		Limit:  args.Limit,
		Hybrid: args.Hybrid == nil || *args.Hybrid,
	}
	if args.Filters != nil {
		query.Filters = domain.Filters{
			Ticker:      args.Filters.Ticker,
			FilingTypes: args.Filters.FilingTypes,
			Categories:  args.Filters.Categories,
		}
	}
	return query
}

func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args toolArguments
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("decode ask arguments: %v", err)), nil
	}

	answer, err := s.ask.Ask(ctx, args.toQuery())
	if err != nil {
		s.logger.Warn("ask tool failed", "corpus", args.Corpus, "error", err)
		return mcp.NewToolResultError(toolErrorMessage(err)), nil
	}
	return jsonToolResult(answer)
}

type searchResult struct {
	Fragments     []domain.Fragment `json:"fragments"`
	RetrievalMode string            `json:"retrieval_mode"`
	Count         int               `json:"count"`
}

func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args toolArguments
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("decode search arguments: %v", err)), nil
	}

	fragments, mode, err := s.searcher.Search(ctx, args.toQuery())
	if err != nil {
		s.logger.Warn("search tool failed", "corpus", args.Corpus, "error", err)
		return mcp.NewToolResultError(toolErrorMessage(err)), nil
	}
	if fragments == nil {
		fragments = []domain.Fragment{}
	}
	return jsonToolResult(searchResult{
		Fragments:     fragments,
		RetrievalMode: mode,
		Count:         len(fragments),
	})
}

func jsonToolResult(payload any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// toolErrorMessage mirrors the HTTP adapter's public-message policy:
// caller mistakes keep their domain text, infrastructure failures are
// reported without upstream detail.
func toolErrorMessage(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput),
		domain.IsKind(err, domain.ErrUnknownCorpus):
		return err.Error()
	case domain.IsKind(err, domain.ErrGenerationUnavailable):
		return "no generation provider is available; try again later"
	case domain.IsKind(err, domain.ErrIndexUnavailable):
		return "search index is unavailable; try again later"
	case domain.IsKind(err, domain.ErrTemporary):
		return "a dependency is temporarily unavailable; try again later"
	default:
		return "internal error"
	}
}
