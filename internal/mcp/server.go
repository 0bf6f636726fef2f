package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/autoprice/internal/cache"
	"github.com/Aman-CERP/autoprice/internal/catalog"
	"github.com/Aman-CERP/autoprice/internal/history"
	"github.com/Aman-CERP/autoprice/internal/index"
	"github.com/Aman-CERP/autoprice/internal/search"
	"github.com/Aman-CERP/autoprice/pkg/version"
)

// ServerName is reported to MCP clients.
const ServerName = "autoprice"

// Searcher runs ranked catalog queries.
type Searcher interface {
	Query(text string) []search.Result
}

// Catalog resolves document ids against the live index.
type Catalog interface {
	Document(id string) (catalog.Document, bool)
	Stats() index.Stats
}

// History is the recent-items store.
type History interface {
	List() []history.Item
	Len() int
	Add(item history.Item) history.Item
	Clear()
	FindMatch(brand, name string, price float64) (history.Match, bool)
}

// CacheStats reports cache counters.
type CacheStats interface {
	Stats() cache.Stats
}

// Deps are the components the tools operate on. All are required.
type Deps struct {
	Searcher Searcher
	Catalog  Catalog
	History  History
	Cache    CacheStats
	Logger   *slog.Logger
}

// Server is the MCP tool server.
type Server struct {
	mcp    *mcp.Server
	deps   Deps
	logger *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "search_catalog",
		Description: "Search the vehicle catalog by brand, model or variant words. Exact word matches rank above prefix matches; names containing the whole query get a bonus. Returns up to 20 results with prices.",
	},
	{
		Name:        "history_list",
		Description: "List the recently selected vehicles, newest first.",
	},
	{
		Name:        "history_add",
		Description: "Remember a vehicle from search_catalog results. Pass its document_id and, when present, its config_id.",
	},
	{
		Name:        "history_clear",
		Description: "Forget all recently selected vehicles.",
	},
	{
		Name:        "history_match",
		Description: "Check whether a remembered vehicle (brand, name, price) is still in the catalog and return its current entry.",
	},
	{
		Name:        "cache_stats",
		Description: "Report cache tier counters and the current index generation.",
	},
}

// NewServer creates a new MCP server.
func NewServer(deps Deps) (*Server, error) {
	switch {
	case deps.Searcher == nil:
		return nil, errors.New("searcher is required")
	case deps.Catalog == nil:
		return nil, errors.New("catalog is required")
	case deps.History == nil:
		return nil, errors.New("history is required")
	case deps.Cache == nil:
		return nil, errors.New("cache is required")
	}

	s := &Server{deps: deps, logger: deps.Logger}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(tools))
	copy(out, tools)
	return out
}

func (s *Server) registerTools() {
	describe := func(name string) *mcp.Tool {
		for _, t := range tools {
			if t.Name == name {
				return &mcp.Tool{Name: t.Name, Description: t.Description}
			}
		}
		panic("mcp: unknown tool " + name)
	}

	mcp.AddTool(s.mcp, describe("search_catalog"), s.searchHandler)
	mcp.AddTool(s.mcp, describe("history_list"), s.historyListHandler)
	mcp.AddTool(s.mcp, describe("history_add"), s.historyAddHandler)
	mcp.AddTool(s.mcp, describe("history_clear"), s.historyClearHandler)
	mcp.AddTool(s.mcp, describe("history_match"), s.historyMatchHandler)
	mcp.AddTool(s.mcp, describe("cache_stats"), s.cacheStatsHandler)

	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

func (s *Server) searchHandler(_ context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query parameter is required")
	}
	if input.Limit < 0 {
		return nil, SearchOutput{}, NewInvalidParamsError("limit must not be negative")
	}

	results := s.deps.Searcher.Query(input.Query)
	if input.Limit > 0 && input.Limit < len(results) {
		results = results[:input.Limit]
	}
	if results == nil {
		results = []search.Result{}
	}

	s.logger.Debug("mcp_search",
		slog.String("query", input.Query),
		slog.Int("results", len(results)))
	return nil, SearchOutput{Query: input.Query, Results: results}, nil
}

func (s *Server) historyListHandler(_ context.Context, _ *mcp.CallToolRequest, _ HistoryListInput) (
	*mcp.CallToolResult,
	HistoryOutput,
	error,
) {
	items := s.deps.History.List()
	if items == nil {
		items = []history.Item{}
	}
	return nil, HistoryOutput{Items: items}, nil
}

func (s *Server) historyAddHandler(_ context.Context, _ *mcp.CallToolRequest, input HistoryAddInput) (
	*mcp.CallToolResult,
	HistoryAddOutput,
	error,
) {
	if input.DocumentID == "" {
		return nil, HistoryAddOutput{}, NewInvalidParamsError("document_id parameter is required")
	}

	doc, ok := s.deps.Catalog.Document(input.DocumentID)
	if !ok {
		return nil, HistoryAddOutput{}, NewNotFoundError("document", input.DocumentID)
	}

	var cfg *catalog.Config
	if input.ConfigID != "" {
		c, ok := doc.Config(input.ConfigID)
		if !ok {
			return nil, HistoryAddOutput{}, NewNotFoundError("config", input.ConfigID)
		}
		cfg = &c
	}

	item := s.deps.History.Add(history.Snapshot(doc, cfg))
	return nil, HistoryAddOutput{Item: item, Size: s.deps.History.Len()}, nil
}

func (s *Server) historyClearHandler(_ context.Context, _ *mcp.CallToolRequest, _ HistoryClearInput) (
	*mcp.CallToolResult,
	HistoryClearOutput,
	error,
) {
	removed := s.deps.History.Len()
	s.deps.History.Clear()
	return nil, HistoryClearOutput{Removed: removed}, nil
}

func (s *Server) historyMatchHandler(_ context.Context, _ *mcp.CallToolRequest, input HistoryMatchInput) (
	*mcp.CallToolResult,
	HistoryMatchOutput,
	error,
) {
	if input.Brand == "" || input.Name == "" {
		return nil, HistoryMatchOutput{}, NewInvalidParamsError("brand and name parameters are required")
	}

	m, ok := s.deps.History.FindMatch(input.Brand, input.Name, input.Price)
	if !ok {
		return nil, HistoryMatchOutput{}, nil
	}
	r := m.Resolved()
	return nil, HistoryMatchOutput{
		Found:      true,
		DocumentID: r.DocumentID,
		ConfigID:   r.ConfigID,
		Display:    r.DisplayText(),
		Price:      r.Price,
	}, nil
}

func (s *Server) cacheStatsHandler(_ context.Context, _ *mcp.CallToolRequest, _ CacheStatsInput) (
	*mcp.CallToolResult,
	CacheStatsOutput,
	error,
) {
	return nil, CacheStatsOutput{
		Cache: s.deps.Cache.Stats(),
		Index: s.deps.Catalog.Stats(),
	}, nil
}

// Serve runs the server on the given transport until ctx is done.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("mcp_server_stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}
