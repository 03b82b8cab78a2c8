package mcp

import (
	"context"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/ragmcp/internal/config"
	"github.com/Aman-CERP/ragmcp/internal/errors"
	"github.com/Aman-CERP/ragmcp/internal/index"
	"github.com/Aman-CERP/ragmcp/internal/search"
	"github.com/Aman-CERP/ragmcp/internal/store"
	"github.com/Aman-CERP/ragmcp/pkg/version"
)

// DefaultServerName is used when neither config nor MCP_SERVER_NAME
// names the instance.
const DefaultServerName = "rag-server"

// queryTimeout bounds every query-side tool invocation.
const queryTimeout = 30 * time.Second

// Server is the MCP face of the system: it owns the SDK server, the
// search engine, and the indexing coordinator, and serves the tool
// surface over stdio.
type Server struct {
	mcp      *mcp.Server
	engine   *search.Engine
	coord    *index.Coordinator
	cloud    store.VectorStore
	local    store.VectorStore
	bm25     store.BM25Index
	cfg      *config.Config
	manifest *Manifest
	logger   *slog.Logger
}

// ServerOptions wires the server's dependencies.
type ServerOptions struct {
	Config      *config.Config
	Engine      *search.Engine
	Coordinator *index.Coordinator
	Cloud       store.VectorStore
	Local       store.VectorStore
	BM25        store.BM25Index
	Logger      *slog.Logger
}

// NewServer builds the server and registers every tool.
func NewServer(opts ServerOptions) (*Server, error) {
	if opts.Config == nil {
		return nil, errors.Validation("a config is required")
	}
	if opts.Engine == nil {
		return nil, errors.Validation("a search engine is required")
	}
	if opts.Coordinator == nil {
		return nil, errors.Validation("an indexing coordinator is required")
	}
	if opts.Cloud == nil && opts.Local == nil {
		return nil, errors.Validation("at least one vector store is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	manifest, err := NewManifest(logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		engine:   opts.Engine,
		coord:    opts.Coordinator,
		cloud:    opts.Cloud,
		local:    opts.Local,
		bm25:     opts.BM25,
		cfg:      opts.Config,
		manifest: manifest,
		logger:   logger,
	}

	name := opts.Config.ServerName
	if name == "" {
		name = DefaultServerName
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{Name: name, Version: version.Short()},
		nil,
	)
	s.registerTools()

	return s, nil
}

// Run serves JSON-RPC over stdio until the context is canceled. stdout
// is reserved for the protocol; logging goes elsewhere.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server starting", "transport", "stdio")
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && err != context.Canceled {
		s.logger.Error("mcp server stopped", "error", err)
		return err
	}
	s.logger.Info("mcp server stopped")
	return nil
}

// primary is the store point CRUD operates on: cloud when configured,
// else local.
func (s *Server) primary() store.VectorStore {
	if s.cloud != nil {
		return s.cloud
	}
	return s.local
}

// namedStore pairs a configured store with its source name.
type namedStore struct {
	Name  string
	Store store.VectorStore
}

// sources lists the configured stores, cloud first.
func (s *Server) sources() []namedStore {
	var out []namedStore
	if s.cloud != nil {
		out = append(out, namedStore{"cloud", s.cloud})
	}
	if s.local != nil {
		out = append(out, namedStore{"local", s.local})
	}
	return out
}

// registerTools binds every typed handler to the SDK server using the
// manifest descriptions.
func (s *Server) registerTools() {
	describe := func(name string) string {
		if schema, ok := s.manifest.Schema(name); ok {
			return schema.Description
		}
		return name
	}

	mcp.AddTool(s.mcp, &mcp.Tool{Name: "search", Description: describe("search")}, s.handleSearch)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "ask", Description: describe("ask")}, s.handleAsk)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "explain", Description: describe("explain")}, s.handleExplain)

	mcp.AddTool(s.mcp, &mcp.Tool{Name: "add_points", Description: describe("add_points")}, s.handleAddPoints)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "update_points", Description: describe("update_points")}, s.handleUpdatePoints)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "delete_points", Description: describe("delete_points")}, s.handleDeletePoints)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "get_points", Description: describe("get_points")}, s.handleGetPoints)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "query_points", Description: describe("query_points")}, s.handleQueryPoints)

	mcp.AddTool(s.mcp, &mcp.Tool{Name: "add_document", Description: describe("add_document")}, s.handleAddDocument)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "update_document", Description: describe("update_document")}, s.handleUpdateDocument)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "delete_document", Description: describe("delete_document")}, s.handleDeleteDocument)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "get_document", Description: describe("get_document")}, s.handleGetDocument)

	mcp.AddTool(s.mcp, &mcp.Tool{Name: "get_collection_stats", Description: describe("get_collection_stats")}, s.handleCollectionStats)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "index_repository", Description: describe("index_repository")}, s.handleIndexRepository)

	mcp.AddTool(s.mcp, &mcp.Tool{Name: "get_manifest", Description: describe("get_manifest")}, s.handleGetManifest)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "get_tool_schema", Description: describe("get_tool_schema")}, s.handleGetToolSchema)

	s.logger.Info("mcp tools registered", "count", len(s.manifest.KnownNames()))
}
