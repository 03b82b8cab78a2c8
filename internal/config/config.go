// Package config loads and validates mcp-config.json, the single
// configuration file for the server and CLI. Decoding is strict: unknown
// keys are rejected so typos surface at startup instead of silently
// falling back to defaults.
package config

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Aman-CERP/ragmcp/internal/errors"
)

// ConfigFileName is the canonical configuration file name.
const ConfigFileName = "mcp-config.json"

// DefaultCollection is the collection name used when neither the config
// file nor QDRANT_COLLECTION names one.
const DefaultCollection = "mcp-rag"

// DefaultServerName identifies the MCP server instance to clients.
const DefaultServerName = "rag-server"

// Config is the full configuration contract. Relative paths inside the
// file resolve against the directory containing the file.
type Config struct {
	ProjectRoot string `json:"project_root"`

	// CloudQdrant and LocalQdrant describe the two logical stores. Either
	// may be absent; Validate requires at least one.
	CloudQdrant *StoreConfig `json:"cloud_qdrant,omitempty"`
	LocalQdrant *StoreConfig `json:"local_qdrant,omitempty"`

	// Glob patterns, relative to ProjectRoot.
	CloudDocs []string `json:"cloud_docs,omitempty"`
	LocalDocs []string `json:"local_docs,omitempty"`
	CodePaths []string `json:"code_paths,omitempty"`

	EmbeddingModels ModelsConfig    `json:"embedding_models"`
	Retrieval       RetrievalConfig `json:"hybrid_retrieval"`
	Chunking        ChunkingConfig  `json:"chunking"`

	// ExcludePatterns are skipped everywhere, on top of the built-in set.
	ExcludePatterns []string `json:"exclude_patterns,omitempty"`

	// EmbeddingEndpoint is the model server base URL (embeddings and
	// reranking both live behind it).
	EmbeddingEndpoint string `json:"embedding_endpoint"`

	// DocTypeMapping maps a path segment to a doc_type payload value.
	DocTypeMapping map[string]string `json:"doc_type_mapping,omitempty"`

	// BM25Backend selects the lexical sidecar: "sqlite" or "bleve".
	BM25Backend string `json:"bm25_backend"`

	// ServerName is not part of the file schema; it comes from
	// MCP_SERVER_NAME and defaults to DefaultServerName.
	ServerName string `json:"-"`

	// configDir is the directory the file was loaded from, for resolving
	// relative paths. Empty when the config was built from defaults.
	configDir string
}

// StoreConfig describes one Qdrant-compatible store.
type StoreConfig struct {
	URL           string `json:"url"`
	APIKey        string `json:"api_key,omitempty"`
	Collection    string `json:"collection"`
	TimeoutSec    int    `json:"timeout"`
	RetryAttempts int    `json:"retry_attempts"`
}

// Timeout returns the per-call timeout as a duration.
func (s *StoreConfig) Timeout() time.Duration {
	if s.TimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.TimeoutSec) * time.Second
}

// ModelsConfig names the embedding and reranking models. Doc and Code
// must resolve to the same model: one collection holds one dimension.
type ModelsConfig struct {
	Doc       string `json:"doc"`
	Code      string `json:"code"`
	Reranking string `json:"reranking,omitempty"`
}

// RetrievalConfig tunes the hybrid retriever and reranker.
type RetrievalConfig struct {
	SearchTopK   int           `json:"search_top_k"`
	RerankTopK   int           `json:"rerank_top_k"`
	MaxResults   int           `json:"max_results"`
	UseReranking bool          `json:"use_reranking"`
	Weights      WeightsConfig `json:"hybrid_weights"`
}

// WeightsConfig holds the hybrid score weights. They must sum to 1.0.
type WeightsConfig struct {
	BM25   float64 `json:"bm25"`
	Vector float64 `json:"vector"`
}

// ChunkingConfig tunes the document and code chunkers.
type ChunkingConfig struct {
	DocChunkSize      int    `json:"doc_chunk_size"`
	DocChunkOverlap   int    `json:"doc_chunk_overlap"`
	CodeChunkStrategy string `json:"code_chunk_strategy"`
	CodeChunkOverlap  int    `json:"code_chunk_overlap"`
}

// defaultExcludePatterns are skipped in every scan regardless of config.
var defaultExcludePatterns = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/.ragmcp/**",
	"**/*.min.js",
}

// defaultDocTypeMapping mirrors the documentation layout the server was
// built for; overridable per project via doc_type_mapping.
var defaultDocTypeMapping = map[string]string{
	"proposal-plan":                       "policy",
	"development":                         "policy",
	"testing":                             "policy",
	"software-development-life-cycle":     "sdlc",
	"complete-flows":                      "flow",
	"infrastructure":                      "infrastructure",
	"discussion":                          "decision",
}

// New returns a Config with every default applied and no stores
// configured. Callers decode a file over it or set stores explicitly.
func New() *Config {
	return &Config{
		ProjectRoot: ".",
		EmbeddingModels: ModelsConfig{
			Doc:       "nomic-embed-text",
			Code:      "nomic-embed-text",
			Reranking: "",
		},
		Retrieval: RetrievalConfig{
			SearchTopK:   20,
			RerankTopK:   10,
			MaxResults:   25,
			UseReranking: true,
			Weights:      WeightsConfig{BM25: 0.3, Vector: 0.7},
		},
		Chunking: ChunkingConfig{
			DocChunkSize:      1000,
			DocChunkOverlap:   100,
			CodeChunkStrategy: "function_level",
			CodeChunkOverlap:  50,
		},
		ExcludePatterns:   append([]string(nil), defaultExcludePatterns...),
		EmbeddingEndpoint: "http://localhost:11434",
		DocTypeMapping:    cloneMapping(defaultDocTypeMapping),
		BM25Backend:       "sqlite",
		ServerName:        DefaultServerName,
	}
}

func cloneMapping(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Load reads, decodes, and validates the config file at path. A .env
// next to the resolved project root is loaded first so its variables
// participate in the env overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Config("read %s: %s", path, err)
	}

	cfg := New()
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, errors.Config("parse %s: %s", path, err)
	}

	cfg.configDir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, errors.Config("resolve config dir: %s", err)
	}

	cfg.finish()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Find locates the config file per the search order: $MCP_CONFIG_FILE,
// <root>/mcp-config.json, <root>/config/mcp-config.json, then upward
// from the working directory. root may be empty.
func Find(root string) (string, error) {
	if p := os.Getenv("MCP_CONFIG_FILE"); p != "" {
		if fileExists(p) {
			return p, nil
		}
		return "", errors.Config("MCP_CONFIG_FILE points to %s, which does not exist", p)
	}

	if root == "" {
		root = os.Getenv("MCP_PROJECT_ROOT")
	}
	if root != "" {
		for _, p := range []string{
			filepath.Join(root, ConfigFileName),
			filepath.Join(root, "config", ConfigFileName),
		} {
			if fileExists(p) {
				return p, nil
			}
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.Config("resolve working directory: %s", err)
	}
	for dir := cwd; ; {
		p := filepath.Join(dir, ConfigFileName)
		if fileExists(p) {
			return p, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", errors.Config("no %s found", ConfigFileName)
}

// Locate combines Find and Load.
func Locate(root string) (*Config, error) {
	path, err := Find(root)
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// finish resolves paths, loads .env, and applies env overrides. Called
// after decode and before Validate.
func (c *Config) finish() {
	if c.ServerName == "" {
		c.ServerName = DefaultServerName
	}

	if !filepath.IsAbs(c.ProjectRoot) && c.configDir != "" {
		c.ProjectRoot = filepath.Join(c.configDir, c.ProjectRoot)
	}
	if abs, err := filepath.Abs(c.ProjectRoot); err == nil {
		c.ProjectRoot = abs
	}

	// .env is best-effort; absence is normal.
	_ = godotenv.Load(filepath.Join(c.ProjectRoot, ".env"))

	c.applyEnv()

	// The built-in excludes always apply, even when the file replaces the
	// pattern list.
	c.ExcludePatterns = mergePatterns(defaultExcludePatterns, c.ExcludePatterns)

	if len(c.DocTypeMapping) == 0 {
		c.DocTypeMapping = cloneMapping(defaultDocTypeMapping)
	}
}

// applyEnv applies environment overrides on top of the decoded file.
func (c *Config) applyEnv() {
	if v := os.Getenv("MCP_PROJECT_ROOT"); v != "" {
		c.ProjectRoot = v
	}
	if v := os.Getenv("MCP_SERVER_NAME"); v != "" {
		c.ServerName = v
	}

	if v := os.Getenv("QDRANT_CLOUD_URL"); v != "" {
		if c.CloudQdrant == nil {
			c.CloudQdrant = &StoreConfig{}
		}
		c.CloudQdrant.URL = v
	}
	if c.CloudQdrant != nil {
		if v := os.Getenv("QDRANT_API_KEY"); v != "" {
			c.CloudQdrant.APIKey = v
		}
		if v := os.Getenv("QDRANT_COLLECTION"); v != "" {
			c.CloudQdrant.Collection = v
		}
		if c.CloudQdrant.Collection == "" {
			c.CloudQdrant.Collection = DefaultCollection
		}
	}
	if c.LocalQdrant != nil && c.LocalQdrant.Collection == "" {
		c.LocalQdrant.Collection = DefaultCollection
	}
}

func mergePatterns(base, extra []string) []string {
	seen := make(map[string]bool, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, p := range append(append([]string(nil), base...), extra...) {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// Validate checks the invariants the rest of the system relies on.
// Failures are CONFIG_ERROR and should terminate startup.
func (c *Config) Validate() error {
	if c.CloudQdrant == nil && c.LocalQdrant == nil {
		return errors.Config("at least one of cloud_qdrant or local_qdrant is required")
	}
	if c.CloudQdrant != nil && c.CloudQdrant.URL == "" {
		return errors.Config("cloud_qdrant.url is required when cloud_qdrant is set")
	}

	w := c.Retrieval.Weights
	if w.BM25 < 0 || w.BM25 > 1 || w.Vector < 0 || w.Vector > 1 {
		return errors.Config("hybrid_weights must be in [0,1], got bm25=%.2f vector=%.2f", w.BM25, w.Vector)
	}
	if math.Abs(w.BM25+w.Vector-1.0) > 0.01 {
		return errors.Config("hybrid_weights must sum to 1.0, got %.2f", w.BM25+w.Vector)
	}

	if c.Retrieval.SearchTopK <= 0 {
		return errors.Config("search_top_k must be positive, got %d", c.Retrieval.SearchTopK)
	}
	if c.Retrieval.RerankTopK <= 0 {
		return errors.Config("rerank_top_k must be positive, got %d", c.Retrieval.RerankTopK)
	}
	if c.Retrieval.MaxResults <= 0 {
		return errors.Config("max_results must be positive, got %d", c.Retrieval.MaxResults)
	}

	if c.Chunking.DocChunkSize <= 0 {
		return errors.Config("doc_chunk_size must be positive, got %d", c.Chunking.DocChunkSize)
	}
	if c.Chunking.DocChunkOverlap < 0 || c.Chunking.DocChunkOverlap >= c.Chunking.DocChunkSize {
		return errors.Config("doc_chunk_overlap must be in [0, doc_chunk_size), got %d", c.Chunking.DocChunkOverlap)
	}
	if c.Chunking.CodeChunkStrategy != "function_level" {
		return errors.Config("code_chunk_strategy %q is not supported (use function_level)", c.Chunking.CodeChunkStrategy)
	}

	// One embedding model serves both content types so the collection
	// holds a single dimension.
	if c.EmbeddingModels.Doc == "" || c.EmbeddingModels.Code == "" {
		return errors.Config("embedding_models.doc and embedding_models.code are required")
	}
	if c.EmbeddingModels.Doc != c.EmbeddingModels.Code {
		return errors.Config("embedding_models.doc (%s) and embedding_models.code (%s) must resolve to the same model",
			c.EmbeddingModels.Doc, c.EmbeddingModels.Code)
	}

	switch c.BM25Backend {
	case "sqlite", "bleve":
	default:
		return errors.Config("bm25_backend must be sqlite or bleve, got %q", c.BM25Backend)
	}

	return nil
}

// DataDir is where derived, disposable state lives (BM25 sidecars,
// embedded store files, logs). Removed wholesale by the clean command.
func (c *Config) DataDir() string {
	return filepath.Join(c.ProjectRoot, ".ragmcp")
}

// DocGlobs returns the union of cloud and local doc globs, deduplicated,
// in declaration order.
func (c *Config) DocGlobs() []string {
	return mergePatterns(c.CloudDocs, c.LocalDocs)
}

// HasCloud reports whether a remote store is configured.
func (c *Config) HasCloud() bool { return c.CloudQdrant != nil }

// HasLocal reports whether the embedded store is configured.
func (c *Config) HasLocal() bool { return c.LocalQdrant != nil }

// DocTypeFor maps a normalized relative path to its doc_type payload
// value by matching mapped segments anywhere in the path.
func (c *Config) DocTypeFor(relPath string) string {
	for _, seg := range strings.Split(relPath, "/") {
		if t, ok := c.DocTypeMapping[strings.ToLower(seg)]; ok {
			return t
		}
	}
	return "other"
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
