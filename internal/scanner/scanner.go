package scanner

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/ragmcp/internal/errors"
	"github.com/Aman-CERP/ragmcp/internal/gitignore"
)

// gitignoreCacheSize bounds the per-directory matcher cache.
const gitignoreCacheSize = 1000

// Scanner walks a project tree and classifies files against the
// configured doc and code globs. Safe for concurrent use.
type Scanner struct {
	gitignoreCache *lru.Cache[string, *gitignore.Matcher]
	cacheMu        sync.RWMutex
}

// New creates a Scanner.
func New() (*Scanner, error) {
	cache, err := lru.New[string, *gitignore.Matcher](gitignoreCacheSize)
	if err != nil {
		return nil, err
	}
	return &Scanner{gitignoreCache: cache}, nil
}

// Scan walks the root once and returns the matching files in glob
// order: every doc glob in declaration order, then every code glob,
// paths sorted within each glob. A file stays with the first glob that
// matched it.
func (s *Scanner) Scan(ctx context.Context, opts *Options) ([]*FileInfo, error) {
	if opts == nil || opts.Root == "" {
		return nil, errors.Validation("scan root is required")
	}

	absRoot, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, errors.Validation("resolve root %s: %s", opts.Root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, errors.Validation("stat root: %s", err)
	}
	if !info.IsDir() {
		return nil, errors.Validation("root %s is not a directory", absRoot)
	}

	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	// One walk collects every candidate; glob assignment happens after
	// so enumeration order is stable regardless of walk order.
	candidates := make(map[string]*FileInfo)
	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if s.excludedDir(rel, opts.ExcludePatterns) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if s.excludedFile(rel, absRoot, opts) {
			return nil
		}

		fi, err := d.Info()
		if err != nil || fi.Size() > maxSize {
			return nil
		}
		if isBinaryFile(path) {
			return nil
		}

		candidates[rel] = &FileInfo{
			Path:     rel,
			AbsPath:  path,
			Size:     fi.Size(),
			ModTime:  fi.ModTime(),
			Language: DetectLanguage(rel),
		}
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	var out []*FileInfo
	claimed := make(map[string]bool, len(candidates))
	assign := func(globs []string, kind string) {
		for _, glob := range globs {
			var matched []string
			for rel := range candidates {
				if claimed[rel] {
					continue
				}
				if ok, _ := doublestar.Match(glob, rel); ok {
					matched = append(matched, rel)
				}
			}
			sort.Strings(matched)
			for _, rel := range matched {
				claimed[rel] = true
				f := candidates[rel]
				f.Kind = kind
				out = append(out, f)
			}
		}
	}
	assign(opts.DocGlobs, KindDoc)
	assign(opts.CodeGlobs, KindCode)

	return out, nil
}

// excludedDir prunes whole subtrees. A pattern of the form
// "**/name/**" excludes any directory segment equal to name.
func (s *Scanner) excludedDir(rel string, patterns []string) bool {
	for _, pattern := range append(defaultExcludeDirs, patterns...) {
		if matchDirPattern(rel, pattern) {
			return true
		}
	}
	return false
}

func (s *Scanner) excludedFile(rel, absRoot string, opts *Options) bool {
	base := baseName(rel)
	for _, pattern := range sensitiveFilePatterns {
		if ok, _ := doublestar.Match(pattern, base); ok {
			return true
		}
		if strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") &&
			strings.Contains(strings.ToLower(base), strings.Trim(pattern, "*")) {
			return true
		}
	}
	for _, pattern := range opts.ExcludePatterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	if opts.RespectGitignore && s.isGitignored(rel, absRoot) {
		return true
	}
	return false
}

func matchDirPattern(rel, pattern string) bool {
	if strings.HasPrefix(pattern, "**/") && strings.HasSuffix(pattern, "/**") {
		segment := strings.TrimSuffix(strings.TrimPrefix(pattern, "**/"), "/**")
		for _, part := range strings.Split(rel, "/") {
			if part == segment {
				return true
			}
		}
		return false
	}
	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		return rel == prefix || strings.HasPrefix(rel, prefix+"/")
	}
	ok, _ := doublestar.Match(pattern, rel)
	return ok
}

// isGitignored consults the root .gitignore plus every nested one on
// the file's directory chain.
func (s *Scanner) isGitignored(rel, absRoot string) bool {
	if m := s.matcherFor(absRoot, ""); m != nil && m.Match(rel, false) {
		return true
	}

	dir := absRoot
	base := ""
	for _, part := range strings.Split(filepath.ToSlash(filepath.Dir(rel)), "/") {
		if part == "." || part == "" {
			continue
		}
		dir = filepath.Join(dir, part)
		base = strings.TrimPrefix(base+"/"+part, "/")
		if m := s.matcherFor(dir, base); m != nil && m.Match(rel, false) {
			return true
		}
	}
	return false
}

func (s *Scanner) matcherFor(dir, base string) *gitignore.Matcher {
	s.cacheMu.RLock()
	matcher, ok := s.gitignoreCache.Get(dir)
	s.cacheMu.RUnlock()
	if ok {
		return matcher
	}

	path := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	matcher = gitignore.New()
	if err := matcher.AddFromFile(path, base); err != nil {
		return nil
	}

	s.cacheMu.Lock()
	s.gitignoreCache.Add(dir, matcher)
	s.cacheMu.Unlock()
	return matcher
}

// MatchAny reports whether the forward-slash relative path matches any
// of the globs.
func MatchAny(globs []string, rel string) bool {
	for _, glob := range globs {
		if ok, _ := doublestar.Match(glob, rel); ok {
			return true
		}
	}
	return false
}

// InvalidateGitignoreCache drops cached matchers after .gitignore
// files change.
func (s *Scanner) InvalidateGitignoreCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.gitignoreCache.Purge()
}

// isBinaryFile sniffs the first 512 bytes for a NUL.
func isBinaryFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil {
		return false
	}
	return bytes.Contains(buf[:n], []byte{0})
}

// defaultExcludeDirs are pruned in every scan.
var defaultExcludeDirs = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/.ragmcp/**",
	"**/.ssh/**",
	"**/.aws/**",
}

// sensitiveFilePatterns are never indexed regardless of globs.
var sensitiveFilePatterns = []string{
	".env",
	".env.*",
	"*.pem",
	"*.key",
	"*.p12",
	"*credentials*",
	"*secrets*",
	"*password*",
	".netrc",
	".npmrc",
	"id_rsa",
	"id_ed25519",
}
