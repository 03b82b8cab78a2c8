// Package scanner discovers the files the indexer feeds to the
// chunkers: documentation matched by the configured doc globs and
// source matched by the code path globs, minus exclusions, gitignore
// rules, and files that are never safe to index.
package scanner

import "time"

// File kinds, deciding which chunker handles a file.
const (
	KindDoc  = "doc"
	KindCode = "code"
)

// FileInfo is one discovered file. Path uses forward slashes and is
// relative to the scan root; that exact string becomes the stored
// file_path payload.
type FileInfo struct {
	Path    string
	AbsPath string
	Size    int64
	ModTime time.Time

	// Kind is KindDoc or KindCode, from which glob set matched.
	Kind string

	// Language is the detected language tag ("go", "python",
	// "markdown", ...), empty when unknown.
	Language string
}

// Options configures a scan. Glob patterns are relative to Root and
// use doublestar syntax.
type Options struct {
	Root string

	// DocGlobs and CodeGlobs select files, in declaration order. A file
	// matching both is a doc: doc globs are checked first.
	DocGlobs  []string
	CodeGlobs []string

	// ExcludePatterns are dropped everywhere, on top of the built-in
	// sensitive and lockfile patterns.
	ExcludePatterns []string

	// RespectGitignore applies .gitignore files found in the tree.
	RespectGitignore bool

	// MaxFileSize caps indexable files; larger ones are skipped with a
	// debug log. Zero means DefaultMaxFileSize.
	MaxFileSize int64
}

// DefaultMaxFileSize is the file size cap (10MB).
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// languageMap maps extensions (and a few exact names) to language tags.
var languageMap = map[string]string{
	".go":  "go",
	".js":  "javascript",
	".jsx": "javascript",
	".mjs": "javascript",
	".ts":  "typescript",
	".tsx": "typescript",
	".py":  "python",
	".pyi": "python",

	".rb":    "ruby",
	".rs":    "rust",
	".java":  "java",
	".kt":    "kotlin",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".swift": "swift",
	".php":   "php",
	".sh":    "shell",
	".bash":  "shell",
	".sql":   "sql",
	".proto": "protobuf",

	".md":       "markdown",
	".mdx":      "markdown",
	".markdown": "markdown",
	".rst":      "rst",
	".txt":      "text",

	"Dockerfile": "dockerfile",
	"Makefile":   "makefile",
}

// DetectLanguage maps a path to its language tag, empty when unknown.
func DetectLanguage(path string) string {
	base := baseName(path)
	if lang, ok := languageMap[base]; ok {
		return lang
	}
	if lang, ok := languageMap[extension(path)]; ok {
		return lang
	}
	return ""
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}

func extension(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i:]
		}
		if path[i] == '/' || path[i] == '\\' {
			break
		}
	}
	return ""
}
