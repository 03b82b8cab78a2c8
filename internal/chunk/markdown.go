package chunk

import (
	"context"
	"regexp"
	"strings"
)

// MarkdownOptions configures prose packing. Structural chunks (lists,
// tables, fences) ignore the size limits entirely.
type MarkdownOptions struct {
	ChunkSize    int // target prose chunk size in characters
	ChunkOverlap int // prose overlap carried between chunks, in characters
}

// MarkdownChunker splits Markdown into section-aware chunks in a single
// walk. Structure wins over size: a numbered list, pipe table, or
// fenced code block is always one chunk, however long.
type MarkdownChunker struct {
	opts MarkdownOptions
}

var (
	headingPattern   = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	listItemPattern  = regexp.MustCompile(`^\s*\d+\.\s`)
	tableRowPattern  = regexp.MustCompile(`^\s*\|.*\|\s*$`)
	tableSepPattern  = regexp.MustCompile(`^\s*\|[\s\-:|]+\|\s*$`)
	fenceOpenPattern = regexp.MustCompile("^```\\s*([A-Za-z0-9_+-]*)\\s*$")
	fenceClose       = "```"
)

// NewMarkdownChunker creates a chunker with the given options; zero
// values fall back to 1000/100.
func NewMarkdownChunker(opts MarkdownOptions) *MarkdownChunker {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1000
	}
	if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = 100
	}
	return &MarkdownChunker{opts: opts}
}

var _ Chunker = (*MarkdownChunker)(nil)

// Chunk splits one Markdown file. Chunks come back in source order
// with section, doc_type, and identity fields populated. Heading lines
// stay inside chunk content; a prose chunk's section is the heading
// active where the chunk starts.
func (c *MarkdownChunker) Chunk(_ context.Context, file *FileInput) ([]*Chunk, error) {
	content := string(file.Content)
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	w := &mdWalker{chunker: c, file: file}
	lines := strings.Split(content, "\n")

	for i := 0; i < len(lines); {
		line := lines[i]

		if m := headingPattern.FindStringSubmatch(line); m != nil {
			if w.proseHasBody {
				w.flushProse()
			}
			w.setHeading(len(m[1]), strings.TrimSpace(m[2]))
			w.addLine(line, i+1, false)
			i++
			continue
		}

		if m := fenceOpenPattern.FindStringSubmatch(line); m != nil {
			w.flushProse()
			end := i + 1
			for end < len(lines) && strings.TrimSpace(lines[end]) != fenceClose {
				end++
			}
			if end < len(lines) {
				end++ // include the closing fence
			}
			lang := m[1]
			if lang == "" {
				lang = "markdown"
			}
			w.emitBlock(lines[i:end], i+1, ContentTypeCode, lang, 0, w.section())
			i = end
			continue
		}

		if listItemPattern.MatchString(line) {
			w.flushProse()
			end, count := consumeNumberedList(lines, i)
			w.emitBlock(lines[i:end], i+1, ContentTypeList, "markdown", count, w.section())
			i = end
			continue
		}

		if tableRowPattern.MatchString(line) && i+1 < len(lines) && tableSepPattern.MatchString(lines[i+1]) {
			w.flushProse()
			end := i + 2
			for end < len(lines) && tableRowPattern.MatchString(lines[end]) {
				end++
			}
			w.emitBlock(lines[i:end], i+1, ContentTypeTable, "markdown", 0, w.section())
			i = end
			continue
		}

		w.addProse(line, i+1)
		i++
	}

	w.flushProse()
	return w.chunks, nil
}

// consumeNumberedList returns the exclusive end index of the list run
// starting at i and the number of items in it. Indented continuation
// lines belong to the preceding item; a blank line ends the run unless
// another item follows immediately.
func consumeNumberedList(lines []string, i int) (end, count int) {
	end = i
	for end < len(lines) {
		line := lines[end]
		switch {
		case listItemPattern.MatchString(line):
			count++
			end++
		case strings.TrimSpace(line) == "":
			if end+1 < len(lines) && listItemPattern.MatchString(lines[end+1]) {
				end++
				continue
			}
			return end, count
		case strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t"):
			end++
		default:
			return end, count
		}
	}
	return end, count
}

// mdWalker accumulates chunks during one pass over the file.
type mdWalker struct {
	chunker *MarkdownChunker
	file    *FileInput
	chunks  []*Chunk

	// headings[i] holds the active heading text at level i+1.
	headings [6]string

	// prose buffer
	proseLines   []string
	proseStart   int    // 1-based line number of proseLines[0]
	proseSize    int
	proseSection string // section active when the buffer started
	proseHasBody bool   // buffer holds more than heading/blank lines
}

func (w *mdWalker) setHeading(level int, title string) {
	w.headings[level-1] = title
	for i := level; i < 6; i++ {
		w.headings[i] = ""
	}
}

// section is the nearest enclosing heading text: the deepest non-empty
// level of the stack.
func (w *mdWalker) section() string {
	for i := 5; i >= 0; i-- {
		if w.headings[i] != "" {
			return w.headings[i]
		}
	}
	return ""
}

func (w *mdWalker) addProse(line string, lineNum int) {
	w.addLine(line, lineNum, strings.TrimSpace(line) != "")
}

// addLine appends one line to the prose buffer. Heading lines carry
// body=false: a run of headings stays buffered across section changes
// until real prose or a structural block arrives, so a heading-only
// preamble becomes one text chunk under its first heading.
func (w *mdWalker) addLine(line string, lineNum int, body bool) {
	if len(w.proseLines) == 0 {
		if strings.TrimSpace(line) == "" {
			return // never start a chunk on a blank line
		}
		w.proseStart = lineNum
		w.proseSection = w.section()
	}
	w.proseLines = append(w.proseLines, line)
	w.proseSize += len(line) + 1
	if body {
		w.proseHasBody = true
	}

	if w.proseSize >= w.chunker.opts.ChunkSize {
		w.emitProse(true)
	}
}

func (w *mdWalker) flushProse() {
	if len(w.proseLines) > 0 {
		w.emitProse(false)
	}
	w.proseLines = nil
	w.proseSize = 0
	w.proseHasBody = false
}

// emitProse emits the buffered prose. With carryOverlap, trailing lines
// up to the overlap budget stay buffered so consecutive chunks share
// context.
func (w *mdWalker) emitProse(carryOverlap bool) {
	lines := w.proseLines
	end := len(lines)
	for end > 0 && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	if end == 0 {
		w.proseLines = nil
		w.proseSize = 0
		w.proseHasBody = false
		return
	}

	w.emitBlock(lines[:end], w.proseStart, ContentTypeText, "markdown", 0, w.proseSection)

	if !carryOverlap {
		w.proseLines = nil
		w.proseSize = 0
		w.proseHasBody = false
		return
	}

	// Keep a suffix of whole lines within the overlap budget.
	budget := w.chunker.opts.ChunkOverlap
	keepFrom := end
	kept := 0
	for keepFrom > 0 && kept+len(lines[keepFrom-1])+1 <= budget {
		kept += len(lines[keepFrom-1]) + 1
		keepFrom--
	}
	if keepFrom == end {
		w.proseLines = nil
		w.proseSize = 0
		w.proseHasBody = false
		return
	}
	carried := append([]string(nil), lines[keepFrom:end]...)
	w.proseStart = w.proseStart + keepFrom
	w.proseLines = carried
	w.proseSize = kept
}

func (w *mdWalker) emitBlock(lines []string, startLine int, contentType, language string, listLen int, section string) {
	content := strings.TrimRight(strings.Join(lines, "\n"), "\n")
	if strings.TrimSpace(content) == "" {
		return
	}

	p := Payload{
		FilePath:    w.file.Path,
		LineStart:   startLine,
		LineEnd:     startLine + len(lines) - 1,
		ContentType: contentType,
		Language:    language,
		Section:     section,
		DocType:     w.file.DocType,
	}
	if contentType == ContentTypeList {
		p.ListLength = listLen
		p.IsComplete = true
	}

	w.chunks = append(w.chunks, seal(&Chunk{Content: content, Payload: p}))
}
