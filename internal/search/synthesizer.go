package search

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// enumItemRegex matches one numbered list item at the start of a line.
var enumItemRegex = regexp.MustCompile(`^\s*(\d+)\.\s(.*)`)

// Synthesizer turns a ranked candidate list into a rendered answer.
// The strategy is picked by intent; every emitted chunk contributes
// one citation, appended in first-reference order.
type Synthesizer struct{}

// NewSynthesizer returns a stateless synthesizer.
func NewSynthesizer() *Synthesizer { return &Synthesizer{} }

// Synthesize renders results for a single-query intent. Comparison has
// its own entry point because it needs both operand pools.
func (s *Synthesizer) Synthesize(intent Intent, results []*Candidate) *Answer {
	switch intent {
	case IntentEnumeration:
		return s.enumeration(results)
	case IntentCodeSearch:
		return s.codeSearch(results)
	case IntentFactual:
		return s.factual(results)
	default:
		return s.explanation(results)
	}
}

// Comparison renders the two operand pools side by side, each as an
// explanation synthesis under its operand heading.
func (s *Synthesizer) Comparison(operands []string, left, right []*Candidate) *Answer {
	leftAnswer := s.explanation(left)
	rightAnswer := s.explanation(right)

	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n%s\n\n", operands[0], leftAnswer.Text)
	fmt.Fprintf(&b, "## %s\n\n%s", operands[1], rightAnswer.Text)

	cites := newCitationList()
	for _, c := range leftAnswer.Citations {
		cites.add(c)
	}
	for _, c := range rightAnswer.Citations {
		cites.add(c)
	}
	return &Answer{Text: b.String(), Citations: cites.list}
}

// enumeration collects numbered items across chunks, orders them by
// their printed number, and reports whether the sequence is complete.
func (s *Synthesizer) enumeration(results []*Candidate) *Answer {
	type item struct {
		n    int
		text string
		cite Citation
	}

	// First occurrence wins: chunks arrive in rank order, so a number
	// repeated in a lower-ranked chunk is dropped.
	byNumber := make(map[int]item)
	var numbers []int
	for _, c := range results {
		for _, line := range strings.Split(c.Content(), "\n") {
			m := enumItemRegex.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			if _, dup := byNumber[n]; dup {
				continue
			}
			byNumber[n] = item{n: n, text: m[2], cite: citationFor(c)}
			numbers = append(numbers, n)
		}
	}

	if len(numbers) == 0 {
		return s.explanation(results)
	}
	sort.Ints(numbers)

	var b strings.Builder
	cites := newCitationList()
	for _, n := range numbers {
		it := byNumber[n]
		fmt.Fprintf(&b, "%d. %s\n", it.n, it.text)
		cites.add(it.cite)
	}

	b.WriteString("\n")
	if missing := missingIndices(numbers); len(missing) == 0 {
		fmt.Fprintf(&b, "Complete list (1..%d).", numbers[len(numbers)-1])
	} else {
		fmt.Fprintf(&b, "Missing indices: %s.", joinInts(missing))
	}
	return &Answer{Text: b.String(), Citations: cites.list}
}

// explanation groups chunks by file, orders each file by line, drops
// the shorter of two overlapping chunks, and keeps original line
// breaks.
func (s *Synthesizer) explanation(results []*Candidate) *Answer {
	if len(results) == 0 {
		return &Answer{Text: "No matching content found.", Citations: []Citation{}}
	}

	grouped, order := groupByFile(results)

	var b strings.Builder
	cites := newCitationList()
	for i, path := range order {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "## %s\n", path)
		for _, c := range dropOverlaps(grouped[path]) {
			b.WriteString("\n")
			b.WriteString(strings.TrimRight(c.Content(), "\n"))
			b.WriteString("\n")
			cites.add(citationFor(c))
		}
	}
	return &Answer{Text: b.String(), Citations: cites.list}
}

// codeSearch renders each chunk as a located, fenced code block.
func (s *Synthesizer) codeSearch(results []*Candidate) *Answer {
	if len(results) == 0 {
		return &Answer{Text: "No matching code found.", Citations: []Citation{}}
	}

	var b strings.Builder
	cites := newCitationList()
	for i, c := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%s:%d-%d", c.FilePath(), c.LineStart(), c.LineEnd())
		if loc := c.Locator(); loc != "" {
			fmt.Fprintf(&b, " (%s)", loc)
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "```%s\n%s\n```", c.Language(), strings.TrimRight(c.Content(), "\n"))
		cites.add(citationFor(c))
	}
	return &Answer{Text: b.String(), Citations: cites.list}
}

// factual answers with the top-ranked chunk verbatim.
func (s *Synthesizer) factual(results []*Candidate) *Answer {
	if len(results) == 0 {
		return &Answer{Text: "No matching content found.", Citations: []Citation{}}
	}
	top := results[0]
	cite := citationFor(top)
	text := strings.TrimRight(top.Content(), "\n") + "\n\n" + cite.String()
	return &Answer{Text: text, Citations: []Citation{cite}}
}

// groupByFile buckets candidates by file path, preserving the order in
// which files are first referenced.
func groupByFile(results []*Candidate) (map[string][]*Candidate, []string) {
	grouped := make(map[string][]*Candidate)
	var order []string
	for _, c := range results {
		path := c.FilePath()
		if _, ok := grouped[path]; !ok {
			order = append(order, path)
		}
		grouped[path] = append(grouped[path], c)
	}
	for _, path := range order {
		sort.SliceStable(grouped[path], func(i, j int) bool {
			return grouped[path][i].LineStart() < grouped[path][j].LineStart()
		})
	}
	return grouped, order
}

// dropOverlaps removes the shorter of each overlapping pair from a
// line-sorted chunk list.
func dropOverlaps(chunks []*Candidate) []*Candidate {
	var out []*Candidate
	for _, c := range chunks {
		if len(out) == 0 {
			out = append(out, c)
			continue
		}
		last := out[len(out)-1]
		if c.LineStart() > last.LineEnd() {
			out = append(out, c)
			continue
		}
		// Overlap: keep the longer chunk.
		if span(c) > span(last) {
			out[len(out)-1] = c
		}
	}
	return out
}

func span(c *Candidate) int { return c.LineEnd() - c.LineStart() }

// missingIndices returns the gaps in a sorted number sequence relative
// to [1, max].
func missingIndices(sorted []int) []int {
	var missing []int
	next := 1
	for _, n := range sorted {
		for ; next < n; next++ {
			missing = append(missing, next)
		}
		next = n + 1
	}
	return missing
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}

// citationList appends citations in first-reference order, once each.
type citationList struct {
	seen map[Citation]bool
	list []Citation
}

func newCitationList() *citationList {
	return &citationList{seen: make(map[Citation]bool), list: []Citation{}}
}

func (l *citationList) add(c Citation) {
	if l.seen[c] {
		return
	}
	l.seen[c] = true
	l.list = append(l.list, c)
}
