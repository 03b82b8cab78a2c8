package search

import "regexp"

// Intent trigger patterns. Queries are lowercased before matching, so
// the patterns stay lowercase; the backtick pattern is the exception
// and matches any fenced identifier.
var (
	enumerationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\blist\s+all\b`),
		regexp.MustCompile(`\bhow\s+many\b`),
		regexp.MustCompile(`\bwhat\s+are\s+all\b`),
		regexp.MustCompile(`\bwhat\s+are\s+the\s+\d+\b`),
		regexp.MustCompile(`\benumerate\b`),
		regexp.MustCompile(`\bshow\s+me\s+all\b`),
		regexp.MustCompile(`\bcomplete\s+list\b`),
		regexp.MustCompile(`\ball\s+of\s+the\b`),
		regexp.MustCompile(`\bgive\s+me\s+all\b`),
	}

	codeSearchPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bshow\s+me\b.*\bcode\b`),
		regexp.MustCompile(`\bfind\b.*\bfunction\b`),
		regexp.MustCompile(`\bwhere\s+is\b.*\bimplement`),
		regexp.MustCompile(`\bcode\s+for\b`),
		regexp.MustCompile(`\bimplementation\s+of\b`),
		regexp.MustCompile(`\bclass\s+\w+\s+definition\b`),
		regexp.MustCompile("`[^`]+`"),
	}

	comparisonPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bdifference\s+between\b`),
		regexp.MustCompile(`\bcompare\b`),
		regexp.MustCompile(`\bvs\.?(\s|$)`),
		regexp.MustCompile(`\bversus\b`),
		regexp.MustCompile(`\bsimilarities\s+and\s+differences\b`),
	}

	factualPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bwhat\s+is\s+the\s+default\b`),
		regexp.MustCompile(`\bwhich\s+port\b`),
		regexp.MustCompile(`\bwhat\s+port\b`),
		regexp.MustCompile(`\bdefault\s+value\s+of\b`),
	}

	explanationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bhow\s+does\b`),
		regexp.MustCompile(`\bexplain\b`),
		regexp.MustCompile(`\bwhy\b`),
		regexp.MustCompile(`\bwhat\s+is\b`),
		regexp.MustCompile(`\bdescribe\b`),
		regexp.MustCompile(`\bwhat\s+does\b`),
		regexp.MustCompile(`\btell\s+me\s+about\b`),
		regexp.MustCompile(`\bwhat\s+are\s+the\b`),
	}
)

// Comparison operand extractors, tried in order. Each must capture
// exactly two groups.
var comparisonExtractors = []*regexp.Regexp{
	regexp.MustCompile(`(?:difference|differences|similarities\s+and\s+differences)\s+between\s+(.+?)\s+and\s+(.+?)[?.!]?$`),
	regexp.MustCompile(`\bcompare\s+(.+?)\s+(?:and|with|to|against)\s+(.+?)[?.!]?$`),
	regexp.MustCompile(`^(.+?)\s+(?:vs\.?|versus)\s+(.+?)[?.!]?$`),
}

// countMatches returns how many patterns in the set match the query.
func countMatches(patterns []*regexp.Regexp, query string) int {
	n := 0
	for _, p := range patterns {
		if p.MatchString(query) {
			n++
		}
	}
	return n
}

// extractOperands pulls the two comparison subqueries out of the query,
// or returns nil when no extractor applies.
func extractOperands(query string) []string {
	for _, re := range comparisonExtractors {
		m := re.FindStringSubmatch(query)
		if len(m) == 3 && m[1] != "" && m[2] != "" {
			return []string{m[1], m[2]}
		}
	}
	return nil
}
