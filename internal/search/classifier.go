package search

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// classifierCacheSize bounds the classification cache. Classification
// is cheap, but MCP clients tend to repeat the same queries verbatim.
const classifierCacheSize = 512

// Base confidence per intent; each extra pattern match from the same
// set adds 0.05, capped at 1.0.
const (
	confEnumeration = 0.90
	confCodeSearch  = 0.90
	confComparison  = 0.85
	confExplanation = 0.80
	confFactual     = 0.80

	// confDefault is carried when no pattern matches and the query
	// falls through to explanation.
	confDefault = 0.50

	confBonus = 0.05
)

// Classifier assigns an intent, a confidence, and retrieval hints to a
// query. It is regex-only and side-effect free; results are cached by
// normalized query text.
type Classifier struct {
	cache *lru.Cache[string, Classification]
}

// NewClassifier builds a classifier with its result cache.
func NewClassifier() *Classifier {
	cache, _ := lru.New[string, Classification](classifierCacheSize)
	return &Classifier{cache: cache}
}

// Classify determines the intent of a query. Intent sets are checked
// in priority order: enumeration, code search, comparison, factual,
// explanation. A query matching nothing defaults to explanation at low
// confidence.
func (c *Classifier) Classify(query string) Classification {
	normalized := strings.ToLower(strings.TrimSpace(query))
	if cached, ok := c.cache.Get(normalized); ok {
		return cached
	}

	result := c.classify(normalized)
	c.cache.Add(normalized, result)
	return result
}

func (c *Classifier) classify(query string) Classification {
	if n := countMatches(enumerationPatterns, query); n > 0 {
		return Classification{
			Intent:     IntentEnumeration,
			Confidence: confidence(confEnumeration, n),
			Hints:      Hints{Expand: true, TopK: 40},
		}
	}

	if n := countMatches(codeSearchPatterns, query); n > 0 {
		return Classification{
			Intent:     IntentCodeSearch,
			Confidence: confidence(confCodeSearch, n),
			Hints:      Hints{ContentType: "code"},
		}
	}

	if n := countMatches(comparisonPatterns, query); n > 0 {
		return Classification{
			Intent:     IntentComparison,
			Confidence: confidence(confComparison, n),
			Hints:      Hints{Expand: true},
			Operands:   extractOperands(query),
		}
	}

	if n := countMatches(factualPatterns, query); n > 0 {
		return Classification{
			Intent:     IntentFactual,
			Confidence: confidence(confFactual, n),
			Hints:      Hints{TopK: 5},
		}
	}

	if n := countMatches(explanationPatterns, query); n > 0 {
		return Classification{
			Intent:     IntentExplanation,
			Confidence: confidence(confExplanation, n),
			Hints:      Hints{Expand: true, MergeContiguous: true},
		}
	}

	// Nothing matched; treat as an explanation request at low
	// confidence so retrieval still expands context.
	return Classification{
		Intent:     IntentExplanation,
		Confidence: confDefault,
		Hints:      Hints{Expand: true, MergeContiguous: true},
	}
}

func confidence(base float64, matches int) float64 {
	conf := base + confBonus*float64(matches-1)
	if conf > 1.0 {
		return 1.0
	}
	return conf
}
