// Package errors provides the structured error type behind every tool
// envelope: stable codes, detail maps, actionable suggestions, and the
// retry helpers used around remote calls.
package errors

// Stable error codes. These appear verbatim in tool envelopes and must not
// change between releases.
const (
	// CodeValidation marks malformed input; reported immediately.
	CodeValidation = "VALIDATION_ERROR"
	// CodePointNotFound marks a get against a missing point id; non-fatal.
	CodePointNotFound = "POINT_NOT_FOUND"
	// CodeDimensionMismatch marks a vector whose dimension differs from the
	// collection's; fatal for the request, not the process.
	CodeDimensionMismatch = "DIMENSION_MISMATCH"
	// CodeBatchLimitExceeded marks inputs above the configured batch cap.
	CodeBatchLimitExceeded = "BATCH_LIMIT_EXCEEDED"
	// CodeStoreUnavailable marks vector store transport failures and
	// timeouts; retried with backoff before surfacing.
	CodeStoreUnavailable = "VECTOR_STORE_UNAVAILABLE"
	// CodeEmbedFailed marks an embedding model call failure; retried once.
	CodeEmbedFailed = "EMBED_FAILED"
	// CodeParseFailed marks a file the chunkers could not parse; the file
	// is skipped with a warning and the run continues.
	CodeParseFailed = "PARSE_FAILED"
	// CodeConfig marks startup configuration failures; the process exits.
	CodeConfig = "CONFIG_ERROR"
)

// retryableCodes are transient by nature; everything else fails fast.
var retryableCodes = map[string]bool{
	CodeStoreUnavailable: true,
	CodeEmbedFailed:      true,
}

// canonicalSuggestions are appended to every error of the given code,
// before any call-site suggestions.
var canonicalSuggestions = map[string][]string{
	CodeValidation: {
		"Check the input against the tool schema (get_tool_schema)",
	},
	CodePointNotFound: {
		"Verify the id exists with query_points",
		"Point ids are returned as strings; pass them back unmodified to avoid precision loss",
	},
	CodeDimensionMismatch: {
		"All vectors in a collection must share one dimension",
		"Re-index after changing the embedding model",
	},
	CodeBatchLimitExceeded: {
		"Split the request into smaller batches",
	},
	CodeStoreUnavailable: {
		"Check the vector store URL and API key",
		"Confirm the store is reachable from this host",
	},
	CodeEmbedFailed: {
		"Confirm the embedding endpoint is running and the model is pulled",
	},
	CodeParseFailed: {
		"The file was skipped; fix its syntax and re-run index",
	},
	CodeConfig: {
		"Run 'ragmcp setup' to generate a starter mcp-config.json",
	},
}

// isRetryableCode reports whether a code represents a transient failure.
func isRetryableCode(code string) bool {
	return retryableCodes[code]
}
