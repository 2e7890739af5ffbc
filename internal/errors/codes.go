package errors

// Category groups errors by the pipeline stage that produced them.
type Category string

const (
	CategoryIngestion Category = "Ingestion"
	CategoryProvider  Category = "Provider"
	CategoryConfig    Category = "Config"
	CategoryInternal  Category = "Internal"
)

// Severity indicates how the caller should react.
type Severity string

const (
	// SeverityFatal aborts the current operation (e.g. this document's ingestion).
	SeverityFatal Severity = "fatal"
	// SeverityWarning is recoverable; the operation continues degraded.
	SeverityWarning Severity = "warning"
)

// Error codes for the pipeline taxonomy.
const (
	// ErrCodeParsingImpossible: a document parsed to nothing and cannot be chunked.
	ErrCodeParsingImpossible = "ERR_101_PARSING_IMPOSSIBLE"

	// ErrCodeNotText: document content failed the text-likeness heuristic.
	ErrCodeNotText = "ERR_102_NOT_TEXT"

	// ErrCodeNameResolution: no docname could be derived from a citation.
	ErrCodeNameResolution = "ERR_103_NAME_RESOLUTION"

	// ErrCodeProviderCall: an embedding or chat call failed.
	ErrCodeProviderCall = "ERR_201_PROVIDER_CALL"

	// ErrCodeProviderUnavailable: a provider could not be reached at construction.
	ErrCodeProviderUnavailable = "ERR_202_PROVIDER_UNAVAILABLE"

	// ErrCodeConfigInvalid: configuration failed validation.
	ErrCodeConfigInvalid = "ERR_301_CONFIG_INVALID"

	// ErrCodeInvalidInput: caller passed arguments violating a contract.
	ErrCodeInvalidInput = "ERR_302_INVALID_INPUT"

	// ErrCodeStoreClosed: operation on a closed index or store.
	ErrCodeStoreClosed = "ERR_401_STORE_CLOSED"

	// ErrCodeInternal: unexpected internal failure.
	ErrCodeInternal = "ERR_500_INTERNAL"
)

// categoryFromCode maps an error code to its category by numeric range.
func categoryFromCode(code string) Category {
	switch {
	case code >= "ERR_101" && code < "ERR_200":
		return CategoryIngestion
	case code >= "ERR_201" && code < "ERR_300":
		return CategoryProvider
	case code >= "ERR_301" && code < "ERR_400":
		return CategoryConfig
	default:
		return CategoryInternal
	}
}

// severityFromCode derives severity from the code. Provider call failures
// during the map step are absorbed by the gatherer; everything else aborts
// the operation that raised it.
func severityFromCode(code string) Severity {
	if code == ErrCodeProviderCall {
		return SeverityWarning
	}
	return SeverityFatal
}

// isRetryableCode reports whether the operation behind the code may succeed
// on retry. Only transient provider failures qualify.
func isRetryableCode(code string) bool {
	return code == ErrCodeProviderCall || code == ErrCodeProviderUnavailable
}
