package model

// Method labels an extraction strategy.
type Method string

const (
	MethodStructuredData Method = "embedded-structured-data"
	MethodStructural     Method = "structural-dom"
	MethodMetadata       Method = "page-metadata"
	MethodPattern        Method = "pattern-regex"
	MethodContextual     Method = "free-text"
	MethodLLM            Method = "llm"
)

// DefaultPriority is the consolidation order, most trusted first.
var DefaultPriority = []Method{
	MethodStructuredData,
	MethodStructural,
	MethodMetadata,
	MethodPattern,
	MethodContextual,
	MethodLLM,
}

// KnownMethod reports whether m is one of the built-in strategy labels.
func KnownMethod(m Method) bool {
	for _, k := range DefaultPriority {
		if k == m {
			return true
		}
	}
	return false
}
