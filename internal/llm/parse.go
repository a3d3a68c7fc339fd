package llm

import (
	"encoding/json"
	"strings"
)

// Kind tags a parse Result
type Kind int

const (
	KindEmpty Kind = iota
	KindOk
)

func (k Kind) String() string {
	if k == KindOk {
		return "ok"
	}
	return "empty"
}

// Result is the outcome of ParseJSON: either Ok with the decoded value or
// Empty. Callers switch on Kind instead of handling an error.
type Result struct {
	kind  Kind
	value interface{}
}

func (r Result) Kind() Kind { return r.kind }

// Value returns the decoded JSON value, nil for Empty
func (r Result) Value() interface{} { return r.value }

// ParseJSON decodes completion output that may carry prose or code fences
// around a JSON payload. Strict decode first, then the outermost bracket or
// brace span. Anything else is Empty.
func ParseJSON(raw string) Result {
	content := stripFences(raw)
	if content == "" {
		return Result{kind: KindEmpty}
	}
	if v, ok := decode(content); ok {
		return Result{kind: KindOk, value: v}
	}
	if span := outermostSpan(content); span != "" {
		if v, ok := decode(span); ok {
			return Result{kind: KindOk, value: v}
		}
	}
	return Result{kind: KindEmpty}
}

func decode(s string) (interface{}, bool) {
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	switch v.(type) {
	case []interface{}, map[string]interface{}:
		return v, true
	default:
		// bare strings and numbers carry no phrases
		return nil, false
	}
}

func stripFences(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

// outermostSpan returns the widest [..] or {..} span, whichever opens first
func outermostSpan(content string) string {
	arrStart, arrEnd := strings.Index(content, "["), strings.LastIndex(content, "]")
	objStart, objEnd := strings.Index(content, "{"), strings.LastIndex(content, "}")

	arrayOK := arrStart >= 0 && arrEnd > arrStart
	objectOK := objStart >= 0 && objEnd > objStart
	switch {
	case arrayOK && (!objectOK || arrStart < objStart):
		return content[arrStart : arrEnd+1]
	case objectOK:
		return content[objStart : objEnd+1]
	default:
		return ""
	}
}
