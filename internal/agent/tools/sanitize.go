package tools

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/chative-commerce/storefront-agent/internal/agent/model"
)

// SanitizeArguments normalises model supplied arguments against the tool's
// declared parameter types: strings are trimmed (non-strings are stringified),
// integers are coerced from numbers or numeric strings and dropped otherwise.
// Input that is not a JSON object becomes "{}" so the handler reports the
// missing fields itself.
func SanitizeArguments(def model.ToolDefinition, arguments string) string {
	var m map[string]any
	if err := json.Unmarshal([]byte(arguments), &m); err != nil || m == nil {
		return "{}"
	}

	for name, p := range def.Params {
		v, ok := m[name]
		if !ok || p == nil {
			continue
		}
		if v == nil {
			delete(m, name)
			continue
		}
		switch p.Type {
		case schema.String:
			switch vv := v.(type) {
			case string:
				m[name] = strings.TrimSpace(vv)
			case map[string]any, []any:
				delete(m, name)
			default:
				m[name] = strings.TrimSpace(fmt.Sprint(v))
			}
		case schema.Integer:
			switch vv := v.(type) {
			case float64:
				m[name] = int(vv)
			case string:
				if n, err := strconv.Atoi(strings.TrimSpace(vv)); err == nil {
					m[name] = n
				} else {
					delete(m, name)
				}
			default:
				delete(m, name)
			}
		}
	}

	b, err := json.Marshal(m)
	if err != nil {
		return arguments
	}
	return string(b)
}

// clampInt returns v limited to [lo, hi].
func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
