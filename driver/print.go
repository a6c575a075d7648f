package driver

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/flowrt/flow-runtime/dfb"
	"github.com/flowrt/flow-runtime/host"
)

// formatResults renders resolved result slots comma-separated, one entry
// per declared result type, with no trailing comma.
func formatResults(types []dfb.TypeName, results []*host.AsyncValue) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(formatResult(types[i], r))
	}
	return b.String()
}

// formatResult renders one slot. Error slots render as <<error: msg>>;
// the primitive types print their natural representation; anything else
// prints as "<type> value".
func formatResult(typ dfb.TypeName, r *host.AsyncValue) string {
	if err := r.Err(); err != nil {
		return fmt.Sprintf("<<error: %s>>", err.Error())
	}
	v := r.Value()
	switch typ {
	case dfb.TypeI1:
		if b, ok := v.(bool); ok {
			return strconv.FormatBool(b)
		}
	case dfb.TypeI32:
		if n, ok := v.(int32); ok {
			return strconv.FormatInt(int64(n), 10)
		}
	case dfb.TypeI64:
		if n, ok := v.(int64); ok {
			return strconv.FormatInt(n, 10)
		}
	case dfb.TypeF32:
		if f, ok := v.(float32); ok {
			return strconv.FormatFloat(float64(f), 'g', -1, 32)
		}
	case dfb.TypeF64:
		if f, ok := v.(float64); ok {
			return strconv.FormatFloat(f, 'g', -1, 64)
		}
	}
	return string(typ) + " value"
}
