package explain

import (
	"strings"

	"github.com/wI2L/jsondiff"
)

// Translate renders patch operations as short sentences, one per field and
// operation, in patch order.
func Translate(patch jsondiff.Patch) []string {
	if len(patch) == 0 {
		return nil
	}

	var out []string
	seen := make(map[string]bool)
	for _, op := range patch {
		line := translateOperation(op)
		if line != "" && !seen[line] {
			seen[line] = true
			out = append(out, line)
		}
	}
	return out
}

func translateOperation(op jsondiff.Operation) string {
	field := topField(op.Path)
	if field == "" {
		return ""
	}

	switch op.Type {
	case jsondiff.OperationAdd:
		if op.Value == nil {
			return ""
		}
		return "Field '" + field + "' added."
	case jsondiff.OperationRemove:
		return "Field '" + field + "' removed."
	case jsondiff.OperationReplace:
		return "Field '" + field + "' changed."
	default:
		return ""
	}
}

// topField is the first segment of a JSON pointer, unescaped.
func topField(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	path = strings.ReplaceAll(path, "~1", "/")
	return strings.ReplaceAll(path, "~0", "~")
}
