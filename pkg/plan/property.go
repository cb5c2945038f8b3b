package plan

import (
	"strconv"

	"github.com/planguard/planguard/pkg/security"
)

// Resolve walks a dot-notation property path through a nested value and
// returns the value at the path. The second return value distinguishes an
// absent property (false) from a legitimately present null (nil, true).
//
// The path is re-validated here even though rule compilation already checked
// it: the resolver fails closed to absent on any malformed path, so a buggy
// or compromised caller cannot force unbounded traversal through it.
//
// A segment applied to a map is a key lookup; applied to a slice it is
// parsed as a non-negative integer index bounded by security.MaxArrayIndex
// and the slice length. A scalar met before the path is exhausted resolves
// to absent, never to an error.
func Resolve(root interface{}, path string) (interface{}, bool) {
	if root == nil {
		return nil, false
	}
	if err := security.ValidatePropertyPath(path); err != nil {
		return nil, false
	}

	current := root
	rest := path
	for rest != "" {
		var segment string
		segment, rest = nextSegment(rest)

		switch node := current.(type) {
		case map[string]interface{}:
			value, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = value

		case []interface{}:
			index, err := strconv.Atoi(segment)
			if err != nil {
				return nil, false
			}
			if index < 0 || index >= security.MaxArrayIndex || index >= len(node) {
				return nil, false
			}
			current = node[index]

		default:
			// Scalar (or nil) with path left over.
			return nil, false
		}
	}

	return current, true
}

// nextSegment splits off the leading path segment.
func nextSegment(path string) (segment, rest string) {
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			return path[:i], path[i+1:]
		}
	}
	return path, ""
}
