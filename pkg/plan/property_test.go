package plan

import (
	"strings"
	"testing"
)

func TestResolve(t *testing.T) {
	root := map[string]interface{}{
		"acl": "private",
		"versioning": []interface{}{
			map[string]interface{}{"enabled": true},
		},
		"tags": map[string]interface{}{
			"Team": "platform",
		},
		"lifecycle_rule": []interface{}{
			map[string]interface{}{"id": "expire"},
			map[string]interface{}{"id": "archive"},
		},
		"kms_key_id": nil,
	}

	tests := []struct {
		name      string
		path      string
		want      interface{}
		wantFound bool
	}{
		{"top-level key", "acl", "private", true},
		{"nested map", "tags.Team", "platform", true},
		{"list index then key", "versioning.0.enabled", true, true},
		{"second list element", "lifecycle_rule.1.id", "archive", true},
		{"present null", "kms_key_id", nil, true},
		{"missing key", "logging", nil, false},
		{"missing nested key", "tags.Owner", nil, false},
		{"index out of range", "versioning.1.enabled", nil, false},
		{"negative index", "versioning.-1.enabled", nil, false},
		{"non-numeric index", "versioning.first.enabled", nil, false},
		{"path through scalar", "acl.anything", nil, false},
		{"path through null", "kms_key_id.arn", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := Resolve(root, tt.path)
			if found != tt.wantFound {
				t.Fatalf("Resolve(%q) found = %v, want %v", tt.path, found, tt.wantFound)
			}
			if found && got != tt.want {
				t.Errorf("Resolve(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestResolveBounds(t *testing.T) {
	t.Run("nil root", func(t *testing.T) {
		if _, found := Resolve(nil, "a"); found {
			t.Error("Resolve found a value under a nil root")
		}
	})

	t.Run("empty path", func(t *testing.T) {
		if _, found := Resolve(map[string]interface{}{"a": 1}, ""); found {
			t.Error("Resolve accepted an empty path")
		}
	})

	t.Run("empty segment", func(t *testing.T) {
		if _, found := Resolve(map[string]interface{}{"a": 1}, "a..b"); found {
			t.Error("Resolve accepted consecutive dots")
		}
	})

	t.Run("depth over limit resolves to absent", func(t *testing.T) {
		// Build a chain deeper than the segment limit so a valid value
		// exists at the end of it.
		root := map[string]interface{}{}
		current := root
		segments := make([]string, 0, 25)
		for i := 0; i < 25; i++ {
			next := map[string]interface{}{}
			current["k"] = next
			current = next
			segments = append(segments, "k")
		}
		current["leaf"] = "value"
		segments = append(segments, "leaf")

		if _, found := Resolve(root, strings.Join(segments, ".")); found {
			t.Error("Resolve followed a path deeper than the segment limit")
		}
	})

	t.Run("array index over limit resolves to absent", func(t *testing.T) {
		big := make([]interface{}, 200)
		for i := range big {
			big[i] = i
		}
		root := map[string]interface{}{"list": big}

		if _, found := Resolve(root, "list.150"); found {
			t.Error("Resolve followed an index past the array bound limit")
		}
		if got, found := Resolve(root, "list.99"); !found || got != 99 {
			t.Errorf("Resolve(list.99) = %v, %v; want 99, true", got, found)
		}
	})
}
