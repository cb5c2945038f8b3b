// Package security provides input validation and output sanitization guards
// shared by the plan and rule loaders. The evaluation engine itself performs
// no I/O; these guards run at the loading boundary and bound the size and
// shape of everything handed to the engine.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Limits enforced at the loading boundary.
const (
	// MaxFileSize is the largest plan or rule file accepted, in bytes.
	MaxFileSize = 50 * 1024 * 1024

	// MaxPathLength is the longest file path accepted.
	MaxPathLength = 4096

	// MaxPropertyPathLength is the longest property path accepted.
	MaxPropertyPathLength = 1000

	// MaxPropertyDepth is the maximum number of segments in a property path.
	MaxPropertyDepth = 20

	// MaxArrayIndex bounds numeric segments during property resolution.
	MaxArrayIndex = 100

	// MaxJSONDepth is the maximum nesting depth of a decoded document.
	MaxJSONDepth = 50

	// MaxOutputLength caps sanitized output strings.
	MaxOutputLength = 10000
)

// Allowed file extensions per input kind.
var (
	AllowedPlanExtensions = map[string]bool{".json": true, ".tfplan": true}
	AllowedRuleExtensions = map[string]bool{".json": true, ".yaml": true, ".yml": true}
)

// dangerousFilenameChars are shell metacharacters rejected in file names.
const dangerousFilenameChars = ";|&$`<>(){}[]\"'\\\n\r\t\x00"

// Error indicates that a security validation failed. It is distinct from
// ordinary load errors so callers can fail closed on it explicitly.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func securityErrorf(format string, args ...interface{}) error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// ValidateSafePath validates a file path against traversal, injection, and
// extension constraints and returns its cleaned absolute form.
func ValidateSafePath(path string, allowedExtensions map[string]bool, mustExist bool) (string, error) {
	if path == "" {
		return "", fmt.Errorf("file path cannot be empty")
	}

	if len(path) > MaxPathLength {
		return "", securityErrorf("file path exceeds maximum length of %d", MaxPathLength)
	}

	if strings.ContainsRune(path, 0) {
		return "", securityErrorf("null bytes not allowed in file paths")
	}

	// Only the basename is checked for shell metacharacters so legitimate
	// path separators pass through.
	base := filepath.Base(path)
	if strings.ContainsAny(base, dangerousFilenameChars) {
		return "", securityErrorf("filename %q contains dangerous characters", base)
	}

	resolved, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	// Relative paths must stay inside the working directory.
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to resolve working directory: %w", err)
		}
		rel, err := filepath.Rel(cwd, resolved)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", securityErrorf("path traversal detected: %q resolves outside the working directory", path)
		}
	}

	if allowedExtensions != nil {
		ext := strings.ToLower(filepath.Ext(resolved))
		if !allowedExtensions[ext] {
			return "", securityErrorf("invalid file extension %q for %q", ext, path)
		}
	}

	if mustExist {
		info, err := os.Stat(resolved)
		if err != nil {
			return "", fmt.Errorf("file does not exist: %s", path)
		}
		if info.IsDir() {
			return "", fmt.Errorf("path is not a file: %s", path)
		}
	}

	return resolved, nil
}

// ValidateSafeDirectory validates a directory path.
func ValidateSafeDirectory(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("directory path cannot be empty")
	}

	if len(path) > MaxPathLength {
		return "", securityErrorf("directory path exceeds maximum length of %d", MaxPathLength)
	}

	if strings.ContainsRune(path, 0) {
		return "", securityErrorf("null bytes not allowed in directory paths")
	}

	resolved, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("directory does not exist: %s", path)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("path is not a directory: %s", path)
	}

	return resolved, nil
}

// ValidateFileSize rejects files larger than MaxFileSize.
func ValidateFileSize(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("file does not exist: %s", path)
	}

	if info.Size() > MaxFileSize {
		return securityErrorf("file size (%.2fMB) exceeds maximum allowed size (%.2fMB)",
			float64(info.Size())/(1024*1024), float64(MaxFileSize)/(1024*1024))
	}

	return nil
}

// ValidatePropertyPath validates the shape of a dot-notation property path.
// The plan package's resolver calls this again before traversal so a buggy
// caller cannot push an unbounded path through it.
func ValidatePropertyPath(path string) error {
	if path == "" {
		return fmt.Errorf("property path cannot be empty")
	}

	if len(path) > MaxPropertyPathLength {
		return securityErrorf("property path too long (%d > %d)", len(path), MaxPropertyPathLength)
	}

	parts := strings.Split(path, ".")
	if len(parts) > MaxPropertyDepth {
		return securityErrorf("property path depth (%d) exceeds maximum (%d)", len(parts), MaxPropertyDepth)
	}

	for _, part := range parts {
		if part == "" {
			return securityErrorf("property path cannot contain empty segments")
		}
		for _, r := range part {
			if r < 0x20 || r == 0x7f {
				return securityErrorf("property path contains invalid characters")
			}
		}
	}

	return nil
}

// ValidateJSONDepth rejects decoded documents nested deeper than MaxJSONDepth.
func ValidateJSONDepth(v interface{}) error {
	return validateDepth(v, 0)
}

func validateDepth(v interface{}, depth int) error {
	if depth > MaxJSONDepth {
		return securityErrorf("JSON nesting depth (%d) exceeds maximum allowed depth (%d)", depth, MaxJSONDepth)
	}

	switch t := v.(type) {
	case map[string]interface{}:
		for _, child := range t {
			if err := validateDepth(child, depth+1); err != nil {
				return err
			}
		}
	case []interface{}:
		for _, child := range t {
			if err := validateDepth(child, depth+1); err != nil {
				return err
			}
		}
	}

	return nil
}

// OutputContext selects context-specific sanitization rules.
type OutputContext string

const (
	ContextTerminal OutputContext = "terminal"
	ContextGitHub   OutputContext = "github"
	ContextJSON     OutputContext = "json"
)

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// SanitizeForOutput strips ANSI escapes and control characters from text so
// resource names taken from untrusted plans cannot inject terminal escapes or
// GitHub Actions workflow commands into reports.
func SanitizeForOutput(text string, context OutputContext) string {
	if text == "" {
		return text
	}

	sanitized := ansiEscape.ReplaceAllString(text, "")

	var b strings.Builder
	b.Grow(len(sanitized))
	for _, r := range sanitized {
		// Tab and space stay; other control characters are removed.
		if (r < 0x20 && r != '\t') || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	sanitized = b.String()

	if context == ContextGitHub {
		// A zero-width space breaks "::" so sanitized text cannot form a
		// workflow command.
		sanitized = strings.ReplaceAll(sanitized, "::", ":​:")
	}

	if len(sanitized) > MaxOutputLength {
		sanitized = sanitized[:MaxOutputLength] + "... (truncated)"
	}

	return sanitized
}
