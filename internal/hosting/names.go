package hosting

import (
	"encoding/base64"
	"strings"

	"github.com/google/uuid"
)

// nameReplacer maps the base64 characters that are unsafe in URLs or
// file names onto dash sequences.
var nameReplacer = strings.NewReplacer("+", "-", "/", "--", "=", "--")

// NewName returns a random file name derived from a v4 UUID and ending in ext.
// The 16 UUID bytes are base64 encoded, so names only contain [A-Za-z0-9-]
// before the extension. Uniqueness within a directory is the caller's job,
// see Store.UniqueName.
func NewName(ext string) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	encoded := base64.StdEncoding.EncodeToString(id[:])
	return nameReplacer.Replace(encoded) + ext, nil
}

// NormalizeExtension returns "" for an empty extension and otherwise
// guarantees exactly one leading dot.
func NormalizeExtension(ext string) string {
	ext = strings.TrimLeft(ext, ".")
	if ext == "" {
		return ""
	}
	return "." + ext
}

// validName reports whether name is a single flat path segment. Dots
// inside a name are fine; only the "." and ".." segments are refused.
func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}
