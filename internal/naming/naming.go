// Package naming generates object names and resolves them to safe locations.
//
// Names are generated server-side and never derived from client input, so
// upload paths need no sanitization. Delete paths accept caller-supplied
// names and URLs; everything that flows in from a caller goes through
// SanitizeName before it is allowed anywhere near the filesystem.
package naming

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Ext is the canonical extension carried by every stored object. All
// uploads are re-encoded to JPEG regardless of input format.
const Ext = ".jpg"

// objectURLPattern matches the trailing /uploads/{namespace}/{filename}
// segment of a public object URL. Anchored to the end of the string so
// query-less URLs, full URLs, and bare paths all parse the same way.
var objectURLPattern = regexp.MustCompile(`/uploads/([^/]+)/([^/]+)$`)

// GenerateName returns a new object name of the form
// "{unix-millis}_{8-hex-chars}.jpg". The time component keeps names roughly
// sortable by creation; the random component (first group of a random UUID)
// makes collisions negligible at operational scale. This is a probabilistic
// guarantee: no uniqueness check against existing objects is performed.
func GenerateName() string {
	return fmt.Sprintf("%d_%s%s", time.Now().UnixMilli(), strings.SplitN(uuid.NewString(), "-", 2)[0], Ext)
}

// SanitizeName reduces a caller-supplied name to its final path component.
// Directory separators (both kinds) and parent references are stripped or
// rejected, so the result can never resolve outside the namespace directory
// it is joined with. Returns an error for names with no usable component.
func SanitizeName(name string) (string, error) {
	// Treat backslashes as separators too; callers on Windows paste those.
	cleaned := path.Base(strings.ReplaceAll(name, `\`, "/"))
	switch cleaned {
	case "", ".", "..", "/":
		return "", fmt.Errorf("invalid object name %q", name)
	}
	return cleaned, nil
}

// ObjectURL builds the canonical public URL for a stored object:
// {domain}/uploads/{namespace}/{name}.
func ObjectURL(domain, namespace, name string) string {
	return fmt.Sprintf("%s/uploads/%s/%s", strings.TrimRight(domain, "/"), namespace, name)
}

// ParseObjectURL extracts (namespace, name) from a public object URL. It is
// the exact inverse of ObjectURL: only URLs whose path ends in a two-component
// /uploads/{namespace}/{filename} segment parse successfully.
func ParseObjectURL(rawURL string) (namespace, name string, err error) {
	m := objectURLPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", "", fmt.Errorf("URL %q does not match /uploads/{namespace}/{filename}", rawURL)
	}
	return m[1], m[2], nil
}
