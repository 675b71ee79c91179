package naming

import (
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func TestGenerateNameShape(t *testing.T) {
	name := GenerateName()

	re := regexp.MustCompile(`^\d{13,}_[0-9a-f]{8}\.jpg$`)
	if !re.MatchString(name) {
		t.Errorf("GenerateName() = %q, want millis_hex8.jpg", name)
	}
}

func TestGenerateNameUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		name := GenerateName()
		if seen[name] {
			t.Fatalf("duplicate name generated: %q", name)
		}
		seen[name] = true
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"1700000000000_deadbeef.jpg", "1700000000000_deadbeef.jpg", false},
		{"photo.jpg", "photo.jpg", false},
		{"../photo.jpg", "photo.jpg", false},
		{"../../../../etc/passwd", "passwd", false},
		{"/etc/passwd", "passwd", false},
		{"a/b/c.jpg", "c.jpg", false},
		{`..\..\windows\system32`, "system32", false},
		{`evil\..\..\x.jpg`, "x.jpg", false},
		{"", "", true},
		{".", "", true},
		{"..", "", true},
		{"/", "", true},
		{"////", "", true},
		{"../..", "", true},
		{`\..\..`, "", true},
	}

	for _, tt := range tests {
		got, err := SanitizeName(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("SanitizeName(%q) = %q, want error", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("SanitizeName(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// TestSanitizeNameStaysInside verifies the traversal-safety invariant: for
// hostile inputs, joining the sanitized name with a namespace directory never
// resolves outside that directory.
func TestSanitizeNameStaysInside(t *testing.T) {
	hostile := []string{
		"../escape.jpg",
		"../../escape.jpg",
		"..%2F..%2Fescape.jpg",
		"/abs/path.jpg",
		"a/../../b.jpg",
		"....//....//etc/shadow",
		strings.Repeat("../", 40) + "deep.jpg",
		`..\..\..\boot.ini`,
	}

	base := filepath.Join("data", "uploads", "posts")
	for _, in := range hostile {
		name, err := SanitizeName(in)
		if err != nil {
			continue
		}
		joined := filepath.Clean(filepath.Join(base, name))
		if !strings.HasPrefix(joined, base+string(filepath.Separator)) {
			t.Errorf("SanitizeName(%q) = %q resolves to %q, outside %q", in, name, joined, base)
		}
	}
}

func TestObjectURLRoundTrip(t *testing.T) {
	tests := []struct {
		domain    string
		namespace string
		name      string
	}{
		{"https://storage.example.com", "posts", "1700000000000_deadbeef.jpg"},
		{"https://storage.example.com/", "avatars", "1_0a0a0a0a.jpg"},
		{"http://localhost:3001", "reports", "42_cafebabe.jpg"},
	}

	for _, tt := range tests {
		u := ObjectURL(tt.domain, tt.namespace, tt.name)
		ns, name, err := ParseObjectURL(u)
		if err != nil {
			t.Errorf("ParseObjectURL(%q) failed: %v", u, err)
			continue
		}
		if ns != tt.namespace || name != tt.name {
			t.Errorf("ParseObjectURL(%q) = (%q, %q), want (%q, %q)", u, ns, name, tt.namespace, tt.name)
		}
	}
}

func TestParseObjectURLRejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"https://storage.example.com",
		"https://storage.example.com/uploads",
		"https://storage.example.com/uploads/posts/",
		"https://storage.example.com/other/posts/a.jpg",
		"/posts/a.jpg",
		"uploads/posts",
	}

	for _, u := range bad {
		if ns, name, err := ParseObjectURL(u); err == nil {
			t.Errorf("ParseObjectURL(%q) = (%q, %q), want error", u, ns, name)
		}
	}
}
