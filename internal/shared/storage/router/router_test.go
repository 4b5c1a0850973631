package router

import (
	"testing"
	"time"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	r, err := New(Config{
		Routes: map[string]Route{
			"au": {Bucket: "docs-au", Region: "ap-southeast-2", Prefix: "documents/au"},
			"in": {Bucket: "docs-in", Region: "ap-south-1", Prefix: "documents/in"},
		},
		DefaultRegion: "au",
		ArchivePrefix: "archive",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestResolveKnownRegions(t *testing.T) {
	r := newTestRouter(t)

	if got := r.Resolve("in"); got.Bucket != "docs-in" {
		t.Fatalf("in resolved to %+v", got)
	}
	if got := r.Resolve("AU"); got.Bucket != "docs-au" {
		t.Fatalf("case-insensitive tag resolved to %+v", got)
	}
	if got := r.Resolve(" au "); got.Bucket != "docs-au" {
		t.Fatalf("padded tag resolved to %+v", got)
	}
}

func TestResolveUnknownFallsBackToDefault(t *testing.T) {
	r := newTestRouter(t)
	for _, tag := range []string{"", "nz", "unknown"} {
		if got := r.Resolve(tag); got.Bucket != "docs-au" {
			t.Fatalf("tag %q resolved to %+v", tag, got)
		}
	}
}

func TestNewRejectsDefaultWithoutRoute(t *testing.T) {
	_, err := New(Config{
		Routes:        map[string]Route{"au": {Bucket: "docs-au"}},
		DefaultRegion: "us",
	})
	if err == nil {
		t.Fatalf("expected error for unrouted default region")
	}
}

func TestOrganizeKeyLayout(t *testing.T) {
	now := time.Date(2026, time.March, 10, 9, 30, 0, 0, time.UTC)
	got := OrganizeKey("case-1", "passport", "My Passport (1).pdf", now)
	want := "cases/case-1/passport/20260310_093000_My_Passport_1.pdf"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestArchiveKeyPrefixesCase(t *testing.T) {
	r := newTestRouter(t)
	got := r.ArchiveKey("case-1", "documents/au/cases/case-1/passport/x.pdf")
	want := "archive/case-1/documents/au/cases/case-1/passport/x.pdf"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"passport.pdf", "passport.pdf"},
		{"My Passport.pdf", "My_Passport.pdf"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\x\resume.docx`, "resume.docx"},
		{"weird*chars?.png", "weirdchars.png"},
		{".hidden", "file.hidden"},
		{"", "file"},
	}
	for _, tc := range cases {
		if got := SanitizeFilename(tc.in); got != tc.want {
			t.Fatalf("SanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
