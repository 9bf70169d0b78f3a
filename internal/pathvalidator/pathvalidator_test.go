package pathvalidator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/amber-sync/amber-sub000/internal/amberr"
)

func newTestValidator(t *testing.T, roots ...string) *Validator {
	t.Helper()
	v := New()
	for _, r := range roots {
		if err := v.AddRoot(r); err != nil {
			t.Fatalf("AddRoot(%q): %v", r, err)
		}
	}
	return v
}

func TestValidate_AllowsPathUnderRoot(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	v := newTestValidator(t, root)

	got, err := v.Validate(sub)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	canonicalSub, _ := filepath.EvalSymlinks(sub)
	if got != canonicalSub {
		t.Fatalf("got %q, want %q", got, canonicalSub)
	}
}

func TestValidate_RejectsOutsideRoot(t *testing.T) {
	root := t.TempDir()
	other := t.TempDir()
	v := newTestValidator(t, root)

	_, err := v.Validate(other)
	if !amberr.Is(err, amberr.KindPermissionDenied) {
		t.Fatalf("expected PermissionDenied, got %v", err)
	}
}

func TestValidate_RejectsNullByte(t *testing.T) {
	v := New()
	_, err := v.Validate("/tmp/foo\x00bar")
	if !amberr.Is(err, amberr.KindInvalidPath) {
		t.Fatalf("expected InvalidPath, got %v", err)
	}
}

func TestValidate_RejectsRelativeComponents(t *testing.T) {
	root := t.TempDir()
	v := newTestValidator(t, root)

	for _, p := range []string{
		root + "/../etc/passwd",
		root + "/./x",
		"relative/path",
	} {
		if _, err := v.Validate(p); !amberr.Is(err, amberr.KindInvalidPath) {
			t.Fatalf("Validate(%q): expected InvalidPath, got %v", p, err)
		}
	}
}

func TestValidate_RejectsURLEncodedTraversal(t *testing.T) {
	root := t.TempDir()
	v := newTestValidator(t, root)

	p := root + "/%2e%2e/etc/passwd"
	_, err := v.Validate(p)
	if err == nil {
		t.Fatalf("expected an error for URL-encoded traversal, got nil")
	}
}

func TestValidate_RejectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(root, "escape")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	v := newTestValidator(t, root)

	_, err := v.Validate(filepath.Join(link, "secret.txt"))
	if !amberr.Is(err, amberr.KindPermissionDenied) {
		t.Fatalf("expected PermissionDenied for symlink escape, got %v", err)
	}
}

func TestValidateForCreate_ResolvesMissingTail(t *testing.T) {
	root := t.TempDir()
	v := newTestValidator(t, root)

	target := filepath.Join(root, "new", "nested", "restore.txt")
	got, err := v.ValidateForCreate(target)
	if err != nil {
		t.Fatalf("ValidateForCreate: %v", err)
	}
	canonicalRoot, _ := filepath.EvalSymlinks(root)
	want := filepath.Join(canonicalRoot, "new", "nested", "restore.txt")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestValidateForCreate_RejectsOutsideRoot(t *testing.T) {
	root := t.TempDir()
	other := t.TempDir()
	v := newTestValidator(t, root)

	_, err := v.ValidateForCreate(filepath.Join(other, "new", "file.txt"))
	if !amberr.Is(err, amberr.KindPermissionDenied) {
		t.Fatalf("expected PermissionDenied, got %v", err)
	}
}

func TestValidateForCreate_ExistingPathUsesValidate(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "exists.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	v := newTestValidator(t, root)

	got, err := v.ValidateForCreate(filepath.Join(root, "exists.txt"))
	if err != nil {
		t.Fatalf("ValidateForCreate: %v", err)
	}
	canonical, _ := filepath.EvalSymlinks(filepath.Join(root, "exists.txt"))
	if got != canonical {
		t.Fatalf("got %q, want %q", got, canonical)
	}
}

func TestWithJobRoots_SkipsSSHRemotes(t *testing.T) {
	root := t.TempDir()
	v, err := WithJobRoots(root, nil, []JobRoot{
		{SourcePath: "user@host:/remote/path", DestPath: root},
	})
	if err != nil {
		t.Fatalf("WithJobRoots: %v", err)
	}
	if len(v.Roots()) == 0 {
		t.Fatal("expected at least the app data root to be present")
	}
	for _, r := range v.Roots() {
		if strings.Contains(r, "user@host") {
			t.Fatalf("SSH remote source was added as a root: %q", r)
		}
	}
}
