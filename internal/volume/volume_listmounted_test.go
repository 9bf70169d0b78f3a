package volume

import (
	"os"
	"path/filepath"
	"testing"
)

func TestListMounted_ListsEntries(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"one", "two"} {
		if err := os.Mkdir(filepath.Join(dir, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	got := ListMounted(dir)
	if len(got) != 2 {
		t.Fatalf("ListMounted() returned %d entries, want 2: %v", len(got), got)
	}
}

func TestListMounted_MissingRootReturnsEmpty(t *testing.T) {
	got := ListMounted(filepath.Join(t.TempDir(), "does-not-exist"))
	if len(got) != 0 {
		t.Fatalf("ListMounted() = %v, want empty", got)
	}
}
