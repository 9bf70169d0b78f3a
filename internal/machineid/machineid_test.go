package machineid

import "testing"

func TestID_NeverPanics(t *testing.T) {
	// Result depends on the platform running the test; just confirm it
	// returns without panicking and respects the length cap.
	id := ID()
	if len(id) > idLength {
		t.Fatalf("ID() = %q, longer than idLength %d", id, idLength)
	}
}

func TestName_NeverEmpty(t *testing.T) {
	if Name() == "" {
		t.Fatal("Name() returned an empty string")
	}
}
