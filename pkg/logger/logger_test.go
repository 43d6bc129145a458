package logger

import "testing"

// TestNew tests logger construction for both modes.
func TestNew(t *testing.T) {
	for _, mode := range []string{"dev", "prod", "production", ""} {
		log, err := New(mode)
		if err != nil {
			t.Fatalf("New(%q) failed: %v", mode, err)
		}
		if log == nil || log.SugaredLogger == nil {
			t.Fatalf("New(%q) returned incomplete logger", mode)
		}
	}
}

// TestNopAndWith tests that the no-op logger and child loggers are usable.
func TestNopAndWith(t *testing.T) {
	log := NewNop()
	log.Debug("debug", "k", "v")
	log.Info("info")
	log.Warn("warn")
	log.Error("error", "err", "boom")

	child := log.With("component", "test")
	if child == nil || child.SugaredLogger == nil {
		t.Fatal("With returned incomplete logger")
	}
	child.Info("from child")
	child.Sync()
}

// TestOrNop tests the nil-default helper.
func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
	real := NewNop()
	if OrNop(real) != real {
		t.Error("OrNop should return the given logger unchanged")
	}
}
