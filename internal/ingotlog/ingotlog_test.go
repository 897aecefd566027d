package ingotlog

import "testing"

func TestNew_DefaultsToConsoleOnly(t *testing.T) {
	log := New(Options{})
	if log == nil {
		t.Fatal("expected a non-nil logger")
	}
	log.Info("smoke test")
}

func TestNew_WithFileSink(t *testing.T) {
	dir := t.TempDir()
	log := New(Options{Enabled: true, File: dir + "/out.log", Debug: true})
	if log == nil {
		t.Fatal("expected a non-nil logger")
	}
	log.Debug("debug line")
}

func TestNoop_NeverPanics(t *testing.T) {
	log := Noop()
	log.Warnw("warn", "key", "value")
}
