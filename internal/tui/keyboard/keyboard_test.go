package keyboard

import "testing"

func newTestReader() *Reader {
	return &Reader{bytesCh: make(chan byte, 16)}
}

func TestDecode_SingleCharsAndEnter(t *testing.T) {
	r := newTestReader()
	if k := r.decode('k'); k.Kind != Rune || k.Rune != 'k' {
		t.Fatalf("got %+v", k)
	}
	if k := r.decode('K'); k.Kind != Rune || k.Rune != 'k' {
		t.Fatalf("expected case-insensitive mapping, got %+v", k)
	}
	if k := r.decode('\r'); k.Kind != Enter {
		t.Fatalf("got %+v", k)
	}
	if k := r.decode('\n'); k.Kind != Enter {
		t.Fatalf("got %+v", k)
	}
	if k := r.decode('9'); k.Kind != Unknown {
		t.Fatalf("digits should be unmapped, got %+v", k)
	}
}

func TestDecode_BareEscape(t *testing.T) {
	r := newTestReader()
	if k := r.decode(0x1b); k.Kind != Escape {
		t.Fatalf("got %+v", k)
	}
}

func TestDecode_ArrowSequences(t *testing.T) {
	cases := []struct {
		lead, code byte
		want       Kind
	}{
		{'[', 'A', Up},
		{'[', 'B', Down},
		{'O', 'A', Up},
		{'O', 'B', Down},
	}
	for _, c := range cases {
		r := newTestReader()
		r.bytesCh <- c.lead
		r.bytesCh <- c.code
		k := r.decode(0x1b)
		if k.Kind != c.want {
			t.Fatalf("lead=%q code=%q: got %+v, want %v", c.lead, c.code, k, c.want)
		}
	}
}

func TestDecode_UnknownEscapeSequence(t *testing.T) {
	r := newTestReader()
	r.bytesCh <- '['
	r.bytesCh <- 'Z'
	if k := r.decode(0x1b); k.Kind != Unknown {
		t.Fatalf("got %+v", k)
	}
}

func TestReadKey_NotStarted(t *testing.T) {
	r := New()
	if _, ok := r.ReadKey(); ok {
		t.Fatal("expected ReadKey to return false when not started")
	}
}

func TestStop_WithoutStart_IsSafe(t *testing.T) {
	r := New()
	if err := r.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := r.Stop(); err != nil {
		t.Fatal(err)
	}
}
