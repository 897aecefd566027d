// Package keyboard implements the Keyboard Reader (spec.md §4.14, C14):
// scoped acquisition of raw terminal mode with a non-blocking read and a
// small escape-sequence state machine, grounded on the teacher's
// term.IsTerminal/term.MakeRaw usage style
// (cmd/alex/tui_bubbletea.go's RunBubbleChatUI TTY check).
package keyboard

import (
	"os"
	"sync"
	"time"
	"unicode"

	"golang.org/x/term"
)

// Kind is the closed set of keys the reader can produce.
type Kind int

const (
	Unknown Kind = iota
	Rune         // a single mapped character, in Key.Rune
	Enter
	Escape
	Up
	Down
)

// Key is one decoded keypress.
type Key struct {
	Kind Kind
	Rune rune
}

const escapeFollowupTimeout = 30 * time.Millisecond

// Reader owns raw-mode acquisition for stdin. Entering raw mode twice,
// leaving twice, or leaving without entering are all safe no-ops.
type Reader struct {
	mu       sync.Mutex
	started  bool
	fd       int
	oldState *term.State
	bytesCh  chan byte
	stopCh   chan struct{}
}

// New builds a Reader over os.Stdin.
func New() *Reader {
	return &Reader{fd: int(os.Stdin.Fd())}
}

// Start acquires raw mode and begins pumping stdin bytes into an internal
// channel. On a non-terminal stdin (or a repeated call), Start is a no-op.
func (r *Reader) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}
	if !term.IsTerminal(r.fd) {
		return nil
	}
	state, err := term.MakeRaw(r.fd)
	if err != nil {
		return err
	}
	r.oldState = state
	r.started = true
	r.bytesCh = make(chan byte, 256)
	r.stopCh = make(chan struct{})
	go r.pump()
	return nil
}

func (r *Reader) pump() {
	buf := make([]byte, 1)
	for {
		select {
		case <-r.stopCh:
			return
		default:
		}
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}
		select {
		case r.bytesCh <- buf[0]:
		case <-r.stopCh:
			return
		}
	}
}

// Stop restores the terminal's prior mode. Safe to call when not started,
// and safe to call more than once.
func (r *Reader) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return nil
	}
	close(r.stopCh)
	r.started = false
	if r.oldState != nil {
		state := r.oldState
		r.oldState = nil
		return term.Restore(r.fd, state)
	}
	return nil
}

// ReadKey returns the next decoded key, or (Key{}, false) if none is ready.
// Never blocks: on non-Unix or when not started, it always returns false.
func (r *Reader) ReadKey() (Key, bool) {
	r.mu.Lock()
	started := r.started
	ch := r.bytesCh
	r.mu.Unlock()
	if !started {
		return Key{}, false
	}
	select {
	case b := <-ch:
		return r.decode(b), true
	default:
		return Key{}, false
	}
}

func (r *Reader) decode(b byte) Key {
	switch b {
	case '\r', '\n':
		return Key{Kind: Enter}
	case 0x1b:
		return r.decodeEscape()
	}
	if isMappedChar(b) {
		return Key{Kind: Rune, Rune: unicode.ToLower(rune(b))}
	}
	return Key{Kind: Unknown}
}

// decodeEscape handles a lone Escape key versus `[A`/`OA` (Up) and
// `[B`/`OB` (Down) arrow sequences, each requiring a followup byte within
// escapeFollowupTimeout or the lone \x1b is taken as Escape.
func (r *Reader) decodeEscape() Key {
	lead, ok := r.readByteWithTimeout()
	if !ok {
		return Key{Kind: Escape}
	}
	if lead != '[' && lead != 'O' {
		return Key{Kind: Unknown}
	}
	code, ok := r.readByteWithTimeout()
	if !ok {
		return Key{Kind: Unknown}
	}
	switch code {
	case 'A':
		return Key{Kind: Up}
	case 'B':
		return Key{Kind: Down}
	default:
		return Key{Kind: Unknown}
	}
}

func (r *Reader) readByteWithTimeout() (byte, bool) {
	select {
	case b := <-r.bytesCh:
		return b, true
	case <-time.After(escapeFollowupTimeout):
		return 0, false
	}
}

func isMappedChar(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
