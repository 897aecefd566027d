package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kilroy-tickets/kilroy/internal/ticket/model"
)

// FileCache is the on-disk Ticket Cache variant (spec.md §4.1). Each entry
// lives in its own JSON file; writes are serialized through a mutex exactly
// like the teacher's file-writing helpers (e.g. runstate.LoadSnapshot's
// single-writer discipline), and LRU ordering is derived from filesystem
// mtime rather than an in-process structure, since entries must survive
// process restarts within a single run_dir.
type FileCache struct {
	mu         sync.Mutex
	dir        string
	maxSize    int
	defaultTTL time.Duration
}

type fileEntry struct {
	ID        string         `json:"id"`
	Platform  string         `json:"platform"`
	CachedAt  time.Time      `json:"cached_at"`
	ExpiresAt time.Time      `json:"expires_at"`
	ETag      string         `json:"etag,omitempty"`
	Ticket    ticketJSON     `json:"ticket"`
}

// ticketJSON is the wire shape for a GenericTicket. Providers never see
// this; it exists solely so the file cache can round-trip a ticket.
type ticketJSON struct {
	ID               string         `json:"id"`
	Platform         string         `json:"platform"`
	URL              string         `json:"url"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	Status           string         `json:"status"`
	Type             string         `json:"type"`
	Assignee         *string        `json:"assignee,omitempty"`
	Labels           []string       `json:"labels"`
	CreatedAt        *time.Time     `json:"created_at,omitempty"`
	UpdatedAt        *time.Time     `json:"updated_at,omitempty"`
	PlatformMetadata map[string]any `json:"platform_metadata,omitempty"`
}

func toTicketJSON(t model.GenericTicket) ticketJSON {
	var assigneePtr *string
	if a, ok := t.Assignee(); ok {
		assigneePtr = &a
	}
	return ticketJSON{
		ID:               t.ID(),
		Platform:         string(t.Platform()),
		URL:              t.URL(),
		Title:            t.Title(),
		Description:      t.Description(),
		Status:           string(t.Status()),
		Type:             string(t.Type()),
		Assignee:         assigneePtr,
		Labels:           t.Labels(),
		CreatedAt:        t.CreatedAt(),
		UpdatedAt:        t.UpdatedAt(),
		PlatformMetadata: t.PlatformMetadata(),
	}
}

func fromTicketJSON(j ticketJSON) model.GenericTicket {
	platform, _ := model.ParsePlatform(j.Platform)
	return model.NewGenericTicket(model.TicketInput{
		ID:               j.ID,
		Platform:         platform,
		URL:              j.URL,
		Title:            j.Title,
		Description:      j.Description,
		Status:           model.TicketStatus(j.Status),
		Type:             model.TicketType(j.Type),
		Assignee:         j.Assignee,
		Labels:           j.Labels,
		CreatedAt:        j.CreatedAt,
		UpdatedAt:        j.UpdatedAt,
		PlatformMetadata: j.PlatformMetadata,
	})
}

// NewFileCache builds a file-backed cache rooted at dir, creating it if
// necessary.
func NewFileCache(dir string, maxSize int, defaultTTL time.Duration) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create dir: %w", err)
	}
	return &FileCache{dir: dir, maxSize: maxSize, defaultTTL: defaultTTL}, nil
}

func (c *FileCache) pathFor(key model.CacheKey) string {
	sum := sha256.Sum256([]byte(key.ID))
	short := hex.EncodeToString(sum[:])[:16]
	name := fmt.Sprintf("%s_%s.json", strings.ToUpper(string(key.Platform)), short)
	return filepath.Join(c.dir, name)
}

func (c *FileCache) Get(key model.CacheKey) (model.GenericTicket, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key)
}

func (c *FileCache) getLocked(key model.CacheKey) (model.GenericTicket, bool) {
	path := c.pathFor(key)
	b, err := os.ReadFile(path)
	if err != nil {
		return model.GenericTicket{}, false
	}
	var fe fileEntry
	if err := json.Unmarshal(b, &fe); err != nil {
		// Malformed file on read: delete and treat as miss.
		_ = os.Remove(path)
		return model.GenericTicket{}, false
	}
	if time.Now().After(fe.ExpiresAt) || time.Now().Equal(fe.ExpiresAt) {
		_ = os.Remove(path)
		return model.GenericTicket{}, false
	}
	// LRU touch: bump mtime so this entry looks most-recently-used.
	now := time.Now()
	_ = os.Chtimes(path, now, now)
	return fromTicketJSON(fe.Ticket), true
}

func (c *FileCache) Set(ticket model.GenericTicket, ttl time.Duration, etag string) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := time.Now()
	key := model.NewCacheKey(ticket.Platform(), ticket.ID())
	fe := fileEntry{
		ID:        ticket.ID(),
		Platform:  string(ticket.Platform()),
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
		ETag:      etag,
		Ticket:    toTicketJSON(ticket),
	}
	b, err := json.Marshal(fe)
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_ = os.WriteFile(c.pathFor(key), b, 0o644)
	c.evictLocked()
}

// evictLocked scans the directory, sorts by mtime ascending, and removes
// the excess beyond maxSize. A no-op when maxSize<=0.
func (c *FileCache) evictLocked() {
	if c.maxSize <= 0 {
		return
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return
	}
	type fi struct {
		path  string
		mtime time.Time
	}
	var files []fi
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, fi{path: filepath.Join(c.dir, e.Name()), mtime: info.ModTime()})
	}
	if len(files) <= c.maxSize {
		return
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mtime.Before(files[j].mtime) })
	excess := len(files) - c.maxSize
	for i := 0; i < excess; i++ {
		_ = os.Remove(files[i].path)
	}
}

func (c *FileCache) Invalidate(key model.CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = os.Remove(c.pathFor(key))
}

func (c *FileCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			_ = os.Remove(filepath.Join(c.dir, e.Name()))
		}
	}
}

func (c *FileCache) ClearPlatform(p model.Platform) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := strings.ToUpper(string(p)) + "_"
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			_ = os.Remove(filepath.Join(c.dir, e.Name()))
		}
	}
}

func (c *FileCache) GetETag(key model.CacheKey) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	path := c.pathFor(key)
	b, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	var fe fileEntry
	if err := json.Unmarshal(b, &fe); err != nil {
		return "", false
	}
	if time.Now().After(fe.ExpiresAt) {
		return "", false
	}
	return fe.ETag, fe.ETag != ""
}

func (c *FileCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			n++
		}
	}
	return n
}

func (c *FileCache) Stats() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[string]int{}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return out
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		parts := strings.SplitN(e.Name(), "_", 2)
		if len(parts) == 2 {
			out[strings.ToLower(parts[0])]++
		}
	}
	return out
}
