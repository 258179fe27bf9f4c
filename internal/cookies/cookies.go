// Package cookies manages named cookie profiles: a YAML registry maps
// profile names to cookie files on disk, and the provider serves cached
// cookie values to the HTTP executor and the session resources.
package cookies

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/probegate/probegate/internal/config"
)

var nameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// PermissionError reports a cookie file whose mode is wider than the
// owner-only modes allowed (0600 or 0400).
type PermissionError struct {
	Path string
	Mode fs.FileMode
}

func (e PermissionError) Error() string {
	return fmt.Sprintf("cookie file %s has insecure permissions %04o (want 0600 or 0400)", e.Path, e.Mode.Perm())
}

// OwnershipError reports a cookie file owned by a different uid than
// the running process.
type OwnershipError struct {
	Path string
	UID  int
}

func (e OwnershipError) Error() string {
	return fmt.Sprintf("cookie file %s is owned by uid %d, not the current user", e.Path, e.UID)
}

// PathEscapeError reports a cookie file path that resolves outside the
// configured cookie directory.
type PathEscapeError struct {
	Path string
}

func (e PathEscapeError) Error() string {
	return fmt.Sprintf("cookie file %s escapes the cookie directory", e.Path)
}

// NotFoundError reports an unknown profile or a missing cookie file.
type NotFoundError struct {
	Profile string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("cookie profile %q not found", e.Profile)
}

// ParseError reports an unreadable registry or cookie file.
type ParseError struct {
	Path string
	Err  error
}

func (e ParseError) Error() string { return fmt.Sprintf("parse %s: %v", e.Path, e.Err) }
func (e ParseError) Unwrap() error { return e.Err }

// Profile is the registry entry for one named cookie session.
type Profile struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	CookieFile  string            `json:"-"`
	CacheTTL    time.Duration     `json:"-"`
	TTLSeconds  int               `json:"cache_ttl_seconds"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type registryFile struct {
	Version  int                     `yaml:"version"`
	Sessions map[string]sessionEntry `yaml:"sessions"`
}

type sessionEntry struct {
	Description string            `yaml:"description"`
	CookieFile  string            `yaml:"cookie_file"`
	CacheTTL    int               `yaml:"cache_ttl"` // seconds
	Metadata    map[string]string `yaml:"metadata"`
}

type cacheEntry struct {
	values  map[string]string
	modTime time.Time
	expires time.Time
}

// Session is the full view of one cookie profile: the cookie values,
// the cookie file's last modification time, and registry metadata.
type Session struct {
	Name        string            `json:"session_name"`
	Description string            `json:"description,omitempty"`
	Cookies     map[string]string `json:"cookies"`
	LastUpdated time.Time         `json:"last_updated"`
	FromCache   bool              `json:"from_cache"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Provider loads cookie profiles with a per-profile TTL cache.
// Concurrent misses for the same profile coalesce into one disk read.
type Provider struct {
	configPath string
	dataDir    string
	defaultTTL time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry
	group singleflight.Group
	now   func() time.Time
}

// NewProvider builds a provider from configuration, falling back to the
// XDG default locations.
func NewProvider(cfg config.CookiesConfig) *Provider {
	path := cfg.ConfigPath
	if path == "" {
		path = config.CookieSessionsPath()
	}
	dir := cfg.DataDir
	if dir == "" {
		dir = config.CookieDataDir()
	}
	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Provider{
		configPath: path,
		dataDir:    dir,
		defaultTTL: ttl,
		cache:      make(map[string]cacheEntry),
		now:        time.Now,
	}
}

// Profiles lists all registered profiles sorted by name. A missing
// registry file is an empty registry, not an error.
func (p *Provider) Profiles() ([]Profile, error) {
	reg, err := p.loadRegistry()
	if err != nil {
		return nil, err
	}
	out := make([]Profile, 0, len(reg))
	for _, prof := range reg {
		out = append(out, prof)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Profile returns a single profile's registry entry.
func (p *Provider) Profile(name string) (*Profile, error) {
	reg, err := p.loadRegistry()
	if err != nil {
		return nil, err
	}
	prof, ok := reg[name]
	if !ok {
		return nil, NotFoundError{Profile: name}
	}
	return &prof, nil
}

// Get returns the cookie name/value pairs of a profile, from cache when
// fresh. The returned map is a copy; callers may mutate it.
func (p *Provider) Get(ctx context.Context, name string) (map[string]string, error) {
	entry, _, err := p.load(ctx, name)
	if err != nil {
		return nil, err
	}
	return cloneValues(entry.values), nil
}

// Session returns the full profile view for the resource surface.
func (p *Provider) Session(ctx context.Context, name string) (*Session, error) {
	prof, err := p.Profile(name)
	if err != nil {
		return nil, err
	}
	entry, cached, err := p.load(ctx, name)
	if err != nil {
		return nil, err
	}
	return &Session{
		Name:        prof.Name,
		Description: prof.Description,
		Cookies:     cloneValues(entry.values),
		LastUpdated: entry.modTime,
		FromCache:   cached,
		Metadata:    prof.Metadata,
	}, nil
}

func (p *Provider) load(ctx context.Context, name string) (cacheEntry, bool, error) {
	if !nameRe.MatchString(name) {
		return cacheEntry{}, false, NotFoundError{Profile: name}
	}

	p.mu.Lock()
	if entry, ok := p.cache[name]; ok && p.now().Before(entry.expires) {
		p.mu.Unlock()
		return entry, true, nil
	}
	p.mu.Unlock()

	v, err, _ := p.group.Do(name, func() (any, error) {
		prof, err := p.Profile(name)
		if err != nil {
			return nil, err
		}
		values, modTime, err := p.readCookieFile(prof)
		if err != nil {
			return nil, err
		}
		entry := cacheEntry{values: values, modTime: modTime, expires: p.now().Add(prof.CacheTTL)}
		p.mu.Lock()
		p.cache[name] = entry
		p.mu.Unlock()
		return entry, nil
	})
	if err != nil {
		return cacheEntry{}, false, err
	}
	return v.(cacheEntry), false, nil
}

// Invalidate drops a profile from the cache.
func (p *Provider) Invalidate(name string) {
	p.mu.Lock()
	delete(p.cache, name)
	p.mu.Unlock()
}

// InvalidateAll empties the cache.
func (p *Provider) InvalidateAll() {
	p.mu.Lock()
	p.cache = make(map[string]cacheEntry)
	p.mu.Unlock()
}

func (p *Provider) loadRegistry() (map[string]Profile, error) {
	raw, err := os.ReadFile(p.configPath)
	if os.IsNotExist(err) {
		return map[string]Profile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cookie registry: %w", err)
	}
	var reg registryFile
	if err := yaml.Unmarshal(raw, &reg); err != nil {
		return nil, ParseError{Path: p.configPath, Err: err}
	}
	out := make(map[string]Profile, len(reg.Sessions))
	for name, entry := range reg.Sessions {
		if !nameRe.MatchString(name) {
			return nil, ParseError{Path: p.configPath, Err: fmt.Errorf("invalid profile name %q", name)}
		}
		ttl := p.defaultTTL
		if entry.CacheTTL > 0 {
			ttl = time.Duration(entry.CacheTTL) * time.Second
		}
		out[name] = Profile{
			Name:        name,
			Description: entry.Description,
			CookieFile:  entry.CookieFile,
			CacheTTL:    ttl,
			TTLSeconds:  int(ttl / time.Second),
			Metadata:    entry.Metadata,
		}
	}
	return out, nil
}

// readCookieFile resolves, boundary-checks, permission-checks, and
// parses a profile's cookie file. The permission and ownership checks
// run before any content is read. The returned time is the file's
// modification time.
func (p *Provider) readCookieFile(prof *Profile) (map[string]string, time.Time, error) {
	path := prof.CookieFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.dataDir, path)
	}

	canonDir, err := canonicalize(p.dataDir)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("resolve cookie dir: %w", err)
	}
	canonPath, err := canonicalize(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, time.Time{}, NotFoundError{Profile: prof.Name}
		}
		return nil, time.Time{}, fmt.Errorf("resolve cookie file: %w", err)
	}
	if canonPath != canonDir && !strings.HasPrefix(canonPath, canonDir+string(filepath.Separator)) {
		return nil, time.Time{}, PathEscapeError{Path: prof.CookieFile}
	}

	info, err := os.Stat(canonPath)
	if os.IsNotExist(err) {
		return nil, time.Time{}, NotFoundError{Profile: prof.Name}
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("stat cookie file: %w", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 && perm != 0o400 {
		return nil, time.Time{}, PermissionError{Path: canonPath, Mode: info.Mode()}
	}
	if st, ok := info.Sys().(*syscall.Stat_t); ok && int(st.Uid) != os.Getuid() {
		return nil, time.Time{}, OwnershipError{Path: canonPath, UID: int(st.Uid)}
	}

	raw, err := os.ReadFile(canonPath)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read cookie file: %w", err)
	}
	var values map[string]string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, time.Time{}, ParseError{Path: canonPath, Err: err}
	}
	return values, info.ModTime().UTC(), nil
}

func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return resolved, nil
}

func cloneValues(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
