package offline

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"portal-rest-api/internal/metrics"

	"golang.org/x/sync/errgroup"
)

// State is the manager lifecycle state.
type State int

const (
	StateInstalling State = iota
	StateWaiting
	StateActive
)

func (s State) String() string {
	switch s {
	case StateInstalling:
		return "installing"
	case StateWaiting:
		return "waiting"
	case StateActive:
		return "active"
	}
	return "unknown"
}

// Strategy labels used in logs and metrics.
const (
	strategyNetworkFirst = "network-first"
	strategySWR          = "stale-while-revalidate"
	strategyPassthrough  = "passthrough"
)

// Config configures a Manager.
type Config struct {
	// Origin is the only origin whose requests are cached.
	Origin *url.URL

	// Version names the caches: static-<Version> and dynamic-<Version>.
	Version string

	// Precache lists origin paths fetched into the static cache on install.
	Precache []string

	StaticMax  int
	DynamicMax int

	// RefreshTimeout bounds one background revalidation.
	RefreshTimeout time.Duration

	// PrecacheConcurrency bounds parallel fetches during install.
	PrecacheConcurrency int
}

// Manager is an http.RoundTripper that serves same-origin GET requests from
// named caches once active.
type Manager struct {
	base    http.RoundTripper
	storage Storage
	config  Config

	mu    sync.RWMutex
	state State

	refreshes sync.WaitGroup
}

// NewManager creates a manager in the installing state. A nil base uses
// http.DefaultTransport.
func NewManager(base http.RoundTripper, storage Storage, config Config) (*Manager, error) {
	if config.Origin == nil || config.Origin.Host == "" {
		return nil, errors.New("offline: origin is required")
	}
	if storage == nil {
		return nil, errors.New("offline: storage is required")
	}
	if base == nil {
		base = http.DefaultTransport
	}
	if config.Version == "" {
		config.Version = "v1"
	}
	if config.StaticMax <= 0 {
		config.StaticMax = 60
	}
	if config.DynamicMax <= 0 {
		config.DynamicMax = 50
	}
	if config.RefreshTimeout <= 0 {
		config.RefreshTimeout = 15 * time.Second
	}
	if config.PrecacheConcurrency <= 0 {
		config.PrecacheConcurrency = 4
	}

	return &Manager{
		base:    base,
		storage: storage,
		config:  config,
		state:   StateInstalling,
	}, nil
}

// StaticCacheName returns the precache name for the current version.
func (m *Manager) StaticCacheName() string {
	return "static-" + m.config.Version
}

// DynamicCacheName returns the runtime cache name for the current version.
func (m *Manager) DynamicCacheName() string {
	return "dynamic-" + m.config.Version
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Start installs then activates immediately, without waiting for older
// instances to finish.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.Install(ctx); err != nil {
		return err
	}
	return m.Activate(ctx)
}

// Install fetches the precache manifest into the static cache. Either every
// asset is stored or none is.
func (m *Manager) Install(ctx context.Context) error {
	m.setState(StateInstalling)

	cache, err := m.storage.Open(m.StaticCacheName())
	if err != nil {
		return err
	}

	type fetched struct {
		key  string
		data []byte
	}
	results := make([]fetched, len(m.config.Precache))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.config.PrecacheConcurrency)
	for i, p := range m.config.Precache {
		g.Go(func() error {
			target := m.config.Origin.ResolveReference(&url.URL{Path: p})
			req, err := http.NewRequestWithContext(gctx, http.MethodGet, target.String(), nil)
			if err != nil {
				return err
			}
			resp, err := m.base.RoundTrip(req)
			if err != nil {
				return fmt.Errorf("precache %s: %w", p, err)
			}
			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				resp.Body.Close()
				return fmt.Errorf("precache %s: status %d", p, resp.StatusCode)
			}
			if !storable(resp) {
				discard(resp)
				log.Printf("[Offline] Skipping private precache asset %s", p)
				return nil
			}
			data, err := serialize(resp)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("precache %s: %w", p, err)
			}
			results[i] = fetched{key: cacheKey(req.URL), data: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Printf("[Offline] Install of %s failed: %v", m.StaticCacheName(), err)
		return err
	}

	stored := 0
	for _, r := range results {
		if r.key == "" {
			continue
		}
		if err := cache.Put(r.key, r.data); err != nil {
			return err
		}
		stored++
	}
	m.trim(cache, m.StaticCacheName(), m.config.StaticMax)

	m.setState(StateWaiting)
	log.Printf("[Offline] Installed %s with %d assets", m.StaticCacheName(), stored)
	return nil
}

// Activate deletes every cache that does not belong to the current version
// and starts serving traffic.
func (m *Manager) Activate(ctx context.Context) error {
	names, err := m.storage.Names()
	if err != nil {
		return err
	}

	keep := map[string]bool{m.StaticCacheName(): true, m.DynamicCacheName(): true}
	for _, name := range names {
		if keep[name] {
			continue
		}
		if err := m.storage.Delete(name); err != nil {
			return fmt.Errorf("failed to delete cache %s: %w", name, err)
		}
		log.Printf("[Offline] Deleted old cache %s", name)
	}

	m.setState(StateActive)
	log.Printf("[Offline] Active, serving with %s and %s", m.StaticCacheName(), m.DynamicCacheName())
	return nil
}

// Wait blocks until in-flight background refreshes finish.
func (m *Manager) Wait() {
	m.refreshes.Wait()
}

// RoundTrip implements http.RoundTripper.
//
// The caches are shared by every client, so requests carrying credentials
// always go to the network and are never cached.
func (m *Manager) RoundTrip(req *http.Request) (*http.Response, error) {
	if m.State() != StateActive || req.Method != http.MethodGet || !m.sameOrigin(req.URL) || hasCredentials(req) {
		metrics.OfflineResponses.WithLabelValues(strategyPassthrough, "network").Inc()
		return m.base.RoundTrip(req)
	}

	switch {
	case isNavigation(req):
		return m.networkFirst(req)
	case isAsset(req):
		return m.staleWhileRevalidate(req)
	default:
		metrics.OfflineResponses.WithLabelValues(strategyPassthrough, "network").Inc()
		return m.base.RoundTrip(req)
	}
}

func (m *Manager) networkFirst(req *http.Request) (*http.Response, error) {
	key := cacheKey(req.URL)

	resp, err := m.base.RoundTrip(req)
	if err == nil && resp.StatusCode < 500 {
		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			resp, err = m.store(m.DynamicCacheName(), m.config.DynamicMax, key, req, resp)
			if err != nil {
				return nil, err
			}
		}
		metrics.OfflineResponses.WithLabelValues(strategyNetworkFirst, "network").Inc()
		return resp, nil
	}

	if cached, _ := m.lookup(key, req); cached != nil {
		discard(resp)
		metrics.OfflineResponses.WithLabelValues(strategyNetworkFirst, "cache").Inc()
		return cached, nil
	}

	rootKey := cacheKey(m.config.Origin.ResolveReference(&url.URL{Path: "/"}))
	if cached, _ := m.lookup(rootKey, req); cached != nil {
		discard(resp)
		metrics.OfflineResponses.WithLabelValues(strategyNetworkFirst, "root").Inc()
		return cached, nil
	}

	metrics.OfflineResponses.WithLabelValues(strategyNetworkFirst, "error").Inc()
	return resp, err
}

func (m *Manager) staleWhileRevalidate(req *http.Request) (*http.Response, error) {
	key := cacheKey(req.URL)

	if cached, name := m.lookup(key, req); cached != nil {
		limit := m.config.DynamicMax
		if name == m.StaticCacheName() {
			limit = m.config.StaticMax
		}
		m.revalidate(req, key, name, limit)
		metrics.OfflineResponses.WithLabelValues(strategySWR, "cache").Inc()
		return cached, nil
	}

	resp, err := m.base.RoundTrip(req)
	if err != nil {
		metrics.OfflineResponses.WithLabelValues(strategySWR, "error").Inc()
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		if resp, err = m.store(m.DynamicCacheName(), m.config.DynamicMax, key, req, resp); err != nil {
			return nil, err
		}
	}
	metrics.OfflineResponses.WithLabelValues(strategySWR, "network").Inc()
	return resp, nil
}

// revalidate refreshes key in the background. The caller's context is not
// used because the response it is waiting for has already been served.
func (m *Manager) revalidate(req *http.Request, key, cacheName string, limit int) {
	m.refreshes.Add(1)
	go func() {
		defer m.refreshes.Done()

		ctx, cancel := context.WithTimeout(context.Background(), m.config.RefreshTimeout)
		defer cancel()

		refresh := req.Clone(ctx)
		resp, err := m.base.RoundTrip(refresh)
		if err != nil {
			log.Printf("[Offline] Revalidation of %s failed: %v", key, err)
			return
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			discard(resp)
			return
		}
		resp, err = m.store(cacheName, limit, key, refresh, resp)
		if err != nil {
			log.Printf("[Offline] Revalidation of %s failed: %v", key, err)
			return
		}
		discard(resp)
	}()
}

// store saves resp under key in the named cache, trims the cache and returns
// a response with an unread body equivalent to resp. Responses that are not
// storable are returned untouched and evict any earlier entry for key.
func (m *Manager) store(cacheName string, limit int, key string, req *http.Request, resp *http.Response) (*http.Response, error) {
	if !storable(resp) {
		if cache, err := m.storage.Open(cacheName); err == nil {
			_ = cache.Delete(key)
		}
		return resp, nil
	}

	data, err := serialize(resp)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}

	cache, err := m.storage.Open(cacheName)
	if err == nil {
		err = cache.Put(key, data)
	}
	if err != nil {
		log.Printf("[Offline] Failed to store %s in %s: %v", key, cacheName, err)
	} else {
		m.trim(cache, cacheName, limit)
	}

	return deserialize(data, req)
}

// trim deletes the oldest entry until the cache is within limit, re-reading
// the key list on each step so concurrent writers are accounted for.
func (m *Manager) trim(cache Cache, name string, limit int) {
	keys, err := cache.Keys()
	if err != nil {
		log.Printf("[Offline] Failed to list %s: %v", name, err)
		return
	}
	if len(keys) <= limit {
		return
	}
	if err := cache.Delete(keys[0]); err != nil {
		log.Printf("[Offline] Failed to evict %s from %s: %v", keys[0], name, err)
		return
	}
	metrics.OfflineEvictions.WithLabelValues(name).Inc()
	m.trim(cache, name, limit)
}

// lookup searches the static cache then the dynamic cache.
func (m *Manager) lookup(key string, req *http.Request) (*http.Response, string) {
	for _, name := range []string{m.StaticCacheName(), m.DynamicCacheName()} {
		cache, err := m.storage.Open(name)
		if err != nil {
			continue
		}
		data, err := cache.Match(key)
		if err != nil {
			continue
		}
		resp, err := deserialize(data, req)
		if err != nil {
			log.Printf("[Offline] Dropping unreadable entry %s from %s: %v", key, name, err)
			_ = cache.Delete(key)
			continue
		}
		resp.Header.Set("X-Offline-Cache", name)
		return resp, name
	}
	return nil, ""
}

func (m *Manager) sameOrigin(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, m.config.Origin.Scheme) && strings.EqualFold(u.Host, m.config.Origin.Host)
}

func cacheKey(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	return c.String()
}

func hasCredentials(req *http.Request) bool {
	return req.Header.Get("Authorization") != "" || req.Header.Get("Cookie") != ""
}

// storable reports whether resp may be kept in a cache shared by every
// client.
func storable(resp *http.Response) bool {
	if len(resp.Header.Values("Set-Cookie")) > 0 {
		return false
	}
	for _, value := range resp.Header.Values("Cache-Control") {
		for _, directive := range strings.Split(value, ",") {
			name, _, _ := strings.Cut(strings.TrimSpace(directive), "=")
			switch strings.ToLower(name) {
			case "private", "no-store":
				return false
			}
		}
	}
	return true
}

func isNavigation(req *http.Request) bool {
	if req.Header.Get("Sec-Fetch-Mode") == "navigate" || req.Header.Get("Sec-Fetch-Dest") == "document" {
		return true
	}
	return strings.Contains(req.Header.Get("Accept"), "text/html")
}

var assetExtensions = map[string]bool{
	".js": true, ".mjs": true, ".css": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".svg": true, ".ico": true,
}

func isAsset(req *http.Request) bool {
	switch req.Header.Get("Sec-Fetch-Dest") {
	case "script", "style", "image":
		return true
	}
	return assetExtensions[strings.ToLower(path.Ext(req.URL.Path))]
}

// serialize reads resp fully and returns its wire form with a fixed length.
func serialize(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	resp.TransferEncoding = nil
	resp.Header.Del("Transfer-Encoding")
	return httputil.DumpResponse(resp, true)
}

func deserialize(data []byte, req *http.Request) (*http.Response, error) {
	return http.ReadResponse(bufio.NewReader(bytes.NewReader(data)), req)
}

func discard(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

var _ http.RoundTripper = (*Manager)(nil)
