// Package packs loads lesson packs published over HTTP and keeps a copy on
// disk so lessons still work offline.
package packs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"kidlingo/internal/domain/lesson"
	"kidlingo/internal/domain/narration"
)

// Cache fetches a lesson pack and caches it as JSON in cacheDir.
type Cache struct {
	url        string
	cacheFile  string
	maxAge     time.Duration
	httpClient *http.Client
	log        logrus.FieldLogger
}

// cachedPack is the on-disk format.
type cachedPack struct {
	Module       lesson.Module `json:"module"`
	LastUpdated  time.Time     `json:"last_updated"`
	TotalLessons int           `json:"total_lessons"`
}

func NewCache(url, cacheDir string, maxAge time.Duration, log logrus.FieldLogger) *Cache {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		log.WithError(err).Warn("Failed to create cache directory")
	}
	return &Cache{
		url:        url,
		cacheFile:  filepath.Join(cacheDir, "lesson_pack.json"),
		maxAge:     maxAge,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.WithField("pack", url),
	}
}

// Load returns the pack from cache when fresh, otherwise from the network.
// When the network fails a stale cache is still used.
func (c *Cache) Load(ctx context.Context) (*lesson.Module, error) {
	if c.isFresh() {
		c.log.Debug("Loading lesson pack from cache")
		return c.loadFromCache()
	}

	c.log.Info("Fetching lesson pack")
	module, err := c.fetch(ctx)
	if err != nil {
		c.log.WithError(err).Warn("Lesson pack fetch failed, trying stale cache")
		if cached, cacheErr := c.loadFromCache(); cacheErr == nil {
			return cached, nil
		}
		return nil, fmt.Errorf("failed to fetch lesson pack and no cache available: %w", err)
	}

	if err := c.save(module); err != nil {
		c.log.WithError(err).Warn("Failed to save lesson pack to cache")
	}
	return module, nil
}

// Clear removes the cached pack.
func (c *Cache) Clear() error {
	if err := os.Remove(c.cacheFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

func (c *Cache) isFresh() bool {
	info, err := os.Stat(c.cacheFile)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) < c.maxAge
}

func (c *Cache) loadFromCache() (*lesson.Module, error) {
	f, err := os.Open(c.cacheFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache file: %w", err)
	}
	defer f.Close()

	var cached cachedPack
	if err := json.NewDecoder(f).Decode(&cached); err != nil {
		return nil, fmt.Errorf("failed to decode cache file: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"lessons":      len(cached.Module.Lessons),
		"last_updated": cached.LastUpdated.Format(time.RFC3339),
	}).Debug("Loaded lesson pack from cache")
	return &cached.Module, nil
}

func (c *Cache) save(module *lesson.Module) error {
	f, err := os.Create(c.cacheFile)
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cachedPack{Module: *module, LastUpdated: time.Now(), TotalLessons: len(module.Lessons)}); err != nil {
		return fmt.Errorf("failed to encode cache data: %w", err)
	}
	return nil
}

func (c *Cache) fetch(ctx context.Context) (*lesson.Module, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pack server returned status %d for URL %s", resp.StatusCode, c.url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var module lesson.Module
	if err := json.Unmarshal(body, &module); err != nil {
		return nil, fmt.Errorf("failed to parse lesson pack: %w", err)
	}
	module.URL = c.url
	module.Lessons = c.usable(module.Lessons)

	c.log.WithField("count", len(module.Lessons)).Info("Fetched lesson pack")
	return &module, nil
}

// usable drops lessons that could never be narrated: no ID, an unknown
// language, or no non-blank phrase.
func (c *Cache) usable(lessons []lesson.Lesson) []lesson.Lesson {
	var out []lesson.Lesson
	for _, l := range lessons {
		lang, err := narration.CanonicalLanguage(l.Language)
		if err != nil || l.ID == "" {
			c.log.WithField("lesson", l.ID).Warn("Skipping lesson with missing ID or language")
			continue
		}
		l.Language = lang

		var phrases []lesson.Phrase
		for _, p := range l.Phrases {
			if strings.TrimSpace(p.Text) != "" {
				phrases = append(phrases, p)
			}
		}
		if len(phrases) == 0 {
			continue
		}
		l.Phrases = phrases
		out = append(out, l)
	}
	return out
}

// Catalog serves the built-in lessons plus, when configured, a remote pack.
// A pack that cannot be loaded is logged and left out.
type Catalog struct {
	pack *Cache
	log  logrus.FieldLogger
}

// NewCatalog returns a catalog; pack may be nil.
func NewCatalog(pack *Cache, log logrus.FieldLogger) *Catalog {
	return &Catalog{pack: pack, log: log}
}

func (c *Catalog) Modules(ctx context.Context) ([]lesson.Module, error) {
	modules := []lesson.Module{lesson.Builtin()}
	if c.pack == nil {
		return modules, nil
	}
	m, err := c.pack.Load(ctx)
	if err != nil {
		c.log.WithError(err).Warn("Lesson pack unavailable, using built-in lessons only")
		return modules, nil
	}
	return append(modules, *m), nil
}
