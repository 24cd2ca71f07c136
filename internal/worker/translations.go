package worker

import (
	"context"
	"log"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Translator is the external translation collaborator. Failures are
// non-fatal: the cache substitutes the source text.
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
}

type cacheEntry struct {
	once     sync.Once
	text     string
	degraded bool
}

// TranslationCache memoizes per-language translations for the lifetime of
// one batch. Each distinct (text, language) pair hits the Translator at most
// once regardless of how many variations share it, including under
// concurrent lookups. The cache is discarded with the batch, so translations
// of one description never bleed into another.
type TranslationCache struct {
	translator Translator

	mu       sync.Mutex
	entries  map[string]*cacheEntry
	degraded map[string]bool // languages that fell back to source text
}

func NewTranslationCache(translator Translator) *TranslationCache {
	return &TranslationCache{
		translator: translator,
		entries:    make(map[string]*cacheEntry),
		degraded:   make(map[string]bool),
	}
}

// Resolve returns the translation of text into language, memoized. English
// is an identity translation. On Translator failure the source text is
// stored as a best-effort fallback and the language is flagged degraded; the
// failure is not retried within this batch.
func (c *TranslationCache) Resolve(ctx context.Context, text, language string) string {
	if text == "" {
		return ""
	}
	if isEnglish(language) {
		return text
	}

	entry := c.entry(text, language)
	entry.once.Do(func() {
		translated, err := c.translator.Translate(ctx, text, language)
		if err != nil {
			log.Printf("[Translate] %s failed, falling back to source text: %v", language, err)
			entry.text = text
			entry.degraded = true

			c.mu.Lock()
			c.degraded[language] = true
			c.mu.Unlock()
			return
		}
		entry.text = translated
	})

	return entry.text
}

// Prefetch resolves every (text, language) pair up front so pool workers
// only ever hit warm entries. Translator failures surface as degraded
// languages, never as errors.
func (c *TranslationCache) Prefetch(ctx context.Context, texts []string, languages []string) {
	g, gctx := errgroup.WithContext(ctx)
	for _, language := range languages {
		for _, text := range texts {
			if text == "" || isEnglish(language) {
				continue
			}
			language, text := language, text
			g.Go(func() error {
				c.Resolve(gctx, text, language)
				return nil
			})
		}
	}
	_ = g.Wait()
}

// Degraded returns a copy of the per-language fallback flags. Empty map
// means every language translated cleanly.
func (c *TranslationCache) Degraded() map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.degraded) == 0 {
		return nil
	}
	out := make(map[string]bool, len(c.degraded))
	for k, v := range c.degraded {
		out[k] = v
	}
	return out
}

func (c *TranslationCache) entry(text, language string) *cacheEntry {
	key := language + "\x00" + text

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		e = &cacheEntry{}
		c.entries[key] = e
	}
	return e
}

func isEnglish(language string) bool {
	return strings.EqualFold(language, "english") || strings.EqualFold(language, "en")
}
