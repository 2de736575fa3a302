package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"truth-or-dare-service/internal/domain"
)

// ContentLoader fetches content from a backing store (embedded files, Postgres).
type ContentLoader interface {
	LoadContent(ctx context.Context, category domain.Category, lang domain.Language) (domain.ContentSet, error)
}

// ContentRepository caches content sets with TTL to avoid repeated loads.
type ContentRepository struct {
	loader ContentLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[domain.ContentKey]cachedContent
}

type cachedContent struct {
	content   domain.ContentSet
	expiresAt time.Time
}

func NewContentRepository(loader ContentLoader, ttl time.Duration) *ContentRepository {
	return &ContentRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[domain.ContentKey]cachedContent),
	}
}

func (r *ContentRepository) GetContent(ctx context.Context, category domain.Category, lang domain.Language) (domain.ContentSet, error) {
	key := domain.ContentKey{Category: category, Language: lang}
	if content, ok := r.cached(key); ok {
		return content, nil
	}

	result, err, _ := r.sf.Do(key.String(), func() (interface{}, error) {
		if content, ok := r.cached(key); ok {
			return content, nil
		}

		content, err := r.loader.LoadContent(ctx, category, lang)
		if err != nil {
			return domain.ContentSet{}, err
		}

		r.mu.Lock()
		r.cache[key] = cachedContent{
			content:   content,
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return content, nil
	})
	if err != nil {
		return domain.ContentSet{}, err
	}
	return result.(domain.ContentSet), nil
}

func (r *ContentRepository) cached(key domain.ContentKey) (domain.ContentSet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[key]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return domain.ContentSet{}, false
	}
	return entry.content, true
}

// StaticContentLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticContentLoader struct {
	library map[domain.ContentKey]domain.ContentSet
}

func NewStaticContentLoader(library map[domain.ContentKey]domain.ContentSet) *StaticContentLoader {
	return &StaticContentLoader{library: library}
}

func (l *StaticContentLoader) LoadContent(_ context.Context, category domain.Category, lang domain.Language) (domain.ContentSet, error) {
	if content, ok := l.library[domain.ContentKey{Category: category, Language: lang}]; ok {
		return content, nil
	}
	return domain.ContentSet{}, domain.ErrContentNotFound
}

func (r *ContentRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
