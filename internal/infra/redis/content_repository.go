package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"truth-or-dare-service/internal/domain"
)

// ContentLoader fetches content from a backing store (embedded files, Postgres).
type ContentLoader interface {
	LoadContent(ctx context.Context, category domain.Category, lang domain.Language) (domain.ContentSet, error)
}

// ContentRepository caches content sets in Redis (hash per category and
// language) and falls back to a loader on cache miss.
// Layout: HSET tod:content:{category}:{language} truths|dares|pledges <json array>
type ContentRepository struct {
	client *redis.Client
	loader ContentLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewContentRepository(client *redis.Client, loader ContentLoader, ttl time.Duration) *ContentRepository {
	return &ContentRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *ContentRepository) GetContent(ctx context.Context, category domain.Category, lang domain.Language) (domain.ContentSet, error) {
	key := r.key(category, lang)
	if content, ok := r.cached(ctx, key); ok {
		return content, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if content, ok := r.cached(ctx, key); ok {
			return content, nil
		}

		content, err := r.loader.LoadContent(ctx, category, lang)
		if err != nil {
			return domain.ContentSet{}, err
		}

		fields := make(map[string]interface{}, 3)
		for field, items := range map[string][]string{
			"truths":  content.Truths,
			"dares":   content.Dares,
			"pledges": content.Pledges,
		} {
			raw, err := json.Marshal(items)
			if err != nil {
				return domain.ContentSet{}, err
			}
			fields[field] = raw
		}

		pipe := r.client.Pipeline()
		pipe.HSet(ctx, key, fields)
		if ttl := r.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		// best-effort: a failed write only costs a reload next time
		_, _ = pipe.Exec(ctx)

		return content, nil
	})
	if err != nil {
		return domain.ContentSet{}, err
	}
	return result.(domain.ContentSet), nil
}

func (r *ContentRepository) cached(ctx context.Context, key string) (domain.ContentSet, bool) {
	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil || len(fields) == 0 {
		return domain.ContentSet{}, false
	}
	var content domain.ContentSet
	for name, target := range map[string]*[]string{
		"truths":  &content.Truths,
		"dares":   &content.Dares,
		"pledges": &content.Pledges,
	} {
		raw, ok := fields[name]
		if !ok {
			return domain.ContentSet{}, false
		}
		if err := json.Unmarshal([]byte(raw), target); err != nil {
			return domain.ContentSet{}, false
		}
	}
	return content, true
}

func (r *ContentRepository) key(category domain.Category, lang domain.Language) string {
	return "tod:content:" + string(category) + ":" + string(lang)
}

func (r *ContentRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
