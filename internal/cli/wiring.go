package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"truth-or-dare-service/internal/app"
	"truth-or-dare-service/internal/config"
	"truth-or-dare-service/internal/content"
	"truth-or-dare-service/internal/domain"
	"truth-or-dare-service/internal/infra/memory"
	pgcontent "truth-or-dare-service/internal/infra/postgres"
	redisinfra "truth-or-dare-service/internal/infra/redis"
	"truth-or-dare-service/internal/infra/sqlite"
)

// backends holds the connections opened for a GameService.
type backends struct {
	redis  *redis.Client
	pool   *pgxpool.Pool
	sqlite *sqlite.SnapshotStore
}

func (b *backends) Close() {
	if b.sqlite != nil {
		_ = b.sqlite.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
}

// buildService wires content, snapshots and sessions according to cfg.
func buildService(ctx context.Context, cfg config.Config, log *zap.Logger) (*app.GameService, *backends, error) {
	rules, err := rulesFromConfig(cfg.Game)
	if err != nil {
		return nil, nil, err
	}

	b := &backends{}
	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := b.redis.Ping(ctx).Err(); err != nil {
			b.Close()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
	}

	loader, err := contentLoader(ctx, cfg, b)
	if err != nil {
		b.Close()
		return nil, nil, err
	}

	contentTTL := config.TTLDuration(cfg.Content.TTL, 10*time.Minute)
	var contentRepo app.ContentRepository
	if b.redis != nil {
		contentRepo = redisinfra.NewContentRepository(b.redis, loader, contentTTL)
	} else {
		contentRepo = memory.NewContentRepository(loader, contentTTL)
	}

	var snapshots app.SnapshotStore
	switch cfg.Snapshots.Backend {
	case config.SnapshotBackendRedis:
		snapshots = redisinfra.NewSnapshotStore(b.redis, config.TTLDuration(cfg.Redis.TTL, 24*time.Hour))
	case config.SnapshotBackendSQLite:
		b.sqlite, err = sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			b.Close()
			return nil, nil, err
		}
		snapshots = b.sqlite
	default:
		snapshots = memory.NewSnapshotStore()
	}

	log.Info("game service configured",
		zap.String("content_source", cfg.Content.Source),
		zap.Bool("redis_cache", b.redis != nil),
		zap.String("snapshots", cfg.Snapshots.Backend),
		zap.Int("total_rounds", rules.TotalRounds),
		zap.String("language", string(rules.Language)),
	)

	service := app.NewGameService(memory.NewSessionStore(), contentRepo, snapshots, rules, app.WithLogger(log))
	return service, b, nil
}

func contentLoader(ctx context.Context, cfg config.Config, b *backends) (memory.ContentLoader, error) {
	if cfg.Content.Source == config.ContentSourcePostgres {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.pool = pool
		return pgcontent.NewContentLoader(pool), nil
	}
	return loadLibrary(cfg.Content.Dir)
}

// loadLibrary reads YAML content from dir, or the embedded library when dir is empty.
func loadLibrary(dir string) (content.Library, error) {
	if dir == "" {
		return content.Embedded()
	}
	library, err := content.Load(os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("load content from %s: %w", dir, err)
	}
	return library, nil
}

func rulesFromConfig(cfg config.GameConfig) (app.Rules, error) {
	lang, err := domain.ParseLanguage(cfg.DefaultLanguage)
	if err != nil {
		return app.Rules{}, fmt.Errorf("game.default_language %q: %w", cfg.DefaultLanguage, err)
	}
	return app.Rules{
		TotalRounds: cfg.TotalRounds,
		MaxPlayers:  cfg.MaxPlayers,
		Language:    lang,
	}, nil
}
