package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"truth-or-dare-service/internal/domain"
)

// ContentLoader loads content rows from the challenge_content table.
type ContentLoader struct {
	pool *pgxpool.Pool
}

func NewContentLoader(pool *pgxpool.Pool) *ContentLoader {
	return &ContentLoader{pool: pool}
}

func (l *ContentLoader) LoadContent(ctx context.Context, category domain.Category, lang domain.Language) (domain.ContentSet, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT kind, body FROM challenge_content WHERE category=$1 AND language=$2 ORDER BY kind, position`,
		string(category), string(lang))
	if err != nil {
		return domain.ContentSet{}, fmt.Errorf("load content: %w", err)
	}
	defer rows.Close()

	var set domain.ContentSet
	found := 0
	for rows.Next() {
		var kind, body string
		if err := rows.Scan(&kind, &body); err != nil {
			return domain.ContentSet{}, fmt.Errorf("scan content: %w", err)
		}
		switch domain.ChallengeKind(kind) {
		case domain.KindTruth:
			set.Truths = append(set.Truths, body)
		case domain.KindDare:
			set.Dares = append(set.Dares, body)
		case domain.KindPledge:
			set.Pledges = append(set.Pledges, body)
		default:
			continue
		}
		found++
	}
	if err := rows.Err(); err != nil {
		return domain.ContentSet{}, fmt.Errorf("load content: %w", err)
	}
	if found == 0 {
		return domain.ContentSet{}, domain.ErrContentNotFound
	}
	return set, nil
}
