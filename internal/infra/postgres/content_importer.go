package postgres

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"truth-or-dare-service/internal/content"
	"truth-or-dare-service/internal/domain"
)

type contentRow struct {
	bun.BaseModel `bun:"table:challenge_content"`

	ID       int64  `bun:"id,pk,autoincrement"`
	Category string `bun:"category,notnull"`
	Language string `bun:"language,notnull"`
	Kind     string `bun:"kind,notnull"`
	Position int    `bun:"position,notnull"`
	Body     string `bun:"body,notnull"`
}

// ImportContent replaces the stored content of every (category, language)
// pair present in library, in key order. Pairs absent from library are left
// untouched.
func ImportContent(ctx context.Context, db *bun.DB, library content.Library) (int, error) {
	imported := 0
	err := db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, key := range library.Keys() {
			_, err := tx.NewDelete().
				Model((*contentRow)(nil)).
				Where("category = ?", string(key.Category)).
				Where("language = ?", string(key.Language)).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("clear %s: %w", key, err)
			}

			rows := contentRows(key, library[key])
			if len(rows) == 0 {
				continue
			}
			if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
				return fmt.Errorf("insert %s: %w", key, err)
			}
			imported += len(rows)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return imported, nil
}

func contentRows(key domain.ContentKey, set domain.ContentSet) []contentRow {
	var rows []contentRow
	for _, kind := range []domain.ChallengeKind{domain.KindTruth, domain.KindDare, domain.KindPledge} {
		for i, body := range set.For(kind) {
			rows = append(rows, contentRow{
				Category: string(key.Category),
				Language: string(key.Language),
				Kind:     string(kind),
				Position: i,
				Body:     body,
			})
		}
	}
	return rows
}
