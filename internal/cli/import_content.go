package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"truth-or-dare-service/internal/config"
	"truth-or-dare-service/internal/infra/postgres"
	"truth-or-dare-service/internal/observability"
)

// NewImportContentCmd loads YAML content into Postgres. Without --dir the
// content shipped with the binary is imported.
func NewImportContentCmd(configPath *string) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "import-content",
		Short: "Import truths, dares and pledges into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log, err := observability.NewLogger(cfg.Logging)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return importContent(cmd.Context(), cfg, dir, log)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory of <category>.yaml files (default: embedded content)")
	return cmd
}

func importContent(ctx context.Context, cfg config.Config, dir string, log *zap.Logger) error {
	library, err := loadLibrary(dir)
	if err != nil {
		return err
	}
	if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
		return err
	}

	db, err := openBunDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := postgres.ImportContent(ctx, db, library)
	if err != nil {
		return fmt.Errorf("import content: %w", err)
	}
	log.Info("content imported", zap.Int("items", n), zap.Int("sets", len(library)))
	return nil
}
