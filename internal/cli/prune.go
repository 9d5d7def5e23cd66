package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/blockscan/internal/infra/storage"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete persisted snapshots of finished and cancelled jobs",
	Long:  `Prune removes done and cancelled jobs from snapshot storage. Run it while the service is stopped; a running service keeps its own copy in memory.`,
	Run:   runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	repo, closeRepo, err := openRepository(cfg)
	if err != nil {
		slog.Error("Failed to open snapshot storage", "error", err)
		os.Exit(1)
	}
	defer closeRepo()

	removed, err := pruneTerminal(context.Background(), repo)
	if err != nil {
		slog.Error("Failed to prune jobs", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Removed %d finished job(s)\n", removed)
}

// pruneTerminal deletes every done or cancelled snapshot.
func pruneTerminal(ctx context.Context, repo storage.JobSnapshotRepository) (int, error) {
	jobs, err := repo.LoadAll(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, j := range jobs {
		if !j.Status.IsTerminal() {
			continue
		}
		if err := repo.Delete(ctx, j.ID); err != nil {
			return removed, fmt.Errorf("delete %s: %w", j.ID, err)
		}
		removed++
	}
	return removed, nil
}
