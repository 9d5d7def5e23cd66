package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/blockscan/internal/core/config"
	"github.com/vietddude/blockscan/internal/core/domain"
	"github.com/vietddude/blockscan/internal/core/progress"
	redisclient "github.com/vietddude/blockscan/internal/infra/redis"
	"github.com/vietddude/blockscan/internal/infra/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show persisted scan jobs with progress",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// openRepository connects to the configured snapshot store. Only Redis
// survives the service process, so it is required here.
func openRepository(cfg *config.AppConfig) (storage.JobSnapshotRepository, func(), error) {
	if !cfg.Redis.Enabled() {
		return nil, nil, errors.New("no redis url configured; snapshots are only kept in memory")
	}
	client, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	return redisclient.NewJobSnapshotRepo(client), func() { _ = client.Close() }, nil
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	repo, closeRepo, err := openRepository(cfg)
	if err != nil {
		slog.Error("Failed to open snapshot storage", "error", err)
		os.Exit(1)
	}
	defer closeRepo()

	jobs, err := repo.LoadAll(context.Background())
	if err != nil {
		slog.Error("Failed to load jobs", "error", err)
		os.Exit(1)
	}

	writeStatusTable(os.Stdout, jobs, time.Now())
}

func writeStatusTable(out io.Writer, jobs []domain.Job, now time.Time) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ID\tNETWORK\tRANGE\tSTATUS\tPROGRESS\tETA\tH/M/L")

	for _, j := range jobs {
		s := progress.Describe(j, now)

		rng := fmt.Sprintf("%d → ∞", j.StartBlock)
		if j.EndBlock != nil {
			rng = fmt.Sprintf("%d → %d", j.StartBlock, *j.EndBlock)
		}

		pct := fmt.Sprintf("%d blocks", j.Processed)
		if s.Percent != nil {
			pct = fmt.Sprintf("%d%%", *s.Percent)
		}

		eta := "-"
		if s.ETA != nil {
			eta = *s.ETA
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d/%d/%d\n",
			j.ID, j.Network, rng, j.Status, pct, eta,
			j.Findings.High, j.Findings.Medium, j.Findings.Low)
	}
	_ = w.Flush()
}
