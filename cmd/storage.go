package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/0xmattthemii/aryes-news-feed/internal/config"
	"github.com/0xmattthemii/aryes-news-feed/internal/history"
	"github.com/0xmattthemii/aryes-news-feed/internal/ledger"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var flagPruneOlderThan string

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop expired ledger entries and old history",
	Long: `Remove ledger entries and recorded decisions older than the retention period.

Uses the retention value from config (default: 7d) unless overridden with --older-than.
Pruned links become eligible for posting again if they reappear in a feed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		retention := cfg.RetentionDuration()
		if flagPruneOlderThan != "" {
			d, err := config.ParseDuration(flagPruneOlderThan)
			if err != nil {
				return fmt.Errorf("invalid --older-than value: %w", err)
			}
			retention = d
		}

		store := ledger.NewStore(cfg.ResolvedLedgerPath(), nil)
		before := store.Load()
		after := ledger.Prune(before, time.Now(), retention)
		if err := store.Save(after); err != nil {
			return fmt.Errorf("saving ledger: %w", err)
		}

		db, err := history.Open(config.HistoryPath())
		if err != nil {
			return fmt.Errorf("opening history: %w", err)
		}
		defer db.Close()

		deleted, err := db.Prune(retention)
		if err != nil {
			return fmt.Errorf("pruning: %w", err)
		}

		dropped := len(before) - len(after)
		if dropped == 0 && deleted == 0 {
			fmt.Println("Nothing to prune.")
		} else {
			fmt.Printf("Pruned %d ledger entr%s and %d decision(s) older than %s.\n",
				dropped, plural(dropped, "y", "ies"), deleted, formatDuration(retention))
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show ledger and history statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		ledgerPath := cfg.ResolvedLedgerPath()
		l := ledger.NewStore(ledgerPath, nil).Load()

		dbPath := config.HistoryPath()
		db, err := history.Open(dbPath)
		if err != nil {
			return fmt.Errorf("opening history: %w", err)
		}
		defer db.Close()

		count, size, err := db.Stats(dbPath)
		if err != nil {
			return fmt.Errorf("reading stats: %w", err)
		}
		counts, err := db.Counts(time.Now().Add(-24 * time.Hour))
		if err != nil {
			return fmt.Errorf("reading stats: %w", err)
		}
		recent, err := db.Entries(history.QueryOpts{Limit: 10})
		if err != nil {
			return fmt.Errorf("reading stats: %w", err)
		}

		renderStats(os.Stdout, statsView{
			ledgerPath: ledgerPath,
			ledgerSize: len(l),
			dbPath:     dbPath,
			decisions:  count,
			dbBytes:    size,
			last24h:    counts,
			recent:     recent,
			channels:   cfg.Channels(),
		})
		return nil
	},
}

func init() {
	pruneCmd.Flags().StringVar(&flagPruneOlderThan, "older-than", "", "override retention period (e.g., 3d, 72h)")
}

type statsView struct {
	ledgerPath string
	ledgerSize int
	dbPath     string
	decisions  int
	dbBytes    int64
	last24h    map[history.Outcome]int
	recent     []history.Entry
	channels   []config.Channel
}

func renderStats(w io.Writer, v statsView) {
	row := func(label, value string) string {
		return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
	}

	var lines []string
	lines = append(lines,
		headerStyle.Render("Ledger"),
		row("File", v.ledgerPath),
		row("Links", fmt.Sprintf("%d", v.ledgerSize)),
		"",
		headerStyle.Render("History"),
		row("File", v.dbPath),
		row("Decisions", fmt.Sprintf("%d", v.decisions)),
		row("Size", formatBytes(v.dbBytes)),
		"",
		headerStyle.Render("Last 24h"),
	)
	for _, o := range []history.Outcome{history.Published, history.Irrelevant, history.PublishFailed, history.DryRun} {
		n := v.last24h[o]
		value := fmt.Sprintf("%d", n)
		if o == history.PublishFailed && n > 0 {
			value = warnStyle.Render(value)
		}
		lines = append(lines, row(string(o), value))
	}

	lines = append(lines, "", headerStyle.Render("Categories"))
	for _, ch := range v.channels {
		status := okStyle.Render("active")
		if !ch.Active() {
			status = dimStyle.Render("inactive (set " + config.WebhookEnv(ch.Name) + ")")
		}
		lines = append(lines, row(ch.Name, fmt.Sprintf("%d feeds, %s", len(ch.Feeds), status)))
	}

	if len(v.recent) > 0 {
		lines = append(lines, "", headerStyle.Render("Recent"))
		for _, e := range v.recent {
			outcome := string(e.Outcome)
			if e.Fallback {
				outcome += "*"
			}
			lines = append(lines, fmt.Sprintf("%s  %-18s %s",
				dimStyle.Render(e.HandledAt.Local().Format("01-02 15:04")), outcome, e.Title))
		}
	}

	fmt.Fprintln(w, strings.Join(lines, "\n"))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func formatDuration(d time.Duration) string {
	h := d.Hours()
	days := int(h / 24)
	if days > 0 && d%(24*time.Hour) == 0 {
		return fmt.Sprintf("%dd", days)
	}
	return d.String()
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
