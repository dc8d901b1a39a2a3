// Package pipeline walks every active category's feeds, skips links already in
// the ledger or older than the recency window, classifies what is left and
// publishes relevant articles. Categories, feeds and articles are handled one
// at a time; the ledger is saved once, at the end of the run.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/0xmattthemii/aryes-news-feed/internal/classify"
	"github.com/0xmattthemii/aryes-news-feed/internal/config"
	"github.com/0xmattthemii/aryes-news-feed/internal/feed"
	"github.com/0xmattthemii/aryes-news-feed/internal/history"
	"github.com/0xmattthemii/aryes-news-feed/internal/ledger"
	"github.com/0xmattthemii/aryes-news-feed/internal/publish"
)

// LedgerStore loads and saves the dedup ledger.
type LedgerStore interface {
	Load() ledger.Ledger
	Save(ledger.Ledger) error
}

// Recorder keeps an audit trail of decisions. Recording errors are logged only.
type Recorder interface {
	Record(history.Entry) error
}

type Options struct {
	Fetcher    feed.Fetcher
	Classifier classify.Classifier
	Publisher  publish.Publisher
	Ledger     LedgerStore
	Recorder   Recorder
	Logger     *slog.Logger

	Recency   time.Duration
	Retention time.Duration
	Pace      time.Duration

	// DryRun classifies but never publishes.
	DryRun bool

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

type Pipeline struct {
	opts   Options
	logger *slog.Logger
}

func New(opts Options) *Pipeline {
	if opts.Classifier == nil {
		opts.Classifier = classify.Permissive{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Recency <= 0 {
		opts.Recency = 24 * time.Hour
	}
	if opts.Retention <= 0 {
		opts.Retention = 7 * 24 * time.Hour
	}
	if opts.Pace < 0 {
		opts.Pace = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}
	return &Pipeline{opts: opts, logger: opts.Logger}
}

// Report counts what happened to each entry during a run.
type Report struct {
	Entries           int
	NoLink            int
	Seen              int
	Stale             int
	Irrelevant        int
	Published         int
	PublishFailed     int
	DryRun            int
	Fallbacks         int
	FeedErrors        int
	SkippedCategories int
}

func (r Report) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("entries", r.Entries),
		slog.Int("no_link", r.NoLink),
		slog.Int("seen", r.Seen),
		slog.Int("stale", r.Stale),
		slog.Int("irrelevant", r.Irrelevant),
		slog.Int("published", r.Published),
		slog.Int("publish_failed", r.PublishFailed),
		slog.Int("dry_run", r.DryRun),
		slog.Int("fallbacks", r.Fallbacks),
		slog.Int("feed_errors", r.FeedErrors),
		slog.Int("skipped_categories", r.SkippedCategories),
	)
}

// Run performs one full pass over channels. The only error it returns on its
// own account is a failure to save the ledger; a cancelled context stops the
// walk early but the ledger is still saved.
func (p *Pipeline) Run(ctx context.Context, channels []config.Channel) (Report, error) {
	var rep Report
	start := p.opts.Now()

	l := ledger.Prune(p.opts.Ledger.Load(), start, p.opts.Retention)
	cutoff := start.Add(-p.opts.Recency)

	p.logger.InfoContext(ctx, "run started", "ledger_entries", len(l), "categories", len(channels))

walk:
	for _, ch := range channels {
		if !ch.Active() {
			p.logger.InfoContext(ctx, "category has no destination, skipping",
				"category", ch.Name, "env", config.WebhookEnv(ch.Name))
			rep.SkippedCategories++
			continue
		}
		for _, src := range ch.Feeds {
			if ctx.Err() != nil {
				break walk
			}
			p.runFeed(ctx, ch, src, l, cutoff, &rep)
		}
	}

	if err := p.opts.Ledger.Save(l); err != nil {
		return rep, fmt.Errorf("saving ledger: %w", err)
	}

	p.logger.InfoContext(ctx, "run finished", "report", rep, "ledger_entries", len(l), "took", p.opts.Now().Sub(start))
	if err := ctx.Err(); err != nil {
		return rep, fmt.Errorf("run interrupted: %w", err)
	}
	return rep, nil
}

func (p *Pipeline) runFeed(ctx context.Context, ch config.Channel, src config.Feed, l ledger.Ledger, cutoff time.Time, rep *Report) {
	items, err := p.opts.Fetcher.Fetch(ctx, src)
	if err != nil {
		p.logger.ErrorContext(ctx, "feed fetch failed", "category", ch.Name, "feed", src.Name, "url", src.URL, "error", err)
		rep.FeedErrors++
		return
	}
	rep.Entries += len(items)

	var fresh []feed.Article
	for _, item := range items {
		a, ok := feed.Extract(item, src.Name)
		switch {
		case !ok:
			rep.NoLink++
		case l.IsHandled(a.Link):
			rep.Seen++
		case a.Published.Before(cutoff):
			rep.Stale++
		default:
			fresh = append(fresh, a)
		}
	}
	p.logger.DebugContext(ctx, "feed scanned", "category", ch.Name, "feed", src.Name, "entries", len(items), "new", len(fresh))

	for _, a := range fresh {
		if ctx.Err() != nil {
			return
		}
		// the same link can appear twice in one feed
		if l.IsHandled(a.Link) {
			rep.Seen++
			continue
		}
		if !p.handle(ctx, ch, a, l, rep) {
			continue
		}
		if err := p.opts.Sleep(ctx, p.opts.Pace); err != nil {
			return
		}
	}
}

// handle classifies and publishes one article. It returns false when nothing
// was sent and no pacing delay is needed.
func (p *Pipeline) handle(ctx context.Context, ch config.Channel, a feed.Article, l ledger.Ledger, rep *Report) bool {
	decision := p.opts.Classifier.Classify(ctx, a, ch)
	entry := history.Entry{
		Link:     a.Link,
		Category: ch.Name,
		Source:   a.Source,
		Title:    a.Title,
		Fallback: decision == classify.RelevantFallback,
	}
	if entry.Fallback {
		rep.Fallbacks++
	}

	if !decision.IsRelevant() {
		l.MarkHandled(a.Link, p.opts.Now())
		rep.Irrelevant++
		entry.Outcome = history.Irrelevant
		p.record(entry)
		return false
	}

	switch {
	case p.opts.DryRun:
		p.logger.InfoContext(ctx, "dry run, not publishing", "category", ch.Name, "title", a.Title, "link", a.Link)
		rep.DryRun++
		entry.Outcome = history.DryRun
	case p.opts.Publisher.Publish(ctx, ch.Webhook, a):
		l.MarkHandled(a.Link, p.opts.Now())
		rep.Published++
		entry.Outcome = history.Published
		p.logger.InfoContext(ctx, "published", "category", ch.Name, "title", a.Title, "link", a.Link)
	default:
		// left out of the ledger so the next run retries it
		rep.PublishFailed++
		entry.Outcome = history.PublishFailed
	}
	p.record(entry)
	return true
}

func (p *Pipeline) record(e history.Entry) {
	if p.opts.Recorder == nil {
		return
	}
	e.HandledAt = p.opts.Now()
	if err := p.opts.Recorder.Record(e); err != nil {
		p.logger.Warn("recording decision failed", "link", e.Link, "error", err)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
