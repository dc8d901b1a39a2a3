package history

import "time"

// Outcome is what the pipeline did with an article.
type Outcome string

const (
	Published     Outcome = "published"
	Irrelevant    Outcome = "irrelevant"
	PublishFailed Outcome = "publish_failed"
	DryRun        Outcome = "dry_run"
)

type Entry struct {
	Link      string
	Category  string
	Source    string
	Title     string
	Outcome   Outcome
	Fallback  bool // let through because the classifier failed
	HandledAt time.Time
}

type QueryOpts struct {
	Since    time.Time
	Category string
	Limit    int
}
