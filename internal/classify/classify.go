// Package classify decides whether an article fits a category's relevance
// policy. Every failure path answers "relevant": a missed article costs more
// than an off-topic post.
package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/0xmattthemii/aryes-news-feed/internal/ai"
	"github.com/0xmattthemii/aryes-news-feed/internal/config"
	"github.com/0xmattthemii/aryes-news-feed/internal/feed"
)

// Decision is the outcome of classifying one article for one category.
type Decision int

const (
	Irrelevant Decision = iota
	Relevant
	// RelevantFallback means the oracle could not answer and the article
	// was let through.
	RelevantFallback
)

func (d Decision) IsRelevant() bool {
	return d != Irrelevant
}

func (d Decision) String() string {
	switch d {
	case Irrelevant:
		return "irrelevant"
	case Relevant:
		return "relevant"
	case RelevantFallback:
		return "relevant_fallback"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

type Classifier interface {
	Classify(ctx context.Context, article feed.Article, channel config.Channel) Decision
}

// New returns an oracle-backed classifier, or a permissive one when no
// completer is configured.
func New(c ai.Completer, logger *slog.Logger) Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	if c == nil {
		return Permissive{}
	}
	return &Oracle{completer: c, logger: logger}
}

// Permissive accepts everything. Used when no classifier credential is set.
type Permissive struct{}

func (Permissive) Classify(context.Context, feed.Article, config.Channel) Decision {
	return Relevant
}

// Oracle asks a language model for a yes/no verdict.
type Oracle struct {
	completer ai.Completer
	logger    *slog.Logger
}

const answerTokens = 3

const relevancePrompt = `You screen news articles for the %q channel.

Relevance criteria:
%s

Article title: %s
Article summary: %s

Does this article meet the relevance criteria? Answer with exactly one word: yes or no.`

func (o *Oracle) Classify(ctx context.Context, article feed.Article, channel config.Channel) Decision {
	policy := strings.TrimSpace(channel.Policy)
	if policy == "" {
		policy = "Any article about " + strings.ReplaceAll(channel.Name, "_", " ") + "."
	}
	prompt := fmt.Sprintf(relevancePrompt, channel.Name, policy, article.Title, article.Summary)

	answer, err := o.completer.Complete(ctx, prompt, answerTokens)
	if err != nil {
		o.logger.WarnContext(ctx, "classifier unavailable, letting article through",
			"category", channel.Name, "link", article.Link, "title", article.Title, "error", err)
		return RelevantFallback
	}

	if isYes(answer) {
		return Relevant
	}
	o.logger.DebugContext(ctx, "article judged irrelevant",
		"category", channel.Name, "link", article.Link, "answer", answer)
	return Irrelevant
}

// isYes matches the answer against "yes", ignoring case and surrounding
// whitespace or punctuation.
func isYes(answer string) bool {
	answer = strings.TrimFunc(answer, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	return strings.EqualFold(answer, "yes")
}
