package feed

import (
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const (
	untitled      = "Untitled"
	maxSummaryLen = 200
	ellipsis      = "..."
)

var (
	tagPattern      = regexp.MustCompile(`<[^>]*>`)
	imageExtPattern = regexp.MustCompile(`(?i)\.(jpe?g|png|gif|webp)`)
	imgSrcPattern   = regexp.MustCompile(`(?i)<img[^>]+src=["']([^"']+)["']`)
)

// Article is a feed entry normalized for publishing. Link is its identity.
type Article struct {
	Title     string
	Link      string
	Source    string
	Summary   string
	ImageURL  string
	Published time.Time
}

func (a Article) HasImage() bool {
	return a.ImageURL != ""
}

// Extract builds an Article from a raw entry. ok is false when the entry has
// no link and must be skipped.
func Extract(item *gofeed.Item, source string) (Article, bool) {
	if item == nil {
		return Article{}, false
	}
	link := strings.TrimSpace(item.Link)
	if link == "" && len(item.Links) > 0 {
		link = strings.TrimSpace(item.Links[0])
	}
	if link == "" {
		return Article{}, false
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = untitled
	}

	return Article{
		Title:     title,
		Link:      link,
		Source:    source,
		Summary:   truncate(stripHTML(summaryText(item)), maxSummaryLen),
		ImageURL:  imageURL(item),
		Published: publishedAt(item),
	}, true
}

// publishedAt is the entry's declared time, or the Unix epoch when none parsed.
func publishedAt(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Unix(0, 0)
}

// summaryText picks the first non-empty of the snippet, the full content and
// the legacy summary fields.
func summaryText(item *gofeed.Item) string {
	candidates := []string{item.Description, item.Content}
	if item.ITunesExt != nil {
		candidates = append(candidates, item.ITunesExt.Summary)
	}
	if item.DublinCoreExt != nil && len(item.DublinCoreExt.Description) > 0 {
		candidates = append(candidates, item.DublinCoreExt.Description[0])
	}
	for _, c := range candidates {
		if strings.TrimSpace(c) != "" {
			return c
		}
	}
	return ""
}

func imageURL(item *gofeed.Item) string {
	if media, ok := item.Extensions["media"]; ok {
		for _, c := range media["content"] {
			medium := c.Attrs["medium"]
			if u := c.Attrs["url"]; u != "" && (medium == "" || medium == "image") {
				return u
			}
		}
		for _, th := range media["thumbnail"] {
			if u := th.Attrs["url"]; u != "" {
				return u
			}
		}
	}

	for _, enc := range item.Enclosures {
		if enc != nil && enc.URL != "" && imageExtPattern.MatchString(enc.URL) {
			return enc.URL
		}
	}

	for _, raw := range []string{item.Content, item.Description} {
		if m := imgSrcPattern.FindStringSubmatch(raw); m != nil {
			return html.UnescapeString(m[1])
		}
	}
	return ""
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n < len(ellipsis) {
		return string(runes[:n])
	}
	return string(runes[:n-len(ellipsis)]) + ellipsis
}

func stripHTML(s string) string {
	s = tagPattern.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}
