package feed

import (
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

func TestExtractRequiresLink(t *testing.T) {
	if _, ok := Extract(&gofeed.Item{Title: "No link"}, "src"); ok {
		t.Error("expected entry without link to be skipped")
	}
	if _, ok := Extract(&gofeed.Item{Link: "   "}, "src"); ok {
		t.Error("expected blank link to be skipped")
	}
	if _, ok := Extract(nil, "src"); ok {
		t.Error("expected nil entry to be skipped")
	}
	a, ok := Extract(&gofeed.Item{Links: []string{"https://example.com/alt"}}, "src")
	if !ok || a.Link != "https://example.com/alt" {
		t.Errorf("expected fallback to Links, got %q ok=%v", a.Link, ok)
	}
}

func TestExtractDefaults(t *testing.T) {
	a, ok := Extract(&gofeed.Item{Link: "https://example.com/a"}, "Reuters")
	if !ok {
		t.Fatal("expected ok")
	}
	if a.Title != "Untitled" {
		t.Errorf("title = %q, want Untitled", a.Title)
	}
	if a.Source != "Reuters" {
		t.Errorf("source = %q", a.Source)
	}
	if a.Summary != "" || a.HasImage() {
		t.Errorf("expected empty summary and no image, got %q %q", a.Summary, a.ImageURL)
	}
	if !a.Published.Equal(time.Unix(0, 0)) {
		t.Errorf("expected epoch publish time, got %v", a.Published)
	}
}

func TestExtractPublishedFallsBackToUpdated(t *testing.T) {
	updated := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	a, _ := Extract(&gofeed.Item{Link: "x", UpdatedParsed: &updated}, "")
	if !a.Published.Equal(updated) {
		t.Errorf("published = %v, want %v", a.Published, updated)
	}
}

func TestSummaryPriority(t *testing.T) {
	tests := []struct {
		name string
		item *gofeed.Item
		want string
	}{
		{"snippet first", &gofeed.Item{Description: "snippet", Content: "<p>content</p>"}, "snippet"},
		{"content when no snippet", &gofeed.Item{Description: "  ", Content: "<p>content</p>"}, "content"},
		{"itunes summary", &gofeed.Item{ITunesExt: &ext.ITunesItemExtension{Summary: "legacy"}}, "legacy"},
		{"dublin core", &gofeed.Item{DublinCoreExt: &ext.DublinCoreExtension{Description: []string{"dc"}}}, "dc"},
	}
	for _, tt := range tests {
		tt.item.Link = "https://example.com"
		a, _ := Extract(tt.item, "")
		if a.Summary != tt.want {
			t.Errorf("%s: summary = %q, want %q", tt.name, a.Summary, tt.want)
		}
	}
}

func TestSummaryTruncated(t *testing.T) {
	long := "<p>" + strings.Repeat("word ", 100) + "</p>"
	a, _ := Extract(&gofeed.Item{Link: "x", Description: long}, "")
	if n := len([]rune(a.Summary)); n != 200 {
		t.Errorf("expected 200 chars, got %d", n)
	}
	if !strings.HasSuffix(a.Summary, "...") {
		t.Errorf("expected ellipsis, got %q", a.Summary)
	}
}

func TestImageURLPriority(t *testing.T) {
	media := func(kind string, attrs map[string]string) ext.Extensions {
		return ext.Extensions{"media": {kind: []ext.Extension{{Attrs: attrs}}}}
	}
	tests := []struct {
		name string
		item *gofeed.Item
		want string
	}{
		{
			"media content",
			&gofeed.Item{
				Extensions: ext.Extensions{"media": {
					"content":   []ext.Extension{{Attrs: map[string]string{"url": "https://c/content.jpg"}}},
					"thumbnail": []ext.Extension{{Attrs: map[string]string{"url": "https://c/thumb.jpg"}}},
				}},
				Enclosures: []*gofeed.Enclosure{{URL: "https://c/enc.png"}},
			},
			"https://c/content.jpg",
		},
		{
			"media content video skipped",
			&gofeed.Item{Extensions: media("content", map[string]string{"url": "https://c/v.mp4", "medium": "video"})},
			"",
		},
		{
			"media thumbnail",
			&gofeed.Item{Extensions: media("thumbnail", map[string]string{"url": "https://c/thumb.jpg"})},
			"https://c/thumb.jpg",
		},
		{
			"enclosure with image extension",
			&gofeed.Item{Enclosures: []*gofeed.Enclosure{
				{URL: "https://c/audio.mp3"},
				{URL: "https://c/PHOTO.JPEG?w=600"},
			}},
			"https://c/PHOTO.JPEG?w=600",
		},
		{
			"enclosure webp",
			&gofeed.Item{Enclosures: []*gofeed.Enclosure{{URL: "https://c/a.webp"}}},
			"https://c/a.webp",
		},
		{
			"img in content",
			&gofeed.Item{Content: `<div><img class="x" src="https://c/inline.gif" alt=""><img src="https://c/second.png"></div>`},
			"https://c/inline.gif",
		},
		{
			"no image",
			&gofeed.Item{Content: "<p>text only</p>", Enclosures: []*gofeed.Enclosure{{URL: "https://c/file.pdf"}}},
			"",
		},
	}
	for _, tt := range tests {
		tt.item.Link = "https://example.com"
		a, _ := Extract(tt.item, "")
		if a.ImageURL != tt.want {
			t.Errorf("%s: image = %q, want %q", tt.name, a.ImageURL, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input string
		n     int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"this is a long string", 10, "this is..."},
		{"abc", 3, "abc"},
		{"abcd", 3, "..."},
		{"abcd", 2, "ab"},
		{"", 5, ""},
	}
	for _, tt := range tests {
		got := truncate(tt.input, tt.n)
		if got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.n, got, tt.want)
		}
	}
}

func TestTruncateProperties(t *testing.T) {
	inputs := []string{"", "a", "hello world", strings.Repeat("x", 250), "こんにちは世界です"}
	for _, s := range inputs {
		for n := 3; n <= 20; n++ {
			got := truncate(s, n)
			runes := len([]rune(got))
			if runes > n {
				t.Errorf("truncate(%q, %d) has %d chars", s, n, runes)
			}
			cut := len([]rune(s)) > n
			if !cut && got != s {
				t.Errorf("truncate(%q, %d) changed a short string", s, n)
			}
			if cut != strings.HasSuffix(got, "...") {
				t.Errorf("truncate(%q, %d) = %q: ellipsis mismatch", s, n, got)
			}
		}
	}
}

func TestTruncateUTF8(t *testing.T) {
	input := "こんにちは世界です"
	got := truncate(input, 5)
	want := "こん..."
	if got != want {
		t.Errorf("truncate(%q, 5) = %q, want %q", input, got, want)
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"<p>Hello</p>", "Hello"},
		{"<b>Bold</b> and <i>italic</i>", "Bold and italic"},
		{"No tags here", "No tags here"},
		{"<div>  Multiple   spaces  </div>", "Multiple spaces"},
		{"", ""},
		{"<a href=\"url\">Link</a> text", "Link text"},
		{"line<br/>break", "line break"},
		{"Fish &amp; Chips", "Fish & Chips"},
	}
	for _, tt := range tests {
		got := stripHTML(tt.input)
		if got != tt.want {
			t.Errorf("stripHTML(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
