package feed

import (
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
)

func TestParser_Parse(t *testing.T) {
	parser := NewParser()

	tests := []struct {
		name          string
		feedContent   string
		expectError   bool
		expectedCount int
		validateFunc  func(t *testing.T, items []*Item)
	}{
		{
			name: "valid RSS feed",
			feedContent: `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
	<channel>
		<title>Test RSS Feed</title>
		<link>http://example.com</link>
		<description>Test Description</description>
		<item>
			<title>First Post</title>
			<link>http://example.com/post1</link>
			<description>This is the first post</description>
			<guid>post-1</guid>
			<pubDate>Wed, 01 Jan 2025 12:00:00 GMT</pubDate>
			<enclosure url="http://example.com/image1.jpg" type="image/jpeg"/>
		</item>
		<item>
			<title>Second Post</title>
			<link>http://example.com/post2</link>
			<description>This is the second post</description>
			<content:encoded><![CDATA[<p>Full content here</p>]]></content:encoded>
			<guid>post-2</guid>
			<pubDate>Thu, 02 Jan 2025 12:00:00 GMT</pubDate>
		</item>
	</channel>
</rss>`,
			expectedCount: 2,
			validateFunc: func(t *testing.T, items []*Item) {
				// Newest first regardless of document order.
				if items[0].ID != "post-2" {
					t.Errorf("expected newest item first, got %s", items[0].ID)
				}
				if items[0].Content != "<p>Full content here</p>" {
					t.Errorf("expected content '<p>Full content here</p>', got %s", items[0].Content)
				}
				if items[1].Link != "http://example.com/post1" {
					t.Errorf("expected link 'http://example.com/post1', got %s", items[1].Link)
				}
				if len(items[1].MediaURLs) != 1 || items[1].MediaURLs[0] != "http://example.com/image1.jpg" {
					t.Error("expected media URL not found")
				}
				want := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
				if !items[1].Published.Equal(want) {
					t.Errorf("expected published %v, got %v", want, items[1].Published)
				}
			},
		},
		{
			name: "valid Atom feed",
			feedContent: `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
	<title>Test Atom Feed</title>
	<link href="http://example.org/"/>
	<updated>2025-01-01T12:00:00Z</updated>
	<entry>
		<title>Atom Entry 1</title>
		<link href="http://example.org/entry1"/>
		<id>urn:uuid:1225c695-cfb8-4ebb-aaaa-80da344efa6a</id>
		<updated>2025-01-01T12:00:00Z</updated>
		<author><name>alice</name></author>
		<summary>Entry summary</summary>
		<content type="html">&lt;p&gt;Entry content&lt;/p&gt;</content>
	</entry>
</feed>`,
			expectedCount: 1,
			validateFunc: func(t *testing.T, items []*Item) {
				if items[0].ID != "urn:uuid:1225c695-cfb8-4ebb-aaaa-80da344efa6a" {
					t.Errorf("unexpected id %s", items[0].ID)
				}
				if items[0].Author != "alice" {
					t.Errorf("expected author alice, got %s", items[0].Author)
				}
				if items[0].Published.IsZero() {
					t.Error("expected updated date to be used as published")
				}
			},
		},
		{
			name: "feed with media in HTML content",
			feedContent: `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
	<channel>
		<title>Media Feed</title>
		<item>
			<title>Media Post</title>
			<description><![CDATA[
				Check out this image: <img src="http://example.com/photo.jpg" />
				And this video: <video src="http://example.com/video.mp4"></video>
			]]></description>
			<guid>media-1</guid>
		</item>
	</channel>
</rss>`,
			expectedCount: 1,
			validateFunc: func(t *testing.T, items []*Item) {
				if len(items[0].MediaURLs) != 2 {
					t.Errorf("expected 2 media URLs, got %d", len(items[0].MediaURLs))
				}
			},
		},
		{
			name:          "invalid XML",
			feedContent:   "not valid XML",
			expectError:   true,
			expectedCount: 0,
		},
		{
			name:          "empty feed",
			feedContent:   `<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel></channel></rss>`,
			expectedCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := parser.Parse(strings.NewReader(tt.feedContent))

			if tt.expectError && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if len(items) != tt.expectedCount {
				t.Errorf("expected %d items, got %d", tt.expectedCount, len(items))
			}

			if tt.validateFunc != nil && len(items) > 0 {
				tt.validateFunc(t, items)
			}
		})
	}
}

func TestExtractMediaURLs(t *testing.T) {
	tests := []struct {
		name         string
		item         *gofeed.Item
		expectedURLs []string
	}{
		{
			name: "enclosures",
			item: &gofeed.Item{
				Enclosures: []*gofeed.Enclosure{
					{URL: "http://example.com/audio.mp3"},
					{URL: "http://example.com/video.mp4"},
				},
			},
			expectedURLs: []string{"http://example.com/audio.mp3", "http://example.com/video.mp4"},
		},
		{
			name: "image field",
			item: &gofeed.Item{
				Image: &gofeed.Image{
					URL: "http://example.com/image.png",
				},
			},
			expectedURLs: []string{"http://example.com/image.png"},
		},
		{
			name: "duplicate URLs removed",
			item: &gofeed.Item{
				Enclosures: []*gofeed.Enclosure{
					{URL: "http://example.com/media.mp4"},
				},
				Content: `<video src="http://example.com/media.mp4"></video>`,
			},
			expectedURLs: []string{"http://example.com/media.mp4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			urls := extractMediaURLs(tt.item)

			if len(urls) != len(tt.expectedURLs) {
				t.Errorf("expected %d URLs, got %d", len(tt.expectedURLs), len(urls))
			}

			urlMap := make(map[string]bool)
			for _, url := range urls {
				urlMap[url] = true
			}

			for _, expectedURL := range tt.expectedURLs {
				if !urlMap[expectedURL] {
					t.Errorf("expected URL %s not found", expectedURL)
				}
			}
		})
	}
}

func TestGenerateID(t *testing.T) {
	published := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		item   *gofeed.Item
		expect string
	}{
		{
			name:   "guid wins",
			item:   &gofeed.Item{GUID: "g1", Link: "http://example.com/1"},
			expect: "g1",
		},
		{
			name:   "link fallback",
			item:   &gofeed.Item{Link: "http://example.com/1"},
			expect: "http://example.com/1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if id := generateID(tt.item); id != tt.expect {
				t.Errorf("expected %s, got %s", tt.expect, id)
			}
		})
	}

	t.Run("hash is stable", func(t *testing.T) {
		a := generateID(&gofeed.Item{Title: "t", PublishedParsed: &published})
		b := generateID(&gofeed.Item{Title: "t", PublishedParsed: &published})
		if a != b || a == "" {
			t.Errorf("expected stable non-empty id, got %q and %q", a, b)
		}
	})
}
