// Package mastodon talks to the Mastodon REST API.
package mastodon

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pders01/fwtl/internal/api"
)

const (
	PathHomeTimeline   = "/api/v1/timelines/home"
	PathPublicTimeline = "/api/v1/timelines/public"
	PathFavourites     = "/api/v1/favourites"
)

func PathListTimeline(listID string) string {
	return "/api/v1/timelines/list/" + url.PathEscape(listID)
}

func PathTagTimeline(tag string) string {
	return "/api/v1/timelines/tag/" + url.PathEscape(strings.TrimPrefix(tag, "#"))
}

func PathAccountStatuses(accountID string) string {
	return "/api/v1/accounts/" + url.PathEscape(accountID) + "/statuses"
}

type Account struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Acct        string `json:"acct"`
	DisplayName string `json:"display_name"`
}

type MediaAttachment struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

type Status struct {
	ID               string            `json:"id"`
	URI              string            `json:"uri"`
	URL              *string           `json:"url"`
	CreatedAt        time.Time         `json:"created_at"`
	Content          string            `json:"content"`
	SpoilerText      string            `json:"spoiler_text"`
	Visibility       string            `json:"visibility"`
	Account          Account           `json:"account"`
	InReplyToID      *string           `json:"in_reply_to_id"`
	Reblog           *Status           `json:"reblog"`
	MediaAttachments []MediaAttachment `json:"media_attachments"`
}

// Page is one listing response together with its pagination links.
type Page struct {
	Statuses []Status
	Link     LinkHeader
}

// TimelineRequest carries the query parameters shared by timeline endpoints.
type TimelineRequest struct {
	MaxID     string
	MinID     string
	Limit     int
	Local     bool
	OnlyMedia bool
}

func (r TimelineRequest) values() url.Values {
	v := url.Values{}
	if r.MaxID != "" {
		v.Set("max_id", r.MaxID)
	}
	if r.MinID != "" {
		v.Set("min_id", r.MinID)
	}
	if r.Limit > 0 {
		v.Set("limit", strconv.Itoa(r.Limit))
	}
	if r.Local {
		v.Set("local", "true")
	}
	if r.OnlyMedia {
		v.Set("only_media", "true")
	}
	return v
}

type Client struct {
	http    *api.Client
	baseURL string
	token   string
}

func NewClient(http *api.Client, baseURL, token string) *Client {
	return &Client{http: http, baseURL: strings.TrimRight(baseURL, "/"), token: token}
}

// Timeline GETs path with req and returns the statuses in server order
// (newest first) along with the decoded Link header.
func (c *Client) Timeline(ctx context.Context, path string, req TimelineRequest) (*Page, error) {
	u := api.JoinURL(c.baseURL, path)
	if q := req.values().Encode(); q != "" {
		u += "?" + q
	}

	var statuses []Status
	header, err := c.http.GetJSON(ctx, u, c.token, &statuses)
	if err != nil {
		return nil, fmt.Errorf("mastodon %s: %w", path, err)
	}
	return &Page{Statuses: statuses, Link: ParseLinkHeader(header.Get("Link"))}, nil
}

// Favourites pages by opaque favourite ids that only appear in the Link header.
func (c *Client) Favourites(ctx context.Context, req TimelineRequest) (*Page, error) {
	return c.Timeline(ctx, PathFavourites, req)
}

var (
	maxIDRegex = regexp.MustCompile(`[?&]max_id=(\w+)`)
	minIDRegex = regexp.MustCompile(`[?&]min_id=(\w+)`)
)

// LinkHeader holds the cursors advertised by a Mastodon Link header.
// MaxID pages towards older items, MinID towards newer ones.
type LinkHeader struct {
	MaxID string
	MinID string
}

func ParseLinkHeader(header string) LinkHeader {
	var link LinkHeader
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		switch {
		case strings.Contains(part, `rel="next"`):
			if m := maxIDRegex.FindStringSubmatch(part); m != nil {
				link.MaxID = m[1]
			}
		case strings.Contains(part, `rel="prev"`):
			if m := minIDRegex.FindStringSubmatch(part); m != nil {
				link.MinID = m[1]
			}
		}
	}
	return link
}

// PlainText flattens status HTML into text, keeping paragraph and line breaks.
func PlainText(html string) string {
	if html == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("br").ReplaceWithHtml("\n")
	var paragraphs []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		paragraphs = append(paragraphs, s.Text())
	})
	if len(paragraphs) == 0 {
		return strings.TrimSpace(doc.Text())
	}
	return strings.TrimSpace(strings.Join(paragraphs, "\n\n"))
}
