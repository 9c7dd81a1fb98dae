// Package misskey talks to the Misskey REST API. Every endpoint is a POST
// with a JSON body carrying the access token in "i".
package misskey

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pders01/fwtl/internal/api"
)

const (
	EndpointHomeTimeline     = "notes/timeline"
	EndpointLocalTimeline    = "notes/local-timeline"
	EndpointHybridTimeline   = "notes/hybrid-timeline"
	EndpointGlobalTimeline   = "notes/global-timeline"
	EndpointUserListTimeline = "notes/user-list-timeline"
	EndpointAntennaNotes     = "antennas/notes"
	EndpointChannelTimeline  = "channels/timeline"
	EndpointUserNotes        = "users/notes"
	EndpointSearch           = "notes/search"
	EndpointFavorites        = "i/favorites"
)

var ErrUnsupportedByVersion = errors.New("not supported by this Misskey version")

type User struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Name     *string `json:"name"`
	Host     *string `json:"host"`
}

type File struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Type string `json:"type"`
}

type Note struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	Text       *string   `json:"text"`
	CW         *string   `json:"cw"`
	UserID     string    `json:"userId"`
	User       User      `json:"user"`
	ReplyID    *string   `json:"replyId"`
	RenoteID   *string   `json:"renoteId"`
	Renote     *Note     `json:"renote,omitempty"`
	ChannelID  *string   `json:"channelId"`
	Visibility string    `json:"visibility"`
	Files      []File    `json:"files"`
	URI        *string   `json:"uri"`
	URL        *string   `json:"url"`
}

// Favorite pairs a favorite record with the note it points to. Favorite
// listings page by favorite id, not note id.
type Favorite struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	NoteID    string    `json:"noteId"`
	Note      Note      `json:"note"`
}

// NotesRequest is the body shared by all note listing endpoints.
type NotesRequest struct {
	I         string `json:"i,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	SinceID   string `json:"sinceId,omitempty"`
	UntilID   string `json:"untilId,omitempty"`
	UntilDate int64  `json:"untilDate,omitempty"`
	ListID    string `json:"listId,omitempty"`
	AntennaID string `json:"antennaId,omitempty"`
	ChannelID string `json:"channelId,omitempty"`
	UserID    string `json:"userId,omitempty"`
	Query     string `json:"query,omitempty"`
	WithFiles bool   `json:"withFiles,omitempty"`
}

type Client struct {
	http    *api.Client
	baseURL string
	token   string
	version Version
}

func NewClient(http *api.Client, baseURL, token string, version Version) *Client {
	return &Client{
		http:    http,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		version: version,
	}
}

func (c *Client) Version() Version {
	return c.version
}

// Notes posts req to endpoint and returns the notes in the order the server
// sent them.
func (c *Client) Notes(ctx context.Context, endpoint string, req NotesRequest) ([]Note, error) {
	if err := c.checkRequest(endpoint, req); err != nil {
		return nil, err
	}
	req.I = c.token

	var notes []Note
	if _, err := c.http.PostJSON(ctx, c.endpointURL(endpoint), req, &notes); err != nil {
		return nil, fmt.Errorf("misskey %s: %w", endpoint, err)
	}
	return notes, nil
}

// Favorites lists the favorites of the authenticated user. Cursors are
// favorite ids.
func (c *Client) Favorites(ctx context.Context, req NotesRequest) ([]Favorite, error) {
	req.I = c.token

	var favorites []Favorite
	if _, err := c.http.PostJSON(ctx, c.endpointURL(EndpointFavorites), req, &favorites); err != nil {
		return nil, fmt.Errorf("misskey %s: %w", EndpointFavorites, err)
	}
	return favorites, nil
}

// Meta fetches the instance metadata; only the version is decoded.
func (c *Client) Meta(ctx context.Context) (Version, error) {
	var meta struct {
		Version string `json:"version"`
	}
	if _, err := c.http.PostJSON(ctx, c.endpointURL("meta"), map[string]any{"detail": false}, &meta); err != nil {
		return Version{}, fmt.Errorf("misskey meta: %w", err)
	}
	return ParseVersion(meta.Version)
}

func (c *Client) checkRequest(endpoint string, req NotesRequest) error {
	switch endpoint {
	case EndpointAntennaNotes:
		if !c.version.AtLeast(11, 0) {
			return fmt.Errorf("antenna timeline: %w (%s)", ErrUnsupportedByVersion, c.version)
		}
	case EndpointChannelTimeline:
		if !c.version.AtLeast(12, 0) {
			return fmt.Errorf("channel timeline: %w (%s)", ErrUnsupportedByVersion, c.version)
		}
	}
	if req.UntilDate != 0 && !c.version.SupportsUntilDate() {
		return fmt.Errorf("untilDate: %w (%s)", ErrUnsupportedByVersion, c.version)
	}
	return nil
}

func (c *Client) endpointURL(endpoint string) string {
	return api.JoinURL(c.baseURL, "/api/"+endpoint)
}

// Version is a Misskey server version. The zero value means unknown and is
// treated as the newest release.
type Version struct {
	Major int
	Minor int
	Patch int
}

// ParseVersion accepts forms like "12.75.1", "13.0.0-beta.3" or
// "2023.12.0". An empty string yields the zero Version.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}, nil
	}
	if i := strings.IndexAny(s, "-+"); i >= 0 {
		s = s[:i]
	}

	var v Version
	parts := strings.Split(s, ".")
	fields := []*int{&v.Major, &v.Minor, &v.Patch}
	for i, part := range parts {
		if i >= len(fields) {
			break
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return Version{}, fmt.Errorf("invalid Misskey version %q", s)
		}
		*fields[i] = n
	}
	return v, nil
}

func (v Version) IsZero() bool {
	return v == Version{}
}

func (v Version) AtLeast(major, minor int) bool {
	if v.IsZero() {
		return true
	}
	if v.Major != major {
		return v.Major > major
	}
	return v.Minor >= minor
}

// SupportsUntilDate reports whether timelines accept the untilDate cursor.
func (v Version) SupportsUntilDate() bool {
	return v.AtLeast(12, 75)
}

func (v Version) String() string {
	if v.IsZero() {
		return "unknown"
	}
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}
