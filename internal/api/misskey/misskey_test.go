package misskey

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/fwtl/internal/api"
	"github.com/pders01/fwtl/internal/config"
)

func newTestServer(t *testing.T, handler func(path string, body map[string]any) any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(handler(r.URL.Path, body)))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNotes_RequestBody(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	server := newTestServer(t, func(path string, body map[string]any) any {
		gotPath, gotBody = path, body
		return []map[string]any{
			{"id": "9a", "createdAt": "2025-01-02T00:00:00Z", "text": "hi", "userId": "u1",
				"user": map[string]any{"id": "u1", "username": "alice"}, "visibility": "public"},
		}
	})

	c := NewClient(api.NewClient(config.TestConfig()), server.URL+"/", "secret", Version{})
	notes, err := c.Notes(context.Background(), EndpointHomeTimeline, NotesRequest{Limit: 10, SinceID: "99"})
	require.NoError(t, err)

	assert.Equal(t, "/api/notes/timeline", gotPath)
	assert.Equal(t, "secret", gotBody["i"])
	assert.Equal(t, "99", gotBody["sinceId"])
	assert.EqualValues(t, 10, gotBody["limit"])
	assert.NotContains(t, gotBody, "untilId")
	assert.NotContains(t, gotBody, "untilDate")

	require.Len(t, notes, 1)
	assert.Equal(t, "9a", notes[0].ID)
	assert.Equal(t, "alice", notes[0].User.Username)
	require.NotNil(t, notes[0].Text)
	assert.Equal(t, "hi", *notes[0].Text)
}

func TestFavorites(t *testing.T) {
	server := newTestServer(t, func(path string, body map[string]any) any {
		assert.Equal(t, "/api/i/favorites", path)
		assert.Equal(t, "f5", body["untilId"])
		return []map[string]any{
			{"id": "f4", "createdAt": "2025-01-02T00:00:00Z", "noteId": "n4",
				"note": map[string]any{"id": "n4", "createdAt": "2025-01-01T00:00:00Z", "userId": "u"}},
		}
	})

	c := NewClient(api.NewClient(nil), server.URL, "tok", Version{})
	favs, err := c.Favorites(context.Background(), NotesRequest{UntilID: "f5"})
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, "f4", favs[0].ID)
	assert.Equal(t, "n4", favs[0].Note.ID)
}

func TestVersionGates(t *testing.T) {
	server := newTestServer(t, func(string, map[string]any) any { return []any{} })
	ctx := context.Background()

	tests := []struct {
		name     string
		version  Version
		endpoint string
		req      NotesRequest
		wantErr  bool
	}{
		{"antenna on v10", Version{Major: 10, Minor: 102}, EndpointAntennaNotes, NotesRequest{AntennaID: "a"}, true},
		{"antenna on v11", Version{Major: 11, Minor: 37}, EndpointAntennaNotes, NotesRequest{AntennaID: "a"}, false},
		{"channel on v11", Version{Major: 11}, EndpointChannelTimeline, NotesRequest{ChannelID: "c"}, true},
		{"channel on v12", Version{Major: 12, Minor: 119}, EndpointChannelTimeline, NotesRequest{ChannelID: "c"}, false},
		{"untilDate on 12.74", Version{Major: 12, Minor: 74}, EndpointHomeTimeline, NotesRequest{UntilDate: 1}, true},
		{"untilDate on 12.75", Version{Major: 12, Minor: 75}, EndpointHomeTimeline, NotesRequest{UntilDate: 1}, false},
		{"untilDate on calver", Version{Major: 2024, Minor: 11}, EndpointHomeTimeline, NotesRequest{UntilDate: 1}, false},
		{"unknown version allows all", Version{}, EndpointChannelTimeline, NotesRequest{UntilDate: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(api.NewClient(nil), server.URL, "", tt.version)
			_, err := c.Notes(ctx, tt.endpoint, tt.req)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrUnsupportedByVersion), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    Version
		wantErr bool
	}{
		{"12.75.1", Version{12, 75, 1}, false},
		{"13.0.0-beta.3", Version{13, 0, 0}, false},
		{"2023.12.0", Version{2023, 12, 0}, false},
		{"11", Version{Major: 11}, false},
		{"", Version{}, false},
		{"abc", Version{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVersion(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMeta(t *testing.T) {
	server := newTestServer(t, func(path string, _ map[string]any) any {
		assert.Equal(t, "/api/meta", path)
		return map[string]any{"version": "12.119.2"}
	})
	v, err := NewClient(api.NewClient(nil), server.URL, "", Version{}).Meta(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "12.119.2", v.String())
}

func TestHTTPErrorSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"NO_SUCH_LIST"}}`))
	}))
	defer server.Close()

	_, err := NewClient(api.NewClient(nil), server.URL, "", Version{}).
		Notes(context.Background(), EndpointUserListTimeline, NotesRequest{ListID: "x"})
	var httpErr *api.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
	assert.Contains(t, err.Error(), "NO_SUCH_LIST")
}
