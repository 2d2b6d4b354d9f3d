package instagram

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "igleads/pkg/errors"
	"igleads/pkg/models"
)

const profileJSON = `{
  "data": {"user": {
    "id": "1001",
    "username": "shopa",
    "full_name": "Shop A ",
    "biography": "Mayorista de celulares\nwa.me/5212345678900",
    "external_url": "https://shopa.mx",
    "edge_followed_by": {"count": 1520}
  }},
  "status": "ok"
}`

const profilePage = `<html><head>
<meta property="og:title" content="Shop A (@shopa) • Instagram photos and videos">
<meta property="og:description" content="1.2k Followers, 30 Following, 12 Posts - See Instagram photos and videos from Shop A (@shopa)">
<meta name="description" content="1,234 Followers, 30 Following, 12 Posts - Shop A (@shopa) on Instagram: &quot;Reparación de celulares&quot;">
</head><body></body></html>`

func TestProfileFetcher(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ProfileEndpoint, r.URL.Path)
		assert.Equal(t, "shopa", r.URL.Query().Get("username"))
		w.Write([]byte(profileJSON))
	}))
	f := NewProfileFetcher(client, nil)

	rec, err := f.Fetch(context.Background(), "shopa")
	require.NoError(t, err)

	assert.Equal(t, models.Handle("shopa"), rec.Handle)
	assert.Equal(t, "1001", rec.UserID)
	assert.Equal(t, "Shop A", rec.DisplayName)
	assert.Contains(t, rec.Bio, "Mayorista")
	assert.Equal(t, "https://shopa.mx", rec.ExternalLink)
	require.NotNil(t, rec.FollowerCount)
	assert.Equal(t, 1520, *rec.FollowerCount)
	assert.Equal(t, "https://www.instagram.com/shopa/", rec.ProfileURL)

	id, err := f.UserID(context.Background(), "shopa")
	require.NoError(t, err)
	assert.Equal(t, "1001", id)
}

func TestProfileFetcherFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{"not found", "", http.StatusNotFound},
		{"login required", `{"requires_to_login": true}`, http.StatusOK},
		{"no user", `{"data": {}}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				w.Write([]byte(tt.body))
			}))

			_, err := NewProfileFetcher(client, nil).Fetch(context.Background(), "deadprofile")
			require.Error(t, err)
			assert.True(t, errs.IsStage(err, errs.StageFetch))
		})
	}
}

func TestPageFetcher(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/shopa/", r.URL.Path)
		w.Write([]byte(profilePage))
	}))

	rec, err := NewPageFetcher(client, nil).Fetch(context.Background(), "shopa")
	require.NoError(t, err)
	assert.Equal(t, "Shop A", rec.DisplayName)
	assert.Equal(t, "Reparación de celulares", rec.Bio)
	require.NotNil(t, rec.FollowerCount)
	assert.Equal(t, 1234, *rec.FollowerCount)
}

func TestParseProfilePageWithoutMeta(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body>login</body></html>"))
	require.NoError(t, err)
	_, ok := ParseProfilePage(doc, "x")
	assert.False(t, ok)
}

func TestParseCount(t *testing.T) {
	tests := map[string]int{
		"1,234":  1234,
		"1.234":  1234,
		"987":    987,
		"1.2k":   1200,
		"1,5K":   1500,
		"3M":     3000000,
		"2.25m":  2250000,
		" 10 k ": 10000,
	}
	for in, want := range tests {
		n, ok := ParseCount(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, n, in)
	}

	_, ok := ParseCount("")
	assert.False(t, ok)
	_, ok = ParseCount("many")
	assert.False(t, ok)
}

func TestFallbackFetcher(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(ProfileEndpoint, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/shopa/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(profilePage))
	})
	client, _ := newTestClient(t, mux)

	f := NewFallbackFetcher(nil, NewProfileFetcher(client, nil), NewPageFetcher(client, nil))
	rec, err := f.Fetch(context.Background(), "shopa")
	require.NoError(t, err)
	assert.Equal(t, "Shop A", rec.DisplayName)

	_, err = f.Fetch(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errs.IsStage(err, errs.StageFetch))
}

func TestGraphExpander(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(ProfileEndpoint, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(profileJSON))
	})
	mux.HandleFunc("/api/v1/friendships/1001/followers/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("max_id") == "" {
			fmt.Fprint(w, `{"users":[{"pk":1,"username":"userB"},{"pk":2,"username":"shopa"}],"next_max_id":"p2"}`)
			return
		}
		fmt.Fprint(w, `{"users":[{"pk":3,"username":"userC"}],"next_max_id":null}`)
	})
	mux.HandleFunc("/api/v1/friendships/1001/following/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"users":[{"pk":3,"username":"userc"},{"pk":4,"username":"userD"}],"next_max_id":12}`)
	})
	client, _ := newTestClient(t, mux)

	fetcher := NewProfileFetcher(client, nil)
	exp := NewGraphExpander(client, fetcher, 3, nil)

	got, err := exp.Expand(context.Background(), "shopa")
	require.NoError(t, err)
	assert.Equal(t, []models.Handle{"userb", "userc", "userd"}, got)
}

func TestGraphExpanderRespectsMaxNeighbors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(ProfileEndpoint, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(profileJSON))
	})
	mux.HandleFunc("/api/v1/friendships/1001/followers/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"users":[{"username":"a1"},{"username":"a2"},{"username":"a3"}],"next_max_id":"more"}`)
	})
	mux.HandleFunc("/api/v1/friendships/1001/following/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	client, _ := newTestClient(t, mux)

	exp := NewGraphExpander(client, NewProfileFetcher(client, nil), 2, nil)
	got, err := exp.Expand(context.Background(), "shopa")
	require.NoError(t, err)
	assert.Equal(t, []models.Handle{"a1", "a2"}, got)
}

func TestGraphExpanderFailsWhenBothRelationsFail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(ProfileEndpoint, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(profileJSON))
	})
	mux.HandleFunc("/api/v1/friendships/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	client, _ := newTestClient(t, mux)

	_, err := NewGraphExpander(client, NewProfileFetcher(client, nil), 10, nil).Expand(context.Background(), "shopa")
	require.Error(t, err)
	assert.True(t, errs.IsStage(err, errs.StageExpand))
}
