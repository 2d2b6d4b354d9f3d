package instagram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"igleads/pkg/config"
	errs "igleads/pkg/errors"
	"igleads/pkg/logger"
	"igleads/pkg/ratelimit"
	"igleads/pkg/retry"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *logger.TestLogger) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.DefaultConfig()
	cfg.Instagram.SessionID = "sess"
	cfg.Instagram.CSRFToken = "csrf"

	log := logger.NewTestLogger()
	client := NewClient(cfg.Instagram, cfg.RateLimit, log)
	client.SetBaseURL(server.URL)
	client.SetLimiter(ratelimit.Unlimited{})
	client.SetRetry(&retry.Config{MaxAttempts: 3, Backoff: &retry.ConstantBackoff{Delay: time.Millisecond}})
	return client, log
}

func TestClientSendsSessionHeaders(t *testing.T) {
	var got http.Header
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte(`{}`))
	}))

	var out map[string]interface{}
	require.NoError(t, client.GetJSON(context.Background(), client.BaseURL()+"/x", &out))

	assert.Equal(t, "sessionid=sess; csrftoken=csrf", got.Get("Cookie"))
	assert.Equal(t, "csrf", got.Get("X-CSRFToken"))
	assert.Equal(t, "936619743392459", got.Get("X-IG-App-ID"))
	assert.NotEmpty(t, got.Get("User-Agent"))
}

func TestClientStatusMapping(t *testing.T) {
	tests := []struct {
		status   int
		expected errs.ErrorType
	}{
		{http.StatusUnauthorized, errs.ErrorTypeAuth},
		{http.StatusForbidden, errs.ErrorTypeAuth},
		{http.StatusNotFound, errs.ErrorTypeNotFound},
		{http.StatusTooManyRequests, errs.ErrorTypeRateLimit},
		{http.StatusBadGateway, errs.ErrorTypeServerError},
		{http.StatusTeapot, errs.ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			var out map[string]interface{}
			err := client.GetJSON(context.Background(), client.BaseURL()+"/x", &out)
			require.Error(t, err)
			assert.Equal(t, tt.expected, errs.TypeOf(err))
		})
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))

	var out struct{ Status string }
	require.NoError(t, client.GetJSON(context.Background(), client.BaseURL()+"/x", &out))
	assert.Equal(t, "ok", out.Status)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClientDoesNotRetryNotFound(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))

	var out map[string]interface{}
	err := client.GetJSON(context.Background(), client.BaseURL()+"/x", &out)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClientParsingError(t *testing.T) {
	client, log := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{invalid json`))
	}))

	var out map[string]interface{}
	err := client.GetJSON(context.Background(), client.BaseURL()+"/x", &out)
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeParsing, errs.TypeOf(err))
	assert.True(t, log.HasMessage("Failed to parse JSON response"))
}

func TestClientHonorsCancellation(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out map[string]interface{}
	err := client.GetJSON(ctx, client.BaseURL()+"/x", &out)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFriendshipsURL(t *testing.T) {
	assert.Equal(t,
		"https://www.instagram.com/api/v1/friendships/42/followers/?count=50",
		FriendshipsURL(BaseURL, "42", RelationFollowers, "", 0))
	assert.Equal(t,
		"https://www.instagram.com/api/v1/friendships/42/following/?count=200&max_id=abc",
		FriendshipsURL(BaseURL, "42", RelationFollowing, "abc", 1000))
	assert.Equal(t,
		"https://www.instagram.com/api/v1/users/web_profile_info/?username=shop.a",
		ProfileInfoURL(BaseURL, "shop.a"))
}
