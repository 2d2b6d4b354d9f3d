package instagram

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	errs "igleads/pkg/errors"
	"igleads/pkg/logger"
	"igleads/pkg/models"
)

// Fetcher returns a best-effort profile record for a handle
type Fetcher interface {
	Fetch(ctx context.Context, handle models.Handle) (models.ProfileRecord, error)
}

// ProfileFetcher reads profiles from the web_profile_info endpoint. It
// remembers the numeric user id of every profile it fetches so the expander
// does not need a second lookup.
type ProfileFetcher struct {
	client *Client
	logger logger.Logger

	mu  sync.RWMutex
	ids map[models.Handle]string
}

// NewProfileFetcher creates a fetcher on top of client
func NewProfileFetcher(client *Client, log logger.Logger) *ProfileFetcher {
	return &ProfileFetcher{
		client: client,
		logger: logger.OrDefault(log).WithField("component", "profile_fetcher"),
		ids:    make(map[models.Handle]string),
	}
}

// Fetch implements Fetcher
func (f *ProfileFetcher) Fetch(ctx context.Context, handle models.Handle) (models.ProfileRecord, error) {
	user, err := f.fetchUser(ctx, handle)
	if err != nil {
		return models.ProfileRecord{}, errs.NewFetchError(handle.String(), err)
	}

	if user.ID != "" {
		f.mu.Lock()
		f.ids[handle] = user.ID
		f.mu.Unlock()
	}

	rec := models.ProfileRecord{
		Handle:       handle,
		UserID:       user.ID,
		DisplayName:  strings.TrimSpace(user.FullName),
		Bio:          user.Biography,
		ExternalLink: user.ExternalURL,
		ProfileURL:   handle.ProfileURL(),
	}
	count := user.EdgeFollowedBy.Count
	rec.FollowerCount = &count

	f.logger.DebugWithFields("Fetched profile", map[string]interface{}{
		"handle":    handle.String(),
		"followers": count,
		"private":   user.IsPrivate,
	})
	return rec, nil
}

func (f *ProfileFetcher) fetchUser(ctx context.Context, handle models.Handle) (*User, error) {
	var resp ProfileInfoResponse
	if err := f.client.GetJSON(ctx, ProfileInfoURL(f.client.BaseURL(), handle.String()), &resp); err != nil {
		return nil, err
	}
	if resp.RequiresToLogin {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeAuth,
			Message: "Instagram requires authentication to view this profile",
			Code:    http.StatusUnauthorized,
		}
	}
	if resp.Data.User == nil {
		return nil, &errs.Error{Type: errs.ErrorTypeNotFound, Message: "profile has no user data", Code: http.StatusOK}
	}
	return resp.Data.User, nil
}

// UserID returns the numeric id for handle, fetching the profile when it
// has not been seen yet
func (f *ProfileFetcher) UserID(ctx context.Context, handle models.Handle) (string, error) {
	f.mu.RLock()
	id, ok := f.ids[handle]
	f.mu.RUnlock()
	if ok {
		return id, nil
	}

	user, err := f.fetchUser(ctx, handle)
	if err != nil {
		return "", err
	}
	if user.ID == "" {
		return "", &errs.Error{Type: errs.ErrorTypeParsing, Message: "profile has no user id", Code: http.StatusOK}
	}

	f.mu.Lock()
	f.ids[handle] = user.ID
	f.mu.Unlock()
	return user.ID, nil
}

// FallbackFetcher tries each fetcher in order and returns the first success
type FallbackFetcher struct {
	fetchers []Fetcher
	logger   logger.Logger
}

// NewFallbackFetcher creates a fetcher chain
func NewFallbackFetcher(log logger.Logger, fetchers ...Fetcher) *FallbackFetcher {
	return &FallbackFetcher{
		fetchers: fetchers,
		logger:   logger.OrDefault(log).WithField("component", "fallback_fetcher"),
	}
}

// Fetch implements Fetcher
func (f *FallbackFetcher) Fetch(ctx context.Context, handle models.Handle) (models.ProfileRecord, error) {
	var failures []error
	for i, fetcher := range f.fetchers {
		rec, err := fetcher.Fetch(ctx, handle)
		if err == nil {
			return rec, nil
		}
		if ctx.Err() != nil {
			return models.ProfileRecord{}, errs.NewFetchError(handle.String(), ctx.Err())
		}
		failures = append(failures, err)
		if i < len(f.fetchers)-1 {
			f.logger.WithError(err).DebugWithFields("Fetcher failed, trying next", map[string]interface{}{
				"handle": handle.String(),
			})
		}
	}
	if len(failures) == 0 {
		return models.ProfileRecord{}, errs.NewFetchError(handle.String(), errors.New("no fetchers configured"))
	}
	if len(failures) == 1 {
		return models.ProfileRecord{}, failures[0]
	}
	return models.ProfileRecord{}, errs.NewFetchError(handle.String(), errors.Join(failures...))
}
