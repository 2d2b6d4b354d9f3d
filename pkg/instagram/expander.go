package instagram

import (
	"context"
	"errors"
	"fmt"

	errs "igleads/pkg/errors"
	"igleads/pkg/logger"
	"igleads/pkg/models"
)

// UserIDResolver maps a handle to its numeric user id
type UserIDResolver interface {
	UserID(ctx context.Context, handle models.Handle) (string, error)
}

// GraphExpander lists a profile's followers and following
type GraphExpander struct {
	client       *Client
	ids          UserIDResolver
	maxNeighbors int
	pageSize     int
	logger       logger.Logger
}

// NewGraphExpander creates an expander. maxNeighbors bounds each relation
// separately; zero or less means one page per relation.
func NewGraphExpander(client *Client, ids UserIDResolver, maxNeighbors int, log logger.Logger) *GraphExpander {
	pageSize := DefaultPageSize
	if maxNeighbors > 0 && maxNeighbors < pageSize {
		pageSize = maxNeighbors
	}
	if maxNeighbors <= 0 {
		maxNeighbors = pageSize
	}
	return &GraphExpander{
		client:       client,
		ids:          ids,
		maxNeighbors: maxNeighbors,
		pageSize:     pageSize,
		logger:       logger.OrDefault(log).WithField("component", "graph_expander"),
	}
}

// Expand returns the union of followers and following, in that order, with
// duplicates and the handle itself removed. When only one relation fails the
// other is still returned; the call fails when both do.
func (g *GraphExpander) Expand(ctx context.Context, handle models.Handle) ([]models.Handle, error) {
	userID, err := g.ids.UserID(ctx, handle)
	if err != nil {
		return nil, errs.NewExpandError(handle.String(), fmt.Errorf("resolve user id: %w", err))
	}

	seen := map[models.Handle]bool{handle: true}
	var neighbors []models.Handle
	var failures []error

	for _, rel := range []Relation{RelationFollowers, RelationFollowing} {
		users, err := g.list(ctx, userID, rel)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errs.NewExpandError(handle.String(), ctx.Err())
			}
			failures = append(failures, fmt.Errorf("%s: %w", rel, err))
			g.logger.WithError(err).WarnWithFields("Failed to list relation", map[string]interface{}{
				"handle":   handle.String(),
				"relation": string(rel),
			})
		}
		for _, u := range users {
			h := models.NormalizeHandle(u)
			if h == "" || seen[h] {
				continue
			}
			seen[h] = true
			neighbors = append(neighbors, h)
		}
	}

	if len(failures) == 2 {
		return nil, errs.NewExpandError(handle.String(), errors.Join(failures...))
	}

	g.logger.DebugWithFields("Expanded profile", map[string]interface{}{
		"handle":    handle.String(),
		"neighbors": len(neighbors),
	})
	return neighbors, nil
}

// list pages through one relation until maxNeighbors usernames are collected
// or the cursor runs out. Usernames collected before a failed page are
// returned together with the error.
func (g *GraphExpander) list(ctx context.Context, userID string, rel Relation) ([]string, error) {
	var usernames []string
	cursor := ""
	for len(usernames) < g.maxNeighbors {
		var page FriendshipsResponse
		url := FriendshipsURL(g.client.BaseURL(), userID, rel, cursor, g.pageSize)
		if err := g.client.GetJSON(ctx, url, &page); err != nil {
			return usernames, err
		}
		for _, u := range page.Users {
			if len(usernames) >= g.maxNeighbors {
				break
			}
			usernames = append(usernames, u.Username)
		}
		if page.NextMaxID == "" || len(page.Users) == 0 || string(page.NextMaxID) == cursor {
			break
		}
		cursor = string(page.NextMaxID)
	}
	return usernames, nil
}
