package instagram

import (
	"fmt"
	"net/url"
	"strconv"
)

const (
	// BaseURL is the base URL for Instagram
	BaseURL = "https://www.instagram.com"

	// ProfileEndpoint returns profile data for a username
	ProfileEndpoint = "/api/v1/users/web_profile_info/"

	// FriendshipsEndpoint is the prefix for follower and following lists
	FriendshipsEndpoint = "/api/v1/friendships/"

	// DefaultPageSize is the number of users requested per friendships page
	DefaultPageSize = 50

	// MaxPageSize is the largest page the friendships endpoint accepts
	MaxPageSize = 200
)

// Relation selects one side of the follow graph
type Relation string

const (
	RelationFollowers Relation = "followers"
	RelationFollowing Relation = "following"
)

// ProfileInfoURL constructs the URL for fetching a user's profile
func ProfileInfoURL(base, username string) string {
	params := url.Values{}
	params.Set("username", username)
	return fmt.Sprintf("%s%s?%s", base, ProfileEndpoint, params.Encode())
}

// FriendshipsURL constructs the URL for one page of a user's followers or
// following
func FriendshipsURL(base, userID string, rel Relation, maxID string, count int) string {
	if count <= 0 {
		count = DefaultPageSize
	} else if count > MaxPageSize {
		count = MaxPageSize
	}

	params := url.Values{}
	params.Set("count", strconv.Itoa(count))
	if maxID != "" {
		params.Set("max_id", maxID)
	}
	return fmt.Sprintf("%s%s%s/%s/?%s", base, FriendshipsEndpoint, url.PathEscape(userID), rel, params.Encode())
}

// PublicProfileURL constructs the public profile page URL for a user
func PublicProfileURL(base, username string) string {
	if username == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/", base, username)
}
