package instagram

import (
	"encoding/json"
	"strconv"
)

// ProfileInfoResponse is the top-level web_profile_info response
type ProfileInfoResponse struct {
	RequiresToLogin bool        `json:"requires_to_login"`
	Data            ProfileData `json:"data"`
	Status          string      `json:"status"`
}

// ProfileData wraps the user in a profile response
type ProfileData struct {
	User *User `json:"user"`
}

// User is the subset of profile fields the crawler uses
type User struct {
	ID                   string `json:"id"`
	Username             string `json:"username"`
	FullName             string `json:"full_name"`
	Biography            string `json:"biography"`
	ExternalURL          string `json:"external_url"`
	IsPrivate            bool   `json:"is_private"`
	IsBusinessAccount    bool   `json:"is_business_account"`
	BusinessCategoryName string `json:"business_category_name"`
	EdgeFollowedBy       Count  `json:"edge_followed_by"`
	EdgeFollow           Count  `json:"edge_follow"`
}

// Count wraps an edge counter
type Count struct {
	Count int `json:"count"`
}

// FriendshipsResponse is one page of followers or following
type FriendshipsResponse struct {
	Users     []FriendUser `json:"users"`
	NextMaxID Cursor       `json:"next_max_id"`
	BigList   bool         `json:"big_list"`
	Status    string       `json:"status"`
}

// FriendUser is an entry in a friendships page
type FriendUser struct {
	PK        json.Number `json:"pk"`
	Username  string      `json:"username"`
	FullName  string      `json:"full_name"`
	IsPrivate bool        `json:"is_private"`
}

// Cursor is a paging token the API sends either as a string or a number
type Cursor string

func (c *Cursor) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*c = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*c = Cursor(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return err
	}
	*c = Cursor(n.String())
	return nil
}
