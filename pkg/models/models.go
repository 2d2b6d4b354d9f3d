package models

import "time"

// Category is the business type assigned to a relevant profile
type Category string

const (
	CategoryRetailer    Category = "Retailer"
	CategoryReseller    Category = "Reseller"
	CategoryDistributor Category = "Distributor"
	CategoryRepairShop  Category = "RepairShop"
	CategoryUnknown     Category = "Unknown"
)

// Categories lists every category in classification priority order, Unknown last
var Categories = []Category{
	CategoryRepairShop,
	CategoryDistributor,
	CategoryReseller,
	CategoryRetailer,
	CategoryUnknown,
}

// ParseCategory maps a case-insensitive name to a Category
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if equalFold(string(c), s) {
			return c, true
		}
	}
	return CategoryUnknown, false
}

// ProfileRecord is the best-effort result of fetching one account.
// Any field other than Handle may be empty. Records are passed by value and
// never modified once a fetcher returns them.
type ProfileRecord struct {
	Handle        Handle `json:"handle"`
	UserID        string `json:"user_id,omitempty"`
	DisplayName   string `json:"display_name,omitempty"`
	Bio           string `json:"bio,omitempty"`
	ExternalLink  string `json:"external_link,omitempty"`
	FollowerCount *int   `json:"follower_count,omitempty"`
	ProfileURL    string `json:"profile_url,omitempty"`
}

// Followers returns the follower count and whether it is known
func (p ProfileRecord) Followers() (int, bool) {
	if p.FollowerCount == nil {
		return 0, false
	}
	return *p.FollowerCount, true
}

// ContactInfo holds contact details extracted from profile text. Empty means absent.
type ContactInfo struct {
	WhatsAppNumber    string `json:"whatsapp_number,omitempty"`
	WhatsAppGroupLink string `json:"whatsapp_group_link,omitempty"`
}

// IsEmpty reports whether no contact detail was found
func (c ContactInfo) IsEmpty() bool {
	return c.WhatsAppNumber == "" && c.WhatsAppGroupLink == ""
}

// ClassifiedLead is the unit written to a result sink. It is built once per
// relevant handle and never updated afterward.
type ClassifiedLead struct {
	Handle        Handle      `json:"handle"`
	DisplayName   string      `json:"display_name,omitempty"`
	Bio           string      `json:"bio,omitempty"`
	Contact       ContactInfo `json:"contact"`
	Category      Category    `json:"category"`
	Region        string      `json:"region,omitempty"`
	FollowerCount *int        `json:"follower_count,omitempty"`
	ProfileURL    string      `json:"profile_url,omitempty"`
	ExternalLink  string      `json:"external_link,omitempty"`
	Depth         int         `json:"depth"`
	DiscoveredAt  time.Time   `json:"discovered_at"`
}
