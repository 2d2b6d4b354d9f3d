// Package instagram fetches profiles and follow lists from Instagram.
//
// ProfileFetcher reads the web_profile_info endpoint and caches user ids for
// GraphExpander, which pages the followers and following lists. PageFetcher
// parses the public profile HTML and is used as a fallback through
// FallbackFetcher when the API refuses a request.
//
// All calls go through Client, which waits on a token bucket before every
// request and retries network, rate limit and server errors:
//
//	client := instagram.NewClient(cfg.Instagram, cfg.RateLimit, log)
//	profiles := instagram.NewProfileFetcher(client, log)
//	expander := instagram.NewGraphExpander(client, profiles, cfg.Instagram.MaxNeighbors, log)
//
//	rec, err := profiles.Fetch(ctx, "shopa")
package instagram
