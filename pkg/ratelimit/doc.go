// Package ratelimit paces requests to the upstream profile service.
//
// Two mechanisms work together. A TokenBucket (golang.org/x/time/rate) caps
// the average request rate of the HTTP client. A Pacer inserts the randomized
// pause that follows every fetch and expand call made by the crawler, so the
// request pattern does not look machine-regular.
package ratelimit
