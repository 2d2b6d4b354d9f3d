package auth

import (
	"fmt"
	"io"
	"strings"
)

// WriteLoginGuide explains how to copy the session cookies out of a browser
func WriteLoginGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "INSTAGRAM SESSION COOKIES")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Profile and follower lookups need a logged-in session.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "1. Log in at https://www.instagram.com with the account to crawl from")
	fmt.Fprintln(w, "2. Open the developer tools (F12, or Cmd+Option+I on macOS)")
	fmt.Fprintln(w, "3. Application (Chrome) or Storage (Firefox) > Cookies > https://www.instagram.com")
	fmt.Fprintln(w, "4. Copy the values of:")
	fmt.Fprintln(w, "     sessionid   long value containing %3A")
	fmt.Fprintln(w, "     csrftoken   32 characters")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Use a secondary account. Crawling follower lists can get an account")
	fmt.Fprintln(w, "rate limited or challenged. The cookies grant full access to the")
	fmt.Fprintln(w, "account; igleads keeps them in the system keychain or an encrypted file.")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
}
