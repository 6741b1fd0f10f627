package testutil

import (
	"net/http"
	"time"

	id "secutoken/pkg/domain"
	"secutoken/pkg/requestcontext"
)

// WithCaller adds an authenticated wallet to the request context.
// This simulates what the auth middleware would do for authenticated requests.
// An unparseable address leaves the request anonymous.
func WithCaller(req *http.Request, wallet string) *http.Request {
	addr, err := id.ParseAddress(wallet)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithCaller(req.Context(), addr))
}

// WithTime pins the request clock.
func WithTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}

// WithCallerAt combines WithCaller and WithTime, the usual state for a
// mutation under test.
func WithCallerAt(req *http.Request, wallet string, now time.Time) *http.Request {
	return WithTime(WithCaller(req, wallet), now)
}
