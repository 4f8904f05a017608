package models

import (
	"net/http"
	"time"
)

// EndpointClass groups routes that share a request budget.
type EndpointClass string

const (
	// ClassRead covers GET requests: listings, detail views and downloads.
	ClassRead EndpointClass = "read"
	// ClassWrite covers every mutation, uploads included.
	ClassWrite EndpointClass = "write"
)

// ClassFor picks the class from the HTTP method.
func ClassFor(method string) EndpointClass {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return ClassRead
	default:
		return ClassWrite
	}
}

// Limit is the budget of one class: Requests per Window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// RateLimitResult represents the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds, only set when not allowed
}
