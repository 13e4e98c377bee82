package utils

import (
	"time"
)

// Token and session time constants
const (
	// DownloadTokenTTL is the validity window of an emailed download link (24 hours)
	DownloadTokenTTL = 24 * time.Hour

	// DownloadTokenBytes is the amount of random data behind a download token (256 bits)
	DownloadTokenBytes = 32

	// AdminSessionTTL is the lifetime of the admin session cookie (24 hours)
	AdminSessionTTL = 24 * time.Hour

	// AdminSessionCookie is the name of the cookie carrying the admin session token
	AdminSessionCookie = "admin-token"
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Request handling constants
const (
	// RequestTimeout bounds a single API operation
	RequestTimeout = 30 * time.Second
)
