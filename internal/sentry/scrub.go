// Package sentry scrubs credentials and personal data from Sentry events
// before they leave the process.
package sentry

import (
	"strings"

	"github.com/getsentry/sentry-go"
)

const filtered = "[Filtered]"

// sensitiveHeaders are lower-cased HTTP header names redacted from events.
var sensitiveHeaders = map[string]bool{
	"authorization":   true,
	"cookie":          true,
	"set-cookie":      true,
	"x-real-ip":       true,
	"x-forwarded-for": true,
}

// sensitiveKeys are lower-cased field names that may carry credentials in
// tags, extras or breadcrumb data.
var sensitiveKeys = map[string]bool{
	"password":        true,
	"passwordhash":    true,
	"confirmpassword": true,
	"password_hash":   true,
	"token":           true,
	"secret":          true,
	"jwt":             true,
	"authorization":   true,
	"cookie":          true,
	"commune_session": true,
	"email":           true,
}

func isSensitiveKey(key string) bool {
	return sensitiveKeys[strings.ToLower(key)]
}

// ScrubEvent removes sensitive data from a Sentry event before it is sent.
// Request bodies and cookies are dropped entirely since they may hold
// passwords or message content.
func ScrubEvent(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	if event.Request != nil {
		for header := range event.Request.Headers {
			if sensitiveHeaders[strings.ToLower(header)] {
				event.Request.Headers[header] = filtered
			}
		}
		event.Request.Data = ""
		event.Request.Cookies = ""
	}

	event.User.Email = ""
	event.User.IPAddress = ""

	for key := range event.Tags {
		if isSensitiveKey(key) {
			event.Tags[key] = filtered
		}
	}

	for key := range event.Extra {
		if isSensitiveKey(key) {
			event.Extra[key] = filtered
		}
	}

	for i := range event.Breadcrumbs {
		for key := range event.Breadcrumbs[i].Data {
			if isSensitiveKey(key) {
				event.Breadcrumbs[i].Data[key] = filtered
			}
		}
	}

	return event
}

// ScrubTransaction applies the same scrubbing logic to transaction events.
func ScrubTransaction(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	return ScrubEvent(event, hint)
}
