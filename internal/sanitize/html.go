// Package sanitize strips HTML markup from text scraped out of source
// pages, so a malformed or hostile upstream page can't inject markup into
// API responses built from facility names and addresses.
package sanitize

import (
	"github.com/microcosm-cc/bluemonday"
)

// StrictPolicy removes all HTML tags and attributes.
// Use for fields that should only contain plain text (facility names, addresses).
var StrictPolicy = bluemonday.StrictPolicy()

// Text strips all HTML tags and returns plain text.
func Text(input string) string {
	return StrictPolicy.Sanitize(input)
}
