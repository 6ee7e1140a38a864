package batch

import (
	"github.com/devraulu/rjmeta/pkg/dlsite"
	"github.com/devraulu/rjmeta/pkg/provider"
)

// Result is one name's resolution outcome. The session's memo is
// settled by the time a Result is emitted, so mapped-field accessors
// stay cheap for whoever consumes it.
type Result struct {
	Query     string
	Session   *provider.Session
	Listing   *dlsite.Listing
	CoverPath string
	Err       error
}
