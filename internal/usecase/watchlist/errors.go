// Package watchlist provides use cases for managing the operator's watch titles.
package watchlist

import "errors"

// ErrTitleRequired indicates that a blank watch title was given.
var ErrTitleRequired = errors.New("watch title is required")
