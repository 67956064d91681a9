package notify

import "errors"

// ErrChannelDisabled is returned by Send on a channel that is not configured.
var ErrChannelDisabled = errors.New("channel is disabled")

// ErrInvalidRecord is returned by Send for a nil record.
var ErrInvalidRecord = errors.New("invalid dispatch record")

// ErrNoRecipients is returned by the Telegram channel when nobody is subscribed.
var ErrNoRecipients = errors.New("no recipients configured")
