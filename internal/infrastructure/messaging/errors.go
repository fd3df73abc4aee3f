package messaging

import "errors"

// ErrConsumerClosed is returned when a consumer is started after Stop
var ErrConsumerClosed = errors.New("consumer is closed")
