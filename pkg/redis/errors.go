package redis

import "errors"

var (
	ErrFailedToParseURL  = errors.New("failed to parse redis connection url")
	ErrNotReady          = errors.New("redis connection is not ready")
	ErrHealthcheckFailed = errors.New("redis healthcheck failed")
)
