package service

import "errors"

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidInput  = errors.New("invalid input")
	ErrRateLimited   = errors.New("too many requests, try again later")
	ErrNotReviewable = errors.New("only completed bookings can be reviewed")
)
