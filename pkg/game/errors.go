package game

import "errors"

var (
	ErrOutOfRange      = errors.New("start number out of range")
	ErrTicketConflict  = errors.New("no allowed")
	ErrSalesClosed     = errors.New("ticket sales closed")
	ErrFieldIncomplete = errors.New("lane space not fully reserved")
	ErrUnauthorized    = errors.New("caller is not the operator")
	ErrRaceNotFound    = errors.New("race not found")
	ErrNotWinner       = errors.New("caller does not occupy the winning lane")
	ErrAlreadyClaimed  = errors.New("prize already claimed")
	ErrOutcomeMismatch = errors.New("finish order does not match seed")
)
