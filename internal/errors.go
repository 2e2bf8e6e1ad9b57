package internal

import "github.com/go-faster/errors"

var (
	ErrLoginIsAlreadyTaken = errors.New("login is already taken")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")

	ErrInvalidRequest   = errors.New("invalid request")
	ErrEmptyOrder       = errors.Errorf("%w: order has no items", ErrInvalidRequest)
	ErrInvalidBookID    = errors.Errorf("%w: book id must be positive", ErrInvalidRequest)
	ErrInvalidQuantity  = errors.Errorf("%w: quantity must be positive", ErrInvalidRequest)
	ErrQuantityTooLarge = errors.Errorf("%w: quantity is too large", ErrInvalidRequest)
	ErrInvalidPrice     = errors.Errorf("%w: unit price must not be negative", ErrInvalidRequest)
	ErrInvalidSchedule  = errors.Errorf("%w: announcement ends before it starts", ErrInvalidRequest)
	ErrEmptyTitle       = errors.Errorf("%w: announcement title is required", ErrInvalidRequest)

	ErrOrderNotFound   = errors.New("order not found")
	ErrOrderNotPending = errors.New("order is not pending")
	ErrClaimCodeTaken  = errors.New("claim code is already taken")
	ErrNoRecords       = errors.New("no records")
)
