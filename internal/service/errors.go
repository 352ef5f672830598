package service

import "errors"

// Business-rule failures. Not-found conditions come from the repository
// package sentinels and are passed through wrapped.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrForbidden          = errors.New("forbidden")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrNoSelection        = errors.New("no items selected for checkout")
	ErrCartBusy           = errors.New("cart is being modified, try again")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)
