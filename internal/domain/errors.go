package domain

import "errors"

var (
	// ErrCutoffPassed is returned when a full-day ticket is requested for
	// today after the daily cutoff hour.
	ErrCutoffPassed = errors.New("full-day tickets are no longer available for today")

	ErrUnauthorized = errors.New("unauthorized")

	// ErrCapacityExceeded means the visit date cannot take the order's tickets.
	ErrCapacityExceeded = errors.New("not enough places left for the chosen date")

	ErrPaymentDeclined = errors.New("payment declined")

	ErrNotFound = errors.New("not found")

	// ErrOrderConfirmed rejects mutations of an order that has been paid.
	ErrOrderConfirmed = errors.New("order already confirmed")

	// ErrEmptyOrder rejects paying for an order without tickets.
	ErrEmptyOrder = errors.New("order has no tickets")

	ErrInvalidInput = errors.New("invalid input")
)
