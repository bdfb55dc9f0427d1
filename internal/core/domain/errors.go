package domain

import "errors"

var (
	// ErrInvalidInput is returned when a request carries malformed arguments,
	// like a non positive amount or equal buyer and seller.
	ErrInvalidInput = errors.New("invalid input")
	// ErrTransactionNotFound is returned when no transaction matches the given id.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrTransactionAlreadyExists is returned by a store when adding a
	// transaction whose id is already in use.
	ErrTransactionAlreadyExists = errors.New("transaction already exists")
	// ErrUnauthorized is returned when the actor does not match the party
	// required by the requested operation.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidState is returned when the operation is not legal from the
	// current status of the transaction.
	ErrInvalidState = errors.New("invalid state")
	// ErrVersionConflict is returned by a store when the version of the stored
	// record does not match the expected one.
	ErrVersionConflict = errors.New("version conflict")
)
