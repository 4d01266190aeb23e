/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package util contains utility classes for the graph kernel.

# KernelError

Models a kernel related error. Low-level errors (e.g. from the store) should
be wrapped in a KernelError before they are returned to a client. Errors fall
into three groups:

Usage errors are caused by the caller (invalid token names, using a closed
cursor or transaction, unknown entities) and should never be retried.

Store errors are failures of the committed store. A cursor which encounters
a store error closes itself and reports the error.

Consistency defects are impossible states of a transaction. They are not
returned as errors but raised as assertion panics.

# TokenRegistry

Manages the names of labels, relationship types and property keys. Each name
gets a small integer id assigned on first use. Ids are never renamed or reused.
*/
package util

import (
	"errors"
	"fmt"
)

/*
KernelError is a kernel related error
*/
type KernelError struct {
	Type   error  // Error type (to be used for equal checks)
	Detail string // Details of this error
}

/*
Error returns a human-readable string representation of this error.
*/
func (ke *KernelError) Error() string {
	if ke.Detail != "" {
		return fmt.Sprintf("KernelError: %v (%v)", ke.Type, ke.Detail)
	}

	return fmt.Sprintf("KernelError: %v", ke.Type)
}

/*
Unwrap returns the error type so errors.Is can be used on kernel errors.
*/
func (ke *KernelError) Unwrap() error {
	return ke.Type
}

/*
Usage related error types
*/
var (
	ErrInvalidTokenName      = errors.New("Invalid token name")
	ErrUnknownToken          = errors.New("Unknown token")
	ErrCursorClosed          = errors.New("Cursor is closed")
	ErrTransactionClosed     = errors.New("Transaction is closed")
	ErrEntityNotFound        = errors.New("Entity not found")
	ErrInvalidArgument       = errors.New("Invalid argument")
	ErrIndexNotFound         = errors.New("Index not found")
	ErrIndexQuery            = errors.New("Invalid index query")
	ErrTransactionHasChanges = errors.New("Transaction has changes")
	ErrNodeHasRelationships  = errors.New("Node still has relationships")
	ErrCursorLeak            = errors.New("Cursor was not closed")
)

/*
Store related error types
*/
var (
	ErrOpening  = errors.New("Failed to open graph storage")
	ErrClosing  = errors.New("Failed to close graph storage")
	ErrReadOnly = errors.New("Failed write to readonly storage")
	ErrReading  = errors.New("Could not read graph information")
	ErrWriting  = errors.New("Could not write graph information")
	ErrConflict = errors.New("Conflicting concurrent modification")
)

/*
ConsistencyDefect is the prefix of all assertion messages which report an
impossible transaction state.
*/
const ConsistencyDefect = "Consistency defect"

var usageErrors = []error{ErrInvalidTokenName, ErrUnknownToken, ErrCursorClosed,
	ErrTransactionClosed, ErrEntityNotFound, ErrInvalidArgument, ErrIndexNotFound,
	ErrIndexQuery, ErrTransactionHasChanges, ErrNodeHasRelationships, ErrCursorLeak}

var storeErrors = []error{ErrOpening, ErrClosing, ErrReadOnly, ErrReading,
	ErrWriting, ErrConflict}

/*
IsUsageError checks if a given error was caused by invalid usage.
*/
func IsUsageError(err error) bool {
	return isOneOf(err, usageErrors)
}

/*
IsStoreIOError checks if a given error was caused by the store.
*/
func IsStoreIOError(err error) bool {
	return isOneOf(err, storeErrors)
}

func isOneOf(err error, types []error) bool {
	for _, t := range types {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

/*
ConsistencyMessage builds the assertion message for a consistency defect.
*/
func ConsistencyMessage(format string, args ...interface{}) string {
	return fmt.Sprintf("%v: %v", ConsistencyDefect, fmt.Sprintf(format, args...))
}
