// CLAUDE:SUMMARY Sentinel errors for the board service: session lifecycle and configuration faults.
package board

import "errors"

// ErrAlreadyRunning is returned by Start when a watch session is active.
var ErrAlreadyRunning = errors.New("board: watch session already running")

// ErrNotRunning is returned by session controls when no session is active.
var ErrNotRunning = errors.New("board: no watch session running")

// ErrNotAuthenticated is returned when the board page has logged the
// watcher out. Call SetAuthenticated(true) after logging back in.
var ErrNotAuthenticated = errors.New("board: page is logged out")

// ErrInvalidConfig is returned when configuration fails validation.
var ErrInvalidConfig = errors.New("board: invalid configuration")
