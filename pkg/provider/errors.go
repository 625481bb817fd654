package provider

import "errors"

// Fetch failure taxonomy. Callers classify with errors.Is; everything
// else is treated as a generic fetch failure.
var (
	// ErrMissingExecutable means the provider CLI could not be located
	// anywhere on the resolution chain.
	ErrMissingExecutable = errors.New("executable not found")

	// ErrLaunchFailed means the CLI was found but could not be started.
	ErrLaunchFailed = errors.New("subprocess launch failed")

	// ErrSubprocessTimeout means the CLI did not finish within the
	// fetch deadline and was killed.
	ErrSubprocessTimeout = errors.New("subprocess timed out")

	// ErrMalformedOutput means the CLI exited zero but its stdout was
	// not the expected JSON.
	ErrMalformedOutput = errors.New("malformed output")

	// ErrNetwork is a transport-level failure talking to a web source.
	ErrNetwork = errors.New("network failure")

	// ErrLoginRequired means the web source rejected the session and a
	// fresh cookie import is needed.
	ErrLoginRequired = errors.New("login required")

	// ErrAccountMismatch means the web source is signed in as a
	// different account than the one being polled.
	ErrAccountMismatch = errors.New("signed-in account mismatch")

	// ErrNoData means the web source answered but carried no usable
	// dashboard payload.
	ErrNoData = errors.New("no dashboard data")

	// ErrCreditsNotReady is the provider's "usage data not ready yet"
	// answer. It is non-fatal: show cached data or a neutral loading
	// message, never an error.
	ErrCreditsNotReady = errors.New("credits not ready")
)
