package domain

import "context"

// BrowserSession is an isolated, authenticated browser session capable of
// executing upload stages. Sessions live for exactly one job attempt.
type BrowserSession interface {
	// Context returns the session's browser context
	Context() context.Context
}

// BrowserRuntime creates and destroys browser sessions. Acquire failures are
// treated as transient at job granularity.
type BrowserRuntime interface {
	// Acquire creates a fresh session and applies the account's stored
	// authentication token set
	Acquire(ctx context.Context, account *Account) (BrowserSession, error)

	// Release tears the session down; it must be called on every exit path
	Release(session BrowserSession)
}

// StageExecutor performs one upload stage against a live session. Failures
// are reported through the outcome enum, never as errors, so retry and
// classification logic stays a pure decision table. detail carries the
// failure description for the job record.
type StageExecutor interface {
	RunStage(ctx context.Context, session BrowserSession, stage Stage, job *VideoJob) (outcome StageOutcome, detail string)
}
