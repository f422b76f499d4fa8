// Package git performs the version-control side of a repair session with
// go-git: cloning the repository to repair and publishing accumulated fixes
// as a new branch.
//
// Clone failures are classified into typed errors; transient ones (network
// timeouts, rate limits) are retried with the configured backoff policy
// while permanent ones (authentication, missing repository) fail fast.
package git
