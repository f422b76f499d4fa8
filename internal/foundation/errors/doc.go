// Package errors provides the classified error type used across selfheal.
//
// A ClassifiedError carries a category, a severity and a retry strategy so
// that callers can decide how to react (advance a backend chain, stop a
// session, pick an exit code) without parsing messages.
//
// Example usage:
//
//	err := errors.WrapError(cause, errors.CategoryProvider, "fix request failed").
//		Retryable().
//		WithContext("provider", "gemini:gemini-2.0-flash").
//		Build()
package errors
