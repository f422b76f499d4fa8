package git

import (
	stderrors "errors"

	"git.home.luguber.info/inful/selfheal/internal/foundation/errors"
)

// GitError simplifies creating a git-scoped ClassifiedError.
func GitError(message string) *errors.ErrorBuilder {
	return errors.NewError(errors.CategoryGit, message)
}

// ClassifyGitError translates go-git errors (typed or raw) into ClassifiedErrors.
func ClassifyGitError(err error, op string, url string) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.AsClassified(err); ok {
		return err
	}

	typed := classifyRemoteError(op, url, err)
	builder := GitError("git "+op+" failed").
		WithCause(typed).
		WithContext("op", op).
		WithContext("url", redactURL(url))

	switch {
	case stderrors.As(typed, new(*AuthError)):
		builder.WithCategory(errors.CategoryAuth).UserAction()
	case stderrors.As(typed, new(*NotFoundError)):
		builder.WithContext("not_found", true).UserAction()
	case stderrors.As(typed, new(*UnsupportedProtocolError)):
		builder.WithCategory(errors.CategoryConfig)
	case stderrors.As(typed, new(*RateLimitError)):
		builder.WithCategory(errors.CategoryNetwork).RateLimit()
	case stderrors.As(typed, new(*NetworkTimeoutError)):
		builder.WithCategory(errors.CategoryNetwork).Retryable()
	case stderrors.As(typed, new(*RejectedError)):
		builder.WithContext("rejected", true)
	}
	return builder.Build()
}
