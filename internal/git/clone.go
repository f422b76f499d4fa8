package git

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"git.home.luguber.info/inful/selfheal/internal/logfields"
	"git.home.luguber.info/inful/selfheal/internal/retry"
)

// Cloner fetches the repository a session repairs.
type Cloner struct {
	auth   transport.AuthMethod
	policy retry.Policy
	wait   func(context.Context, time.Duration) error
}

// NewCloner returns a cloner using auth (may be nil) and the retry policy.
func NewCloner(auth transport.AuthMethod, policy retry.Policy) *Cloner {
	return &Cloner{auth: auth, policy: policy, wait: retry.Wait}
}

// Clone clones repoURL into dest (which must not exist) and returns the
// checked out commit hash. depth <= 0 means a full clone.
func (c *Cloner) Clone(ctx context.Context, repoURL, dest string, depth int) (string, error) {
	var head string
	err := withRetry(ctx, c.policy, c.wait, "clone", redactURL(repoURL), func() error {
		h, err := c.cloneOnce(ctx, repoURL, dest, depth)
		if err != nil {
			return err
		}
		head = h
		return nil
	})
	if err != nil {
		return "", ClassifyGitError(err, "clone", repoURL)
	}
	return head, nil
}

func (c *Cloner) cloneOnce(ctx context.Context, repoURL, dest string, depth int) (string, error) {
	// A failed attempt may leave a partial checkout behind.
	if err := os.RemoveAll(dest); err != nil {
		return "", err
	}
	opts := &git.CloneOptions{URL: repoURL, Auth: c.auth}
	if depth > 0 {
		opts.Depth = depth
	}
	slog.Debug("Cloning repository", logfields.URL(redactURL(repoURL)), logfields.Path(dest))
	repo, err := git.PlainCloneContext(ctx, dest, false, opts)
	if err != nil {
		return "", classifyRemoteError("clone", redactURL(repoURL), err)
	}
	ref, err := repo.Head()
	if err != nil {
		slog.Info("Repository cloned", logfields.URL(redactURL(repoURL)), logfields.Path(dest))
		return "", nil
	}
	slog.Info("Repository cloned", logfields.URL(redactURL(repoURL)), logfields.Commit(short(ref.Hash().String())), logfields.Path(dest))
	return ref.Hash().String(), nil
}

// redactURL removes credentials embedded in a remote URL.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = nil
	return u.String()
}

func short(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
