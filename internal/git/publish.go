package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"git.home.luguber.info/inful/selfheal/internal/logfields"
)

// PublishOptions configures a Publisher.
type PublishOptions struct {
	BranchPrefix  string
	CommitMessage string
	AuthorName    string
	AuthorEmail   string
	Remote        string
	Auth          transport.AuthMethod // nil for local or anonymous remotes
	Now           func() time.Time
}

// PublishResult describes a completed publish.
type PublishResult struct {
	Branch string
	Commit string
	Remote string
}

// Publisher commits the working tree to a new branch and pushes it.
type Publisher struct {
	root string
	opts PublishOptions
}

// NewPublisher returns a publisher for the repository containing root.
func NewPublisher(root string, opts PublishOptions) *Publisher {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Remote == "" {
		opts.Remote = "origin"
	}
	return &Publisher{root: root, opts: opts}
}

// BranchName returns the branch name for a publish happening at t.
func (p *Publisher) BranchName(t time.Time) string {
	return fmt.Sprintf("%s-%d", p.opts.BranchPrefix, t.Unix())
}

// Publish sets the committer identity, creates a uniquely named branch,
// stages every working tree change except the exclude paths, commits once
// and pushes the branch. label is recorded in the commit body. Relative
// exclude paths are resolved against the publisher root.
//
// HEAD stays on the new branch afterwards so the working tree keeps the
// repaired files.
func (p *Publisher) Publish(ctx context.Context, label string, exclude ...string) (PublishResult, error) {
	res := PublishResult{Remote: p.opts.Remote}

	repo, err := git.PlainOpenWithOptions(p.root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return res, ClassifyGitError(err, "open", p.root)
	}

	if err := p.ensureIdentity(repo); err != nil {
		return res, ClassifyGitError(err, "config", p.root)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return res, ClassifyGitError(err, "worktree", p.root)
	}

	res.Branch = p.BranchName(p.opts.Now())
	ref := plumbing.NewBranchReferenceName(res.Branch)
	if err := wt.Checkout(&git.CheckoutOptions{Branch: ref, Create: true, Keep: true}); err != nil {
		return res, ClassifyGitError(err, "checkout", res.Branch)
	}
	slog.Info("Created branch", logfields.Branch(res.Branch))

	staged, err := p.stage(wt, exclude)
	if err != nil {
		return res, ClassifyGitError(err, "add", p.root)
	}
	slog.Debug("Staged changes", logfields.Branch(res.Branch), slog.Int("files", staged))

	sig := &object.Signature{Name: p.opts.AuthorName, Email: p.opts.AuthorEmail, When: p.opts.Now()}
	msg := p.opts.CommitMessage
	if label != "" {
		msg += "\n\nSession: " + label
	}
	hash, err := wt.Commit(msg, &git.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		return res, ClassifyGitError(err, "commit", res.Branch)
	}
	res.Commit = hash.String()
	slog.Info("Committed fixes", logfields.Branch(res.Branch), logfields.Commit(short(res.Commit)))

	remote, err := repo.Remote(p.opts.Remote)
	if err != nil {
		return res, ClassifyGitError(err, "push", p.opts.Remote)
	}
	remoteURL := ""
	if urls := remote.Config().URLs; len(urls) > 0 {
		remoteURL = redactURL(urls[0])
	}

	spec := ggitcfg.RefSpec(fmt.Sprintf("%s:%s", ref, ref))
	err = repo.PushContext(ctx, &git.PushOptions{
		RemoteName: p.opts.Remote,
		RefSpecs:   []ggitcfg.RefSpec{spec},
		Auth:       p.opts.Auth,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		typed, ok := typedRemoteError("push", remoteURL, err)
		if !ok {
			typed = &RejectedError{Op: "push", URL: remoteURL, Branch: res.Branch, Err: err}
		}
		return res, ClassifyGitError(typed, "push", remoteURL)
	}
	slog.Info("Pushed branch", logfields.Branch(res.Branch), logfields.Remote(p.opts.Remote), logfields.URL(remoteURL))
	return res, nil
}

// stage adds every changed path reported by the worktree status, skipping
// excluded paths. It returns the number of staged paths.
func (p *Publisher) stage(wt *git.Worktree, exclude []string) (int, error) {
	status, err := wt.Status()
	if err != nil {
		return 0, err
	}
	skip := p.excludedPaths(wt.Filesystem.Root(), exclude)

	var paths []string
	for path, st := range status {
		if st.Worktree == git.Unmodified {
			continue
		}
		if skip[filepath.ToSlash(path)] {
			slog.Debug("Not staging selfheal artifact", logfields.Path(path))
			continue
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		if _, err := wt.Add(path); err != nil {
			return 0, fmt.Errorf("stage %s: %w", path, err)
		}
	}
	return len(paths), nil
}

// excludedPaths maps exclude entries to slash paths relative to the
// repository root. Entries outside the repository are dropped.
func (p *Publisher) excludedPaths(repoRoot string, exclude []string) map[string]bool {
	skip := make(map[string]bool, len(exclude))
	base := resolvePath(repoRoot)
	for _, e := range exclude {
		if e == "" {
			continue
		}
		abs := e
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(p.root, e)
		}
		rel, err := filepath.Rel(base, resolvePath(abs))
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		skip[filepath.ToSlash(rel)] = true
	}
	return skip
}

// resolvePath returns an absolute path with symlinks in its existing
// parent directory resolved, so temp-dir aliases compare equal.
func resolvePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	dir, file := filepath.Split(abs)
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		return filepath.Join(resolved, file)
	}
	return abs
}

// ensureIdentity writes user.name/user.email to the repository config when
// they differ from the configured identity.
func (p *Publisher) ensureIdentity(repo *git.Repository) error {
	cfg, err := repo.Config()
	if err != nil {
		return err
	}
	if cfg.User.Name == p.opts.AuthorName && cfg.User.Email == p.opts.AuthorEmail {
		return nil
	}
	cfg.User.Name = p.opts.AuthorName
	cfg.User.Email = p.opts.AuthorEmail
	return repo.SetConfig(cfg)
}
