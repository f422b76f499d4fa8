package repair

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/selfheal/internal/analyzer"
	"git.home.luguber.info/inful/selfheal/internal/build"
	"git.home.luguber.info/inful/selfheal/internal/git"
	"git.home.luguber.info/inful/selfheal/internal/provider"
	"git.home.luguber.info/inful/selfheal/internal/workspace"
)

const (
	appDir     = "broken-app"
	pageFile   = "broken-app/app/page.tsx"
	layoutFile = "broken-app/app/layout.tsx"
	brokenMark = "BROKEN"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

// markerBuild fails while any watched file contains brokenMark and quotes
// that file in a colored diagnostic line.
type markerBuild struct {
	root  string
	files []string
	runs  int
}

func (b *markerBuild) Run(_ context.Context, _ string) build.Result {
	b.runs++
	for _, rel := range b.files {
		data, err := os.ReadFile(filepath.Join(b.root, filepath.FromSlash(rel)))
		if err != nil {
			return build.Result{ExitCode: 1, Output: err.Error()}
		}
		if strings.Contains(string(data), brokenMark) {
			logPath := "./" + strings.TrimPrefix(rel, appDir+"/")
			return build.Result{
				ExitCode: 1,
				Output:   "> next build\n\x1b[31mFailed to compile.\x1b[0m\n" + logPath + ":5:1: Unexpected token\n",
				Duration: time.Millisecond,
			}
		}
	}
	return build.Result{ExitCode: 0, Output: "Compiled successfully\n", Duration: time.Millisecond}
}

// scriptedBackend answers with the next scripted response per call.
type scriptedBackend struct {
	mu        sync.Mutex
	name      string
	responses []string
	err       error
	calls     int
}

func (b *scriptedBackend) Name() string { return b.name }

func (b *scriptedBackend) AttemptFix(_ context.Context, _ provider.Request) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.err != nil {
		return "", b.err
	}
	if len(b.responses) == 0 {
		return "", errors.New("script exhausted")
	}
	r := b.responses[0]
	b.responses = b.responses[1:]
	return r, nil
}

func noWait(context.Context, time.Duration) error { return nil }

func chainOf(backends ...provider.Backend) *provider.Chain {
	return provider.NewChain(backends, provider.WithWait(noWait))
}

type recordingPublisher struct {
	calls   int
	exclude []string
	res     git.PublishResult
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, exclude ...string) (git.PublishResult, error) {
	p.calls++
	p.exclude = exclude
	return p.res, p.err
}

type harness struct {
	root    string
	runner  *markerBuild
	backend *scriptedBackend
	pub     *recordingPublisher
}

func newHarness(t *testing.T, files map[string]string, responses ...string) *harness {
	t.Helper()
	root := t.TempDir()
	var watched []string
	for _, rel := range []string{pageFile, layoutFile} {
		if content, ok := files[rel]; ok {
			writeFile(t, root, rel, content)
			watched = append(watched, rel)
		}
	}
	return &harness{
		root:    root,
		runner:  &markerBuild{root: root, files: watched},
		backend: &scriptedBackend{name: "fake:model", responses: responses},
		pub:     &recordingPublisher{res: git.PublishResult{Branch: "auto-fix-1", Commit: "abc", Remote: "origin"}},
	}
}

func (h *harness) deps(pub Publisher) Deps {
	return Deps{
		Runner:    h.runner,
		Analyzer:  analyzer.New(analyzer.Tree{Root: h.root, AppDir: appDir}),
		Fixer:     chainOf(h.backend),
		Files:     workspace.NewPatcher(h.root),
		Publisher: pub,
	}
}

func defaultOptions() Options {
	return Options{MaxRetries: 5, BuildCommand: "npm run build", RejectRepeated: true, PublishEnabled: true}
}

func (h *harness) loop(opts Options, observers ...Observer) *Loop {
	l := NewLoop(opts, h.deps(h.pub), observers...)
	l.newID = func() string { return "session-1" }
	return l
}

// gitRemote turns root into a repository with one commit and a bare origin.
func gitRemote(t *testing.T, root string) string {
	t.Helper()
	bare := filepath.Join(t.TempDir(), "remote.git")
	_, err := gogit.PlainInit(bare, true)
	require.NoError(t, err)

	repo, err := gogit.PlainInit(root, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.AddWithOptions(&gogit.AddOptions{All: true}))
	sig := &object.Signature{Name: "dev", Email: "dev@example.com", When: time.Unix(1600000000, 0)}
	_, err = wt.Commit("initial", &gogit.CommitOptions{Author: sig, Committer: sig})
	require.NoError(t, err)
	_, err = repo.CreateRemote(&ggitcfg.RemoteConfig{Name: "origin", URLs: []string{bare}})
	require.NoError(t, err)
	return bare
}

func gitPublisher(root string) *git.Publisher {
	return git.NewPublisher(root, git.PublishOptions{
		BranchPrefix:  "auto-fix",
		CommitMessage: "Fix: Auto-repaired build errors",
		AuthorName:    "Self-Healing Agent",
		AuthorEmail:   "selfheal-agent@example.com",
		Now:           func() time.Time { return time.Unix(1700000000, 0) },
	})
}
