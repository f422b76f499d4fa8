package repair

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/selfheal/internal/build"
	"git.home.luguber.info/inful/selfheal/internal/config"
	ferrors "git.home.luguber.info/inful/selfheal/internal/foundation/errors"
)

const fixedPage = "export default function Page() { return null }"

func TestRun_FirstBuildPassesSkipsPublish(t *testing.T) {
	h := newHarness(t, map[string]string{pageFile: "export default 1\n"})

	s, err := h.loop(defaultOptions()).Run(context.Background(), TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, StateStable, s.State)
	assert.False(t, s.FixesApplied())
	assert.Equal(t, 1, s.BuildRuns)
	assert.Nil(t, s.Publish)
	assert.Equal(t, 0, h.pub.calls)
	assert.Equal(t, 0, h.backend.calls)
	assert.Equal(t, ExitStable, s.ExitCode())
	assert.Contains(t, s.Message(), "no repair was needed")
	assert.Equal(t, "session-1", s.ID)
}

func TestRun_OneFixThenPassPublishesBranch(t *testing.T) {
	h := newHarness(t, map[string]string{pageFile: "export default (" + brokenMark + "\n"},
		"```tsx\n"+fixedPage+"\n```")
	bare := gitRemote(t, h.root)

	l := NewLoop(defaultOptions(), h.deps(gitPublisher(h.root)))
	s, err := l.Run(context.Background(), TriggerManual)
	require.NoError(t, err)

	require.Equal(t, StateStable, s.State, s.Message())
	assert.Equal(t, 2, s.BuildRuns)
	require.Len(t, s.Attempts, 1)
	a := s.Attempts[0]
	assert.Equal(t, 1, a.Index)
	assert.Equal(t, pageFile, a.TargetFile)
	assert.Equal(t, "fake:model", a.Provider)
	assert.Equal(t, fixedPage+"\n", a.FixedContent)
	assert.Equal(t, fixedPage+"\n", readFile(t, h.root, pageFile))

	require.NotNil(t, s.Publish)
	require.NoError(t, s.Publish.Err)
	assert.Equal(t, "auto-fix-1700000000", s.Publish.Branch)
	assert.Equal(t, ExitStable, s.ExitCode())

	remote, err := gogit.PlainOpen(bare)
	require.NoError(t, err)
	refs, err := remote.References()
	require.NoError(t, err)
	var branches []string
	require.NoError(t, refs.ForEach(func(r *plumbing.Reference) error {
		if r.Name().IsBranch() {
			branches = append(branches, r.Name().Short())
		}
		return nil
	}))
	assert.Equal(t, []string{"auto-fix-1700000000"}, branches)
}

func TestRun_KFixesAreAllPublished(t *testing.T) {
	h := newHarness(t, map[string]string{
		pageFile:   "export default (" + brokenMark + "\n",
		layoutFile: "export const x = " + brokenMark + "\n",
	}, fixedPage, "export const x = 1")
	bare := gitRemote(t, h.root)

	s, err := NewLoop(defaultOptions(), h.deps(gitPublisher(h.root))).Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	require.Equal(t, StateStable, s.State, s.Message())
	require.Len(t, s.Attempts, 2)
	assert.Equal(t, []string{pageFile, layoutFile}, s.Files())
	assert.Equal(t, 3, s.BuildRuns)

	remote, err := gogit.PlainOpen(bare)
	require.NoError(t, err)
	ref, err := remote.Reference(plumbing.NewBranchReferenceName(s.Publish.Branch), true)
	require.NoError(t, err)
	commit, err := remote.CommitObject(ref.Hash())
	require.NoError(t, err)
	assert.Equal(t, 1, commit.NumParents(), "all fixes land in one commit")
	for rel, want := range map[string]string{pageFile: fixedPage + "\n", layoutFile: "export const x = 1\n"} {
		f, err := commit.File(rel)
		require.NoError(t, err)
		got, err := f.Contents()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestRun_NeverExceedsMaxRetriesBuilds(t *testing.T) {
	for _, maxRetries := range []int{1, 3, 5} {
		responses := make([]string, 0, maxRetries)
		for i := range maxRetries {
			responses = append(responses, brokenMark+" variant "+string(rune('a'+i)))
		}
		h := newHarness(t, map[string]string{pageFile: brokenMark + "\n"}, responses...)
		opts := defaultOptions()
		opts.MaxRetries = maxRetries

		s, err := h.loop(opts).Run(context.Background(), TriggerManual)
		require.NoError(t, err)
		assert.Equal(t, StateFailedMaxRetries, s.State)
		assert.Equal(t, maxRetries, h.runner.runs)
		assert.Equal(t, maxRetries, s.BuildRuns)
		assert.LessOrEqual(t, len(s.Attempts), maxRetries)
		assert.Equal(t, 0, h.pub.calls)
		assert.Equal(t, ExitFailed, s.ExitCode())
	}
}

func TestRun_AllBackendsFailLeavesFileUntouched(t *testing.T) {
	original := "export default (" + brokenMark + "\n"
	h := newHarness(t, map[string]string{pageFile: original})
	failing := &scriptedBackend{name: "a:model", err: errors.New("quota exceeded")}
	other := &scriptedBackend{name: "b:model", err: errors.New("timeout")}
	deps := h.deps(h.pub)
	deps.Fixer = chainOf(failing, other)

	s, err := NewLoop(defaultOptions(), deps).Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, StateFailedNoFix, s.State)
	assert.Equal(t, ReasonNoProvider, s.Reason)
	assert.Equal(t, ExitFailed, s.ExitCode())
	assert.Empty(t, s.Attempts)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, other.calls)
	assert.Equal(t, original, readFile(t, h.root, pageFile))
	assert.Equal(t, 0, h.pub.calls)

	err = s.Err()
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryRepair))
}

func TestRun_NoTargetWritesDebugLog(t *testing.T) {
	root := t.TempDir()
	output := "\x1b[31mError:\x1b[0m cannot find module 'left-pad' in ./src/missing.tsx\n"
	h := &harness{root: root}
	deps := h.deps(nil)
	deps.Runner = runnerFunc(func() build.Result { return build.Result{ExitCode: 2, Output: output} })
	deps.Fixer = chainOf(&scriptedBackend{name: "unused"})

	s, err := NewLoop(defaultOptions(), deps).Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, StateFailedNoTarget, s.State)
	assert.Equal(t, 1, s.BuildRuns)
	assert.Equal(t, filepath.Join(root, "build_failure.log"), s.DebugLogPath)
	assert.Equal(t, output, readFile(t, root, "build_failure.log"))
	assert.Contains(t, s.Message(), "build_failure.log")
}

func TestRun_PublishLeavesArtifactsOutOfCommit(t *testing.T) {
	h := newHarness(t, map[string]string{pageFile: "export default (" + brokenMark + "\n"}, fixedPage)
	bare := gitRemote(t, h.root)
	writeFile(t, h.root, "build_failure.log", "stale output from an earlier session\n")
	writeFile(t, h.root, "shared/deployment_errors.log", "Module not found\n")

	opts := defaultOptions()
	opts.PublishExclude = []string{filepath.Join(h.root, "shared", "deployment_errors.log")}
	s, err := NewLoop(opts, h.deps(gitPublisher(h.root))).Run(context.Background(), TriggerMailbox)
	require.NoError(t, err)
	require.Equal(t, StateStable, s.State, s.Message())
	require.NoError(t, s.Publish.Err)

	remote, err := gogit.PlainOpen(bare)
	require.NoError(t, err)
	ref, err := remote.Reference(plumbing.NewBranchReferenceName(s.Publish.Branch), true)
	require.NoError(t, err)
	commit, err := remote.CommitObject(ref.Hash())
	require.NoError(t, err)
	stats, err := commit.Stats()
	require.NoError(t, err)
	var changed []string
	for _, st := range stats {
		changed = append(changed, st.Name)
	}
	assert.Equal(t, []string{pageFile}, changed)

	assert.Equal(t, "Module not found\n", readFile(t, h.root, "shared/deployment_errors.log"), "artifacts stay in the working tree")
}

func TestRun_PublishExcludesDebugLog(t *testing.T) {
	h := newHarness(t, map[string]string{pageFile: "export default (" + brokenMark + "\n"}, fixedPage)
	opts := defaultOptions()
	opts.PublishExclude = []string{"/srv/shared/deployment_errors.log"}

	s, err := h.loop(opts).Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	require.Equal(t, StateStable, s.State)
	assert.Equal(t, []string{"build_failure.log", "/srv/shared/deployment_errors.log"}, h.pub.exclude)
}

func TestRun_IdempotentReplay(t *testing.T) {
	h := newHarness(t, map[string]string{pageFile: brokenMark + "\n"}, fixedPage, fixedPage)

	first, err := h.loop(defaultOptions()).Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	require.Equal(t, StateStable, first.State)
	require.Len(t, first.Attempts, 1)
	callsAfterFirst := h.backend.calls

	second, err := h.loop(defaultOptions()).Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, StateStable, second.State)
	assert.Empty(t, second.Attempts)
	assert.Equal(t, 1, second.BuildRuns)
	assert.Equal(t, callsAfterFirst, h.backend.calls)
	assert.Equal(t, 1, h.pub.calls, "only the first session published")
}

func TestRun_RejectsRepeatedFix(t *testing.T) {
	t.Run("identical to current content", func(t *testing.T) {
		h := newHarness(t, map[string]string{pageFile: brokenMark + "\n"}, brokenMark)
		s, err := h.loop(defaultOptions()).Run(context.Background(), TriggerManual)
		require.NoError(t, err)
		assert.Equal(t, StateFailedNoFix, s.State)
		assert.Equal(t, ReasonRepeatedFix, s.Reason)
		assert.Empty(t, s.Attempts)
	})

	t.Run("oscillation back to earlier content", func(t *testing.T) {
		h := newHarness(t, map[string]string{pageFile: brokenMark + " A\n"}, brokenMark+" B", brokenMark+" A")
		s, err := h.loop(defaultOptions()).Run(context.Background(), TriggerManual)
		require.NoError(t, err)
		assert.Equal(t, StateFailedNoFix, s.State)
		assert.Equal(t, ReasonRepeatedFix, s.Reason)
		assert.Len(t, s.Attempts, 1)
		assert.Equal(t, brokenMark+" B\n", readFile(t, h.root, pageFile))
	})

	t.Run("guard disabled", func(t *testing.T) {
		h := newHarness(t, map[string]string{pageFile: brokenMark + "\n"}, brokenMark, brokenMark)
		opts := defaultOptions()
		opts.RejectRepeated = false
		opts.MaxRetries = 2
		s, err := h.loop(opts).Run(context.Background(), TriggerManual)
		require.NoError(t, err)
		assert.Equal(t, StateFailedMaxRetries, s.State)
		assert.Len(t, s.Attempts, 2)
	})
}

func TestRun_PublishFailure(t *testing.T) {
	pubErr := errors.New("push rejected")

	t.Run("not fatal by default", func(t *testing.T) {
		h := newHarness(t, map[string]string{pageFile: brokenMark + "\n"}, fixedPage)
		h.pub.err = pubErr
		s, err := h.loop(defaultOptions()).Run(context.Background(), TriggerManual)
		require.NoError(t, err)
		assert.Equal(t, StateStable, s.State)
		require.NotNil(t, s.Publish)
		assert.ErrorIs(t, s.Publish.Err, pubErr)
		assert.Equal(t, ExitStable, s.ExitCode())
		assert.Contains(t, s.Message(), "publish failed")
	})

	t.Run("fail_on_error", func(t *testing.T) {
		h := newHarness(t, map[string]string{pageFile: brokenMark + "\n"}, fixedPage)
		h.pub.err = pubErr
		opts := defaultOptions()
		opts.FailOnPublishError = true
		s, err := h.loop(opts).Run(context.Background(), TriggerManual)
		require.NoError(t, err)
		assert.Equal(t, StateStable, s.State)
		assert.Equal(t, ExitFailed, s.ExitCode())
		assert.Error(t, s.Err())
	})

	t.Run("disabled", func(t *testing.T) {
		h := newHarness(t, map[string]string{pageFile: brokenMark + "\n"}, fixedPage)
		opts := defaultOptions()
		opts.PublishEnabled = false
		s, err := h.loop(opts).Run(context.Background(), TriggerManual)
		require.NoError(t, err)
		assert.Equal(t, StateStable, s.State)
		assert.True(t, s.Publish.Skipped)
		assert.Equal(t, 0, h.pub.calls)
		assert.Equal(t, fixedPage+"\n", readFile(t, h.root, pageFile))
	})
}

func TestRun_Canceled(t *testing.T) {
	h := newHarness(t, map[string]string{pageFile: brokenMark + "\n"}, fixedPage)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, err := h.loop(defaultOptions()).Run(ctx, TriggerManual)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateCanceled, s.State)
	assert.Equal(t, 0, s.BuildRuns)
	assert.Equal(t, ExitCanceled, s.ExitCode())
	assert.True(t, ferrors.HasCategory(s.Err(), ferrors.CategoryRuntime))
}

func TestRun_UnreadableTarget(t *testing.T) {
	h := newHarness(t, map[string]string{pageFile: brokenMark + "\n"}, fixedPage)
	deps := h.deps(h.pub)
	deps.Files = failingFiles{Files: deps.Files}

	s, err := NewLoop(defaultOptions(), deps).Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, StateFailedNoFix, s.State)
	assert.Equal(t, ReasonUnreadable, s.Reason)
	assert.Equal(t, 0, h.backend.calls)
}

func TestOptionsFromConfig_ArtifactPathsAreAbsolute(t *testing.T) {
	cfg := config.Default()
	cfg.Mailbox.Path = "shared/deployment_errors.log"
	cfg.History.Path = ""
	opts := OptionsFromConfig(cfg)
	require.Len(t, opts.PublishExclude, 1)
	assert.True(t, filepath.IsAbs(opts.PublishExclude[0]))
	assert.Equal(t, "deployment_errors.log", filepath.Base(opts.PublishExclude[0]))
}

func TestNewLoop_Defaults(t *testing.T) {
	l := NewLoop(Options{}, Deps{})
	assert.Equal(t, 5, l.Options().MaxRetries)
	assert.Equal(t, "npm run build", l.Options().BuildCommand)
	assert.Equal(t, "build_failure.log", l.Options().DebugLog)
}

type runnerFunc func() build.Result

func (f runnerFunc) Run(context.Context, string) build.Result { return f() }

type failingFiles struct{ Files }

func (failingFiles) Read(string) (string, error) { return "", os.ErrPermission }
