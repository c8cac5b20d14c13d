// Package gitfetch implements the repository fetcher port with the git CLI.
// Each fetch produces a shallow-history-free working copy in a temporary
// directory that the caller releases when the pipeline finishes.
package gitfetch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hackeval/repograder/internal/core"
)

// Options configures the fetcher.
type Options struct {
	// BaseDir is where working copies are created. Defaults to the system
	// temp directory.
	BaseDir string
	// GitPath is the git binary to invoke. Defaults to "git" on PATH.
	GitPath string
	Logger  *slog.Logger
}

// Fetcher clones repositories with the git CLI.
type Fetcher struct {
	baseDir string
	gitPath string
	logger  *slog.Logger
}

// New constructs a Fetcher.
func New(opts Options) *Fetcher {
	baseDir := opts.BaseDir
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	gitPath := opts.GitPath
	if gitPath == "" {
		gitPath = "git"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{baseDir: baseDir, gitPath: gitPath, logger: logger}
}

// Fetch clones repoURL into a fresh directory. The clone keeps full history
// because the forensics stage needs the complete commit timeline. Context
// cancellation kills the git process.
func (f *Fetcher) Fetch(ctx context.Context, repoURL string) (*core.Checkout, error) {
	dir, err := os.MkdirTemp(f.baseDir, "repograder-*")
	if err != nil {
		return nil, fmt.Errorf("create workspace dir: %w", err)
	}

	target := filepath.Join(dir, "repo")
	cmd := exec.CommandContext(ctx, f.gitPath, "clone", "--quiet", "--", repoURL, target)
	// Never let git prompt for credentials on a private or missing repo.
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	out, err := cmd.CombinedOutput()
	if err != nil {
		removeErr := os.RemoveAll(dir)
		if removeErr != nil {
			f.logger.WarnContext(ctx, "cleanup failed clone dir", "dir", dir, "error", removeErr)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("git clone %s: %w: %s", repoURL, err, firstLine(out))
	}

	f.logger.InfoContext(ctx, "repository cloned", "repo_url", repoURL, "path", target)
	return &core.Checkout{
		Path: target,
		Release: func() error {
			return os.RemoveAll(dir)
		},
	}, nil
}

var _ core.RepoFetcher = (*Fetcher)(nil)

func firstLine(out []byte) string {
	text := strings.TrimSpace(string(out))
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return text
}
