package calendar

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/conorfennell/wristreminder/internal/domain"
	"github.com/conorfennell/wristreminder/internal/gitsource"
)

// GitFeed reads every *.ics file from a git repository, cloning it on first
// use and pulling on later fetches.
type GitFeed struct {
	name string
	url  string
	dir  string
	auth transport.AuthMethod
	loc  *time.Location
}

// NewGitFeed creates a feed whose checkout lives under reposDir.
func NewGitFeed(name, repoURL, reposDir string, auth transport.AuthMethod, loc *time.Location) (*GitFeed, error) {
	dir, err := gitsource.LocalPath(reposDir, repoURL)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	return &GitFeed{name: name, url: repoURL, dir: dir, auth: auth, loc: loc}, nil
}

func (g *GitFeed) Name() string {
	return g.name
}

// ListEvents syncs the checkout and parses each calendar file in it.
func (g *GitFeed) ListEvents(ctx context.Context, w Window) (Result, error) {
	if err := os.MkdirAll(filepath.Dir(g.dir), 0o755); err != nil {
		return Result{}, fmt.Errorf("calendar source %s: failed to create repos directory: %w", g.name, err)
	}
	if err := gitsource.Sync(ctx, g.url, g.dir, g.auth); err != nil {
		return Result{}, g.syncError(ctx, err)
	}

	var res Result
	walkErr := filepath.WalkDir(g.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".ics") {
			return nil
		}

		body, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		fileRes, err := Parse(body, w, g.loc)
		if err != nil {
			slog.Warn("Skipping unreadable calendar file", "source", g.name, "path", path, "error", err)
			res.Skipped++
			return nil
		}
		res.Events = append(res.Events, fileRes.Events...)
		res.Skipped += fileRes.Skipped
		return nil
	})
	if walkErr != nil {
		return Result{}, fmt.Errorf("calendar source %s: failed to read checkout: %w", g.name, walkErr)
	}
	return res, nil
}

func (g *GitFeed) syncError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, gitsource.ErrAuth):
		return &domain.AuthError{Source: g.name, RecoveryURL: g.url, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("calendar source %s: %w: %v", g.name, domain.ErrTimeout, err)
	case ctx.Err() != nil:
		return fmt.Errorf("calendar source %s: %w", g.name, ctx.Err())
	default:
		return fmt.Errorf("calendar source %s: %w: %v", g.name, domain.ErrNetworkUnavailable, err)
	}
}
