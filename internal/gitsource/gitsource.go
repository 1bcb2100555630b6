package gitsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// ErrAuth is returned when the remote rejects the supplied credentials or
// requires some.
var ErrAuth = errors.New("git authentication failed")

// BasicAuth returns HTTP credentials for a token-protected remote, or nil
// when no token is configured.
func BasicAuth(username, token string) transport.AuthMethod {
	if token == "" {
		return nil
	}
	if username == "" {
		// Most forges accept any non-empty user name alongside a token.
		username = "git"
	}
	return &githttp.BasicAuth{Username: username, Password: token}
}

// Sync clones a git repository if it doesn't exist at the given path,
// or pulls the latest changes if it does.
func Sync(ctx context.Context, repoURL, localPath string, auth transport.AuthMethod) error {
	_, err := os.Stat(localPath)
	if os.IsNotExist(err) {
		slog.Info("Cloning repository", "url", repoURL, "path", localPath)
		_, err := git.PlainCloneContext(ctx, localPath, false, &git.CloneOptions{
			URL:  repoURL,
			Auth: auth,
		})
		if err != nil {
			os.RemoveAll(localPath)
			return fmt.Errorf("failed to clone repo %s: %w", repoURL, classify(err))
		}
		slog.Info("Clone successful", "path", localPath)
		return nil
	} else if err != nil {
		return fmt.Errorf("error checking path %s: %w", localPath, err)
	}

	slog.Info("Pulling latest changes", "path", localPath)
	repo, err := git.PlainOpen(localPath)
	if err != nil {
		return fmt.Errorf("failed to open existing repo at %s: %w", localPath, err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree for repo at %s: %w", localPath, err)
	}

	err = worktree.PullContext(ctx, &git.PullOptions{
		RemoteName: "origin",
		Auth:       auth,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to pull changes for repo at %s: %w", localPath, classify(err))
	}
	slog.Info("Pull successful (or already up-to-date)", "path", localPath)
	return nil
}

func classify(err error) error {
	if errors.Is(err, transport.ErrAuthenticationRequired) || errors.Is(err, transport.ErrAuthorizationFailed) {
		return fmt.Errorf("%w: %v", ErrAuth, err)
	}
	return err
}

// LocalPath maps a repository URL to a checkout directory under baseDir.
// https URLs map to <host>/<path>, scp-style ssh URLs to <host>/<repo> and
// plain filesystem paths to local/<name>.
func LocalPath(baseDir, repoURL string) (string, error) {
	parsedURL, err := url.Parse(repoURL)
	if err == nil && (parsedURL.Scheme == "https" || parsedURL.Scheme == "http") {
		sanitizedPath := strings.TrimSuffix(parsedURL.Path, ".git")
		return filepath.Join(baseDir, parsedURL.Host, sanitizedPath), nil
	}

	if strings.Contains(repoURL, "@") {
		parts := strings.Split(repoURL, ":")
		if len(parts) == 2 {
			hostAndUser := strings.Split(parts[0], "@")
			if len(hostAndUser) == 2 {
				host := hostAndUser[1]
				repoPath := strings.TrimSuffix(parts[1], ".git")
				return filepath.Join(baseDir, host, repoPath), nil
			}
		}
	}

	if filepath.IsAbs(repoURL) {
		name := strings.TrimSuffix(filepath.Base(repoURL), ".git")
		return filepath.Join(baseDir, "local", name), nil
	}
	return "", fmt.Errorf("could not parse git URL: %s", repoURL)
}
