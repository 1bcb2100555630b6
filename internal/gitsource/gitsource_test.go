package gitsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func TestLocalPath(t *testing.T) {
	testCases := []struct {
		name     string
		url      string
		expected string
		wantErr  bool
	}{
		{"https", "https://github.com/me/calendars.git", filepath.Join("repos", "github.com", "me", "calendars"), false},
		{"scp style", "git@github.com:me/calendars.git", filepath.Join("repos", "github.com", "me", "calendars"), false},
		{"absolute path", "/srv/git/family.git", filepath.Join("repos", "local", "family"), false},
		{"garbage", "not a url", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := LocalPath("repos", tc.url)
			if tc.wantErr {
				if err == nil {
					t.Errorf("Expected an error for %q", tc.url)
				}
				return
			}
			if err != nil {
				t.Fatalf("LocalPath failed: %v", err)
			}
			if got != tc.expected {
				t.Errorf("Expected %q, but got %q", tc.expected, got)
			}
		})
	}
}

func TestBasicAuth(t *testing.T) {
	if BasicAuth("", "") != nil {
		t.Error("Expected no auth without a token")
	}
	if BasicAuth("", "secret") == nil {
		t.Error("Expected auth when a token is set")
	}
}

// initRepo creates a repository with one committed file and returns its path.
func initRepo(t *testing.T, file, content string) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("Failed to init repo: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Failed to get worktree: %v", err)
	}
	if _, err := wt.Add(file); err != nil {
		t.Fatalf("Failed to add file: %v", err)
	}
	_, err = wt.Commit("add "+file, &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}
	return dir
}

func TestSyncClonesThenPulls(t *testing.T) {
	src := initRepo(t, "hello.txt", "hi")
	dst := filepath.Join(t.TempDir(), "checkout")
	ctx := context.Background()

	if err := Sync(ctx, src, dst, nil); err != nil {
		t.Fatalf("Clone failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "hello.txt")); err != nil {
		t.Errorf("Expected cloned file to exist: %v", err)
	}

	// A second sync with nothing new upstream is not an error.
	if err := Sync(ctx, src, dst, nil); err != nil {
		t.Errorf("Pull failed: %v", err)
	}
}
