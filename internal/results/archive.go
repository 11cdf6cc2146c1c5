package results

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Archive wraps a Store and additionally commits every saved document into
// a local git repository, giving each save an audit trail. Reads pass
// straight through to the inner store.
type Archive struct {
	inner Store
	dir   string
	mu    sync.Mutex
}

func NewArchive(inner Store, dir string) *Archive {
	return &Archive{inner: inner, dir: dir}
}

func (a *Archive) Save(ctx context.Context, filename string, data []byte) error {
	if err := a.inner.Save(ctx, filename, data); err != nil {
		return err
	}
	if err := a.commit(filename, data); err != nil {
		return fmt.Errorf("archive result: %w", err)
	}
	return nil
}

func (a *Archive) FindLatest(ctx context.Context, meeting, coderID string) ([]byte, error) {
	return a.inner.FindLatest(ctx, meeting, coderID)
}

func (a *Archive) List(ctx context.Context, coderID string) ([]FileInfo, error) {
	return a.inner.List(ctx, coderID)
}

func (a *Archive) commit(filename string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	repo, err := a.openOrInit()
	if err != nil {
		return err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	if err := os.WriteFile(filepath.Join(a.dir, filename), data, 0o644); err != nil {
		return fmt.Errorf("write archive copy: %w", err)
	}
	if _, err := worktree.Add(filename); err != nil {
		return fmt.Errorf("git add: %w", err)
	}
	info, ok := ParseFilename(filename)
	if !ok {
		info = FileInfo{CoderID: "unknown"}
	}
	_, err = worktree.Commit(fmt.Sprintf("Save %s", filename), &git.CommitOptions{
		Author: &object.Signature{
			Name:  info.CoderID,
			Email: info.CoderID + "@local.fomcval.dev",
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (a *Archive) openOrInit() (*git.Repository, error) {
	repo, err := git.PlainOpen(a.dir)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open archive repo: %w", err)
	}
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	repo, err = git.PlainInit(a.dir, false)
	if err != nil {
		return nil, fmt.Errorf("init archive repo: %w", err)
	}
	return repo, nil
}
