// Package snapshot keeps a git-backed audit history of catalog entities.
// Every approved contribution commits the post-apply entity record, so the
// full review trail of an entity can be walked commit by commit.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"curator/api/internal/store"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const snapshotFile = "entity.json"

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// EnsureEntityRepo initializes the per-entity repository with a baseline
// commit. Safe to call when the repository already exists.
func (s *Service) EnsureEntityRepo(entityType, entityID string, baseline map[string]any, author string) error {
	lock := s.entityLock(entityType, entityID)
	lock.Lock()
	defer lock.Unlock()

	path := s.repoPath(entityType, entityID)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat repo path: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create repo dir: %w", err)
	}
	repo, err := git.PlainInit(path, false)
	if err != nil {
		return fmt.Errorf("init repo: %w", err)
	}

	hash, err := writeAndCommit(repo, path, baseline, author, "Import entity baseline")
	if err != nil {
		return err
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("main"), hash)); err != nil {
		return fmt.Errorf("set main branch ref: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return fmt.Errorf("set HEAD to main: %w", err)
	}
	return nil
}

// CommitSnapshot records the current entity state. Called after a
// contribution is approved and the entity row is updated.
func (s *Service) CommitSnapshot(entityType, entityID string, data map[string]any, author, message string) (store.SnapshotInfo, error) {
	lock := s.entityLock(entityType, entityID)
	lock.Lock()
	defer lock.Unlock()

	path := s.repoPath(entityType, entityID)
	repo, err := git.PlainOpen(path)
	if err != nil {
		return store.SnapshotInfo{}, fmt.Errorf("open repo: %w", err)
	}

	hash, err := writeAndCommit(repo, path, data, author, message)
	if err != nil {
		return store.SnapshotInfo{}, err
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return store.SnapshotInfo{}, fmt.Errorf("read commit object: %w", err)
	}
	return toSnapshotInfo(commitObj), nil
}

// History lists snapshots newest first, up to limit (0 = all).
func (s *Service) History(entityType, entityID string, limit int) ([]store.SnapshotInfo, error) {
	lock := s.entityLock(entityType, entityID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(entityType, entityID))
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName("main"), true)
	if err != nil {
		return nil, fmt.Errorf("resolve main: %w", err)
	}
	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]store.SnapshotInfo, 0, limit)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toSnapshotInfo(commitObj))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// GetSnapshot reads the entity state recorded at a commit.
func (s *Service) GetSnapshot(entityType, entityID, hash string) (map[string]any, error) {
	lock := s.entityLock(entityType, entityID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(entityType, entityID))
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return nil, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	commitObj, err := repo.CommitObject(*resolved)
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", hash, err)
	}

	file, err := commitObj.File(snapshotFile)
	if err != nil {
		return nil, fmt.Errorf("load %s from commit: %w", snapshotFile, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return nil, fmt.Errorf("open snapshot reader: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read snapshot bytes: %w", err)
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return data, nil
}

func (s *Service) repoPath(entityType, entityID string) string {
	return filepath.Join(s.baseDir, entityType, entityID)
}

func (s *Service) entityLock(entityType, entityID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	key := entityType + "/" + entityID
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

func writeAndCommit(repo *git.Repository, path string, data map[string]any, author, message string) (plumbing.Hash, error) {
	worktree, err := repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("open worktree: %w", err)
	}

	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(filepath.Join(path, snapshotFile), append(payload, '\n'), 0o644); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("write snapshot: %w", err)
	}
	if _, err := worktree.Add(snapshotFile); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("git add snapshot: %w", err)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@local.curator.dev", sanitizeEmail(author)),
			When:  time.Now(),
		},
	})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("commit snapshot: %w", err)
	}
	return hash, nil
}

func toSnapshotInfo(commitObj *object.Commit) store.SnapshotInfo {
	return store.SnapshotInfo{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			out = append(out, r)
		case r == ' ' || r == '-' || r == '_':
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}
