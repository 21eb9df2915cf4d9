package gitstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

// ErrOutsideRepository is returned for paths that leave the checkout
var ErrOutsideRepository = errors.New("path is outside the repository")

// TokenSource hands out access tokens for the remote
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Store keeps a shallow checkout of the plugin repository on disk
type Store struct {
	config        Config
	repo          *git.Repository
	worktree      *git.Worktree
	currentCommit string
	mu            sync.RWMutex
	logger        *slog.Logger
}

// Config holds git store configuration
type Config struct {
	RepoURL   string
	Branch    string
	LocalPath string
	// Auth is optional; public repositories are cloned anonymously
	Auth   TokenSource
	Logger *slog.Logger
}

// New creates a new git store instance
func New(cfg Config) (*Store, error) {
	if cfg.RepoURL == "" {
		return nil, errors.New("repo URL is required")
	}
	if cfg.LocalPath == "" {
		return nil, errors.New("local path is required")
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Store{
		config: cfg,
		logger: cfg.Logger,
	}, nil
}

// Clone performs initial repository clone with context timeout
func (s *Store) Clone(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.config.LocalPath), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	// always a clean clone
	if err := os.RemoveAll(s.config.LocalPath); err != nil {
		return fmt.Errorf("failed to clean existing directory: %w", err)
	}

	auth, err := s.getAuth(ctx)
	if err != nil {
		return fmt.Errorf("failed to get auth: %w", err)
	}

	s.logger.Info("cloning repository",
		"url", s.config.RepoURL,
		"branch", s.config.Branch,
		"path", s.config.LocalPath,
		"authenticated", s.config.Auth != nil,
	)

	cloneOpts := &git.CloneOptions{
		URL:           s.config.RepoURL,
		Auth:          auth,
		Depth:         1,
		SingleBranch:  true,
		ReferenceName: plumbing.NewBranchReferenceName(s.config.Branch),
	}

	repo, err := git.PlainCloneContext(ctx, s.config.LocalPath, false, cloneOpts)
	if err != nil {
		return fmt.Errorf("clone failed: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	s.repo = repo
	s.worktree = worktree

	if err := s.updateCurrentCommit(); err != nil {
		return fmt.Errorf("failed to get current commit: %w", err)
	}

	s.logger.Info("clone completed", "commit", s.currentCommit)
	return nil
}

// Update describes the outcome of one pull
type Update struct {
	OldCommit string
	NewCommit string
	// Files lists the paths that differ between the two commits. It is nil
	// when the diff could not be computed.
	Files []string
}

// Changed reports whether the pull moved HEAD
func (u Update) Changed() bool {
	return u.OldCommit != u.NewCommit
}

// Pull fetches the tracked branch and reports which files it changed
func (s *Store) Pull(ctx context.Context) (Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	update := Update{OldCommit: s.currentCommit, NewCommit: s.currentCommit}
	if s.repo == nil {
		return update, errors.New("repository not initialized")
	}

	auth, err := s.getAuth(ctx)
	if err != nil {
		return update, fmt.Errorf("failed to get auth: %w", err)
	}

	err = s.worktree.PullContext(ctx, &git.PullOptions{
		RemoteName:    "origin",
		ReferenceName: plumbing.NewBranchReferenceName(s.config.Branch),
		SingleBranch:  true,
		Auth:          auth,
		Force:         true,
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return update, nil
	}
	if err != nil {
		return update, fmt.Errorf("pull failed: %w", err)
	}

	if err := s.updateCurrentCommit(); err != nil {
		return update, fmt.Errorf("failed to update commit: %w", err)
	}
	update.NewCommit = s.currentCommit
	if !update.Changed() {
		return update, nil
	}

	files, err := s.changedFiles(update.OldCommit, update.NewCommit)
	if err != nil {
		s.logger.Warn("failed to diff commits, treating every file as changed", "error", err)
	} else {
		update.Files = files
	}

	s.logger.Info("repository updated",
		"old_commit", update.OldCommit,
		"new_commit", update.NewCommit,
		"changed_files", len(update.Files),
	)
	return update, nil
}

// changedFiles lists the paths added, removed or modified between two
// commits. Renames contribute both names.
func (s *Store) changedFiles(from, to string) ([]string, error) {
	fromTree, err := s.tree(from)
	if err != nil {
		return nil, err
	}
	toTree, err := s.tree(to)
	if err != nil {
		return nil, err
	}

	changes, err := object.DiffTree(fromTree, toTree)
	if err != nil {
		return nil, fmt.Errorf("failed to diff trees: %w", err)
	}

	files := make([]string, 0, len(changes))
	for _, change := range changes {
		for _, name := range []string{change.From.Name, change.To.Name} {
			if name != "" && !slices.Contains(files, name) {
				files = append(files, name)
			}
		}
	}
	return files, nil
}

func (s *Store) tree(hash string) (*object.Tree, error) {
	commit, err := s.repo.CommitObject(plumbing.NewHash(hash))
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", hash, err)
	}
	return commit.Tree()
}

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// PullWithRetry pulls up to maxRetries times, doubling the wait between
// attempts up to maxBackoff
func (s *Store) PullWithRetry(ctx context.Context, maxRetries int) (Update, error) {
	var lastErr error
	backoff := initialBackoff

	for attempt := 0; attempt < maxRetries; attempt++ {
		update, err := s.Pull(ctx)
		if err == nil {
			return update, nil
		}

		lastErr = err
		s.logger.Warn("pull attempt failed",
			"attempt", attempt+1,
			"max_retries", maxRetries,
			"error", err,
			"next_backoff", backoff,
		)

		select {
		case <-ctx.Done():
			return Update{}, ctx.Err()
		case <-time.After(backoff):
			backoff = min(backoff*2, maxBackoff)
		}
	}

	return Update{}, fmt.Errorf("pull failed after %d retries: %w", maxRetries, lastErr)
}

// ReadFile reads a file of the checkout. Paths must stay inside it.
func (s *Store) ReadFile(path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.repo == nil {
		return nil, errors.New("repository not initialized")
	}
	if !filepath.IsLocal(path) {
		return nil, fmt.Errorf("%w: %s", ErrOutsideRepository, path)
	}

	return os.ReadFile(filepath.Join(s.config.LocalPath, path))
}

// CurrentCommit returns the current HEAD commit SHA
func (s *Store) CurrentCommit() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentCommit
}

// RepoURL returns the configured repository URL
func (s *Store) RepoURL() string {
	return s.config.RepoURL
}

// Branch returns the configured branch
func (s *Store) Branch() string {
	return s.config.Branch
}

// getAuth returns nil for anonymous access. The nil must stay an untyped
// interface value for go-git to skip authentication.
func (s *Store) getAuth(ctx context.Context) (transport.AuthMethod, error) {
	if s.config.Auth == nil {
		return nil, nil
	}
	token, err := s.config.Auth.Token(ctx)
	if err != nil {
		return nil, err
	}

	return &http.BasicAuth{
		Username: "x-access-token",
		Password: token,
	}, nil
}

func (s *Store) updateCurrentCommit() error {
	ref, err := s.repo.Head()
	if err != nil {
		return err
	}
	s.currentCommit = ref.Hash().String()
	return nil
}
