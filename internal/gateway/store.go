package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v62/github"
	"github.com/sirupsen/logrus"
)

var (
	// ErrFileNotFound reports that the dataset file does not exist on the
	// target branch. Callers recover by starting from an empty dataset.
	ErrFileNotFound = errors.New("file not found on branch")

	// ErrBranchNotFound reports that a branch reference does not resolve.
	ErrBranchNotFound = errors.New("branch not found")
)

// Store is the narrow contract behind which the git object mechanics stay
// isolated: read a file from a branch, guarantee a branch exists, and
// publish a new file snapshot as a commit. Any append-structured storage
// backend could satisfy it without touching the upsert/backfill logic.
type Store interface {
	ReadFile(ctx context.Context, branch, path string) ([]byte, error)
	EnsureBranch(ctx context.Context, branch string) error
	Publish(ctx context.Context, branch, path string, content []byte, message string) (string, error)
}

// GitHubStore implements Store against one GitHub repository using the
// low-level Git data API (refs, commits, trees, blobs).
type GitHubStore struct {
	client *github.Client
	owner  string
	repo   string
	logger *logrus.Entry
}

// NewGitHubStore creates a Store bound to the given storage repository.
func NewGitHubStore(httpClient *http.Client, owner, repo string, logger *logrus.Entry) *GitHubStore {
	return &GitHubStore{
		client: github.NewClient(httpClient),
		owner:  owner,
		repo:   repo,
		logger: logger,
	}
}

// ReadFile fetches the content of path at the tip of branch.
// A missing file (or a missing branch) yields ErrFileNotFound; any other
// failure (auth, rate limit, network) propagates.
func (s *GitHubStore) ReadFile(ctx context.Context, branch, path string) ([]byte, error) {
	file, _, _, err := s.client.Repositories.GetContents(ctx, s.owner, s.repo, path, &github.RepositoryContentGetOptions{Ref: branch})
	if isNotFound(err) {
		return nil, fmt.Errorf("%s@%s: %w", path, branch, ErrFileNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from branch %s: %w", path, branch, err)
	}
	if file == nil {
		return nil, fmt.Errorf("%s is a directory, not a file", path)
	}
	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("failed to decode content of %s: %w", path, err)
	}
	return []byte(content), nil
}

// EnsureBranch guarantees that branch exists, creating it from the storage
// repository's default branch head if absent. Idempotent: running it
// against an existing branch is a no-op.
func (s *GitHubStore) EnsureBranch(ctx context.Context, branch string) error {
	_, _, err := s.client.Git.GetRef(ctx, s.owner, s.repo, "heads/"+branch)
	if err == nil {
		s.logger.WithField("branch", branch).Debug("branch already exists")
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("failed to resolve branch %s: %w", branch, err)
	}

	repo, _, err := s.client.Repositories.Get(ctx, s.owner, s.repo)
	if err != nil {
		return fmt.Errorf("failed to read storage repository: %w", err)
	}
	base, _, err := s.client.Git.GetRef(ctx, s.owner, s.repo, "heads/"+repo.GetDefaultBranch())
	if err != nil {
		return fmt.Errorf("failed to resolve base branch %s: %w", repo.GetDefaultBranch(), err)
	}

	_, _, err = s.client.Git.CreateRef(ctx, s.owner, s.repo, &github.Reference{
		Ref:    github.String("refs/heads/" + branch),
		Object: &github.GitObject{SHA: base.Object.SHA},
	})
	if err != nil {
		return fmt.Errorf("failed to create branch %s: %w", branch, err)
	}
	s.logger.WithFields(logrus.Fields{
		"branch": branch,
		"base":   repo.GetDefaultBranch(),
		"sha":    base.Object.GetSHA(),
	}).Info("branch created")
	return nil
}

// Publish commits a new snapshot of a single file to the tip of branch and
// returns the new commit SHA. The sequence is blob -> tree -> commit -> ref
// update; only the final ref update mutates anything visible, so a failure
// partway leaves the branch untouched. No optimistic retry is attempted if
// a concurrent writer races the ref update.
func (s *GitHubStore) Publish(ctx context.Context, branch, path string, content []byte, message string) (string, error) {
	head, _, err := s.client.Git.GetRef(ctx, s.owner, s.repo, "heads/"+branch)
	if isNotFound(err) {
		return "", fmt.Errorf("%s: %w", branch, ErrBranchNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve branch %s: %w", branch, err)
	}
	headSHA := head.Object.GetSHA()

	parent, _, err := s.client.Git.GetCommit(ctx, s.owner, s.repo, headSHA)
	if err != nil {
		return "", fmt.Errorf("failed to read head commit %s: %w", headSHA, err)
	}

	blob, _, err := s.client.Git.CreateBlob(ctx, s.owner, s.repo, &github.Blob{
		Content:  github.String(string(content)),
		Encoding: github.String("utf-8"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create blob: %w", err)
	}

	tree, _, err := s.client.Git.CreateTree(ctx, s.owner, s.repo, parent.Tree.GetSHA(), []*github.TreeEntry{
		{
			Path: github.String(path),
			Mode: github.String("100644"),
			Type: github.String("blob"),
			SHA:  blob.SHA,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create tree: %w", err)
	}

	commit, _, err := s.client.Git.CreateCommit(ctx, s.owner, s.repo, &github.Commit{
		Message: github.String(message),
		Tree:    tree,
		Parents: []*github.Commit{{SHA: github.String(headSHA)}},
	}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create commit: %w", err)
	}

	_, _, err = s.client.Git.UpdateRef(ctx, s.owner, s.repo, &github.Reference{
		Ref:    github.String("refs/heads/" + branch),
		Object: &github.GitObject{SHA: commit.SHA},
	}, false)
	if err != nil {
		return "", fmt.Errorf("failed to update branch %s: %w", branch, err)
	}

	s.logger.WithFields(logrus.Fields{
		"branch": branch,
		"path":   path,
		"sha":    commit.GetSHA(),
	}).Info("dataset published")
	return commit.GetSHA(), nil
}

// isNotFound reports whether err is a GitHub 404 response.
func isNotFound(err error) bool {
	var ghErr *github.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
}
