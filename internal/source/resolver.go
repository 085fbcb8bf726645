package source

import (
	"context"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/rs/zerolog"
)

// BranchNotFoundError is returned when the remote has no such branch
type BranchNotFoundError struct {
	RepoURL string
	Branch  string
}

func (e BranchNotFoundError) Error() string {
	return fmt.Sprintf("branch %s not found in %s", e.Branch, e.RepoURL)
}

// Resolver looks up branch heads on the source hosting service
type Resolver struct {
	auth   transport.AuthMethod
	logger zerolog.Logger
}

// NewResolver creates a resolver. username and password may be empty for
// public repositories.
func NewResolver(username, password string, logger zerolog.Logger) *Resolver {
	r := &Resolver{logger: logger.With().Str("component", "source-resolver").Logger()}
	if username != "" || password != "" {
		r.auth = &http.BasicAuth{Username: username, Password: password}
	}
	return r
}

// HeadCommit returns the commit SHA at the head of branch on repoURL
func (r *Resolver) HeadCommit(ctx context.Context, repoURL, branch string) (string, error) {
	remote := git.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: "origin",
		URLs: []string{repoURL},
	})

	refs, err := remote.ListContext(ctx, &git.ListOptions{Auth: r.auth})
	if err != nil {
		return "", fmt.Errorf("failed to list refs for %s: %w", repoURL, err)
	}

	want := plumbing.NewBranchReferenceName(branch)
	for _, ref := range refs {
		if ref.Name() == want {
			r.logger.Debug().
				Str("repo_url", repoURL).
				Str("branch", branch).
				Str("commit", ref.Hash().String()).
				Msg("Resolved branch head")
			return ref.Hash().String(), nil
		}
	}

	return "", BranchNotFoundError{RepoURL: repoURL, Branch: branch}
}
