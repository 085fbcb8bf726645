package commands

import (
	"context"
	"strings"

	"github.com/jlantz/metaci-cli/internal/api"
	"github.com/jlantz/metaci-cli/pkg/models"
)

const repoFlagHelp = "Specify the repo in format OwnerName/RepoName"

// ParseRepoQualifier splits OwnerName/RepoName. Anything other than
// exactly two non-empty segments is rejected.
func ParseRepoQualifier(s string) (string, string, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", usageErrorf("--repo must use the format OwnerName/RepoName, got %q", s)
	}
	return parts[0], parts[1], nil
}

// repoLookup controls how resolveRepo treats a missing repository
type repoLookup struct {
	// Required turns every miss into an error
	Required bool
	// Quiet suppresses the filtering notices list commands print
	Quiet bool
}

// resolveRepo finds the repository a command operates on.
//
// An explicit qualifier must be well formed and must exist. Without one
// the local project's repository is used; if the server does not know it
// the command either fails (Required) or runs unfiltered with a notice.
// A nil repository with a nil error means "no filter".
func (a *App) resolveRepo(ctx context.Context, client MetaCI, qualifier string, opts repoLookup) (*models.Repository, error) {
	if qualifier != "" {
		owner, name, err := ParseRepoQualifier(qualifier)
		if err != nil {
			return nil, err
		}
		repo, err := findRepo(ctx, client, owner, name)
		if err != nil {
			return nil, err
		}
		if repo == nil {
			return nil, &api.NotFoundError{
				Resource:   "Repository",
				Identifier: qualifier,
				Hint:       "Use metaci repo add to add the repository",
			}
		}
		a.filterNotice(repo, opts)
		return repo, nil
	}

	proj, err := a.Project()
	if err != nil {
		return nil, err
	}
	if !proj.HasRepo() {
		if opts.Required {
			return nil, usageErrorf("No repository specified.  You can use --repo OwnerName/RepoName or change directory into a local git repository configured for CumulusCI.")
		}
		return nil, nil
	}

	repo, err := findRepo(ctx, client, proj.RepoOwner, proj.RepoName)
	if err != nil {
		return nil, err
	}
	if repo == nil {
		if opts.Required {
			return nil, usageErrorf("You are in a CumulusCI project but the repository %s is not yet configured in MetaCI.  Use metaci repo add to add the repo.  You can also use --repo OwnerName/RepoName to manually specify a repository.", proj.Qualifier())
		}
		if !opts.Quiet {
			a.Out.Printf("Failed to find repository %s in MetaCI.  Showing all repositories instead.\n", proj.Qualifier())
		}
		return nil, nil
	}
	a.filterNotice(repo, opts)
	return repo, nil
}

func (a *App) filterNotice(repo *models.Repository, opts repoLookup) {
	if opts.Required || opts.Quiet {
		return
	}
	a.Out.Printf("Filtering on repository %s\n", repo.FullName())
	a.Out.Println()
}

func findRepo(ctx context.Context, client MetaCI, owner, name string) (*models.Repository, error) {
	res, err := client.ListRepos(ctx, api.Filter{"owner": owner, "name": name})
	if err != nil {
		return nil, err
	}
	if len(res.Results) == 0 {
		return nil, nil
	}
	return &res.Results[0], nil
}

// repoFilter returns the list filter for an optional repository
func repoFilter(repo *models.Repository) api.Filter {
	if repo == nil {
		return api.Filter{}
	}
	return api.Filter{"repo": itoa(repo.ID)}
}
