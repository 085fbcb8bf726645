package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"gopkg.in/yaml.v3"
)

// StandardFlows are the flows every CumulusCI project inherits
var StandardFlows = []string{
	"ci_beta",
	"ci_feature",
	"ci_master",
	"ci_release",
	"dev_org",
	"dev_org_namespaced",
	"install_beta",
	"install_prod",
	"qa_org",
	"release_beta",
	"release_production",
	"unmanaged_ee",
}

// Context is the local project a command runs in
type Context struct {
	Root          string
	Name          string
	RepoOwner     string
	RepoName      string
	RepoURL       string
	Branch        string
	DefaultBranch string
	Flows         []string
}

// HasRepo reports whether owner and name were detected
func (c *Context) HasRepo() bool {
	return c != nil && c.RepoOwner != "" && c.RepoName != ""
}

// Qualifier returns OwnerName/RepoName
func (c *Context) Qualifier() string {
	return c.RepoOwner + "/" + c.RepoName
}

// cumulusciFile is the subset of cumulusci.yml the CLI reads
type cumulusciFile struct {
	Project struct {
		Name string `yaml:"name"`
		Git  struct {
			DefaultBranch string `yaml:"default_branch"`
			RepoURL       string `yaml:"repo_url"`
		} `yaml:"git"`
	} `yaml:"project"`
	Flows map[string]yaml.Node `yaml:"flows"`
}

// Detect finds the project enclosing dir. It returns nil without error
// when dir is not inside a git repository with a configFile at its root.
func Detect(dir, configFile string) (*Context, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to open worktree: %w", err)
	}
	root := wt.Filesystem.Root()

	data, err := os.ReadFile(filepath.Join(root, configFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", configFile, err)
	}

	ctx, err := parseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("config error in %s: %w", configFile, err)
	}
	ctx.Root = root

	if ctx.RepoURL == "" {
		if remote, err := repo.Remote("origin"); err == nil && len(remote.Config().URLs) > 0 {
			ctx.RepoURL = remote.Config().URLs[0]
		}
	}
	if ctx.RepoURL != "" {
		if owner, name, err := ParseRemoteURL(ctx.RepoURL); err == nil {
			ctx.RepoOwner, ctx.RepoName = owner, name
		}
	}

	if head, err := repo.Head(); err == nil && head.Name().IsBranch() {
		ctx.Branch = head.Name().Short()
	}

	return ctx, nil
}

func parseConfig(data []byte) (*Context, error) {
	var file cumulusciFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	ctx := &Context{
		Name:          file.Project.Name,
		DefaultBranch: file.Project.Git.DefaultBranch,
		RepoURL:       file.Project.Git.RepoURL,
	}
	if ctx.DefaultBranch == "" {
		ctx.DefaultBranch = "master"
	}

	seen := map[string]bool{}
	for _, f := range StandardFlows {
		seen[f] = true
	}
	for f := range file.Flows {
		seen[f] = true
	}
	for f := range seen {
		ctx.Flows = append(ctx.Flows, f)
	}
	sort.Strings(ctx.Flows)

	return ctx, nil
}

// ParseRemoteURL extracts owner and repository name from a git remote in
// https, ssh or scp form.
func ParseRemoteURL(remote string) (string, string, error) {
	ep, err := transport.NewEndpoint(remote)
	if err != nil {
		return "", "", fmt.Errorf("invalid remote url %q: %w", remote, err)
	}

	path := strings.Trim(ep.Path, "/")
	path = strings.TrimSuffix(path, ".git")
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[len(parts)-2] == "" || parts[len(parts)-1] == "" {
		return "", "", fmt.Errorf("remote url %q does not name an owner and repository", remote)
	}
	return parts[len(parts)-2], parts[len(parts)-1], nil
}
