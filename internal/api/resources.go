package api

import (
	"context"
	"errors"
	"strconv"

	"github.com/jlantz/metaci-cli/pkg/models"
)

// ListRepos lists repositories, filtered by owner and/or name
func (c *Client) ListRepos(ctx context.Context, filter Filter) (*models.Page[models.Repository], error) {
	var page models.Page[models.Repository]
	if err := c.do(ctx, Action{ResourceRepos, VerbList}, 0, filter, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetRepo retrieves a repository by id
func (c *Client) GetRepo(ctx context.Context, id int) (*models.Repository, error) {
	var repo models.Repository
	if err := c.do(ctx, Action{ResourceRepos, VerbRead}, id, nil, nil, &repo); err != nil {
		return nil, notFound(err, "Repository", strconv.Itoa(id))
	}
	return &repo, nil
}

// CreateRepo registers a repository
func (c *Client) CreateRepo(ctx context.Context, repo *models.Repository) (*models.Repository, error) {
	var created models.Repository
	if err := c.do(ctx, Action{ResourceRepos, VerbCreate}, 0, nil, repo, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ListBranches lists branches, typically filtered by repo and name
func (c *Client) ListBranches(ctx context.Context, filter Filter) (*models.Page[models.Branch], error) {
	var page models.Page[models.Branch]
	if err := c.do(ctx, Action{ResourceBranches, VerbList}, 0, filter, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// CreateBranch records a branch for a repository
func (c *Client) CreateBranch(ctx context.Context, branch *models.Branch) (*models.Branch, error) {
	var created models.Branch
	if err := c.do(ctx, Action{ResourceBranches, VerbCreate}, 0, nil, branch, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ListPlans lists plans
func (c *Client) ListPlans(ctx context.Context, filter Filter) (*models.Page[models.Plan], error) {
	var page models.Page[models.Plan]
	if err := c.do(ctx, Action{ResourcePlans, VerbList}, 0, filter, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetPlan retrieves a plan by id
func (c *Client) GetPlan(ctx context.Context, id int) (*models.Plan, error) {
	var plan models.Plan
	if err := c.do(ctx, Action{ResourcePlans, VerbRead}, id, nil, nil, &plan); err != nil {
		return nil, notFound(err, "Plan", strconv.Itoa(id))
	}
	return &plan, nil
}

// CreatePlan creates a plan. repoID links it to a repository.
func (c *Client) CreatePlan(ctx context.Context, plan *models.Plan, repoID int) (*models.Plan, error) {
	body := struct {
		*models.Plan
		RepoID int `json:"repo_id,omitempty"`
	}{plan, repoID}

	var created models.Plan
	if err := c.do(ctx, Action{ResourcePlans, VerbCreate}, 0, nil, body, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ListPlanRepos lists plan/repository links
func (c *Client) ListPlanRepos(ctx context.Context, filter Filter) (*models.Page[models.PlanRepo], error) {
	var page models.Page[models.PlanRepo]
	if err := c.do(ctx, Action{ResourcePlanRepos, VerbList}, 0, filter, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// CreatePlanRepo links a plan to a repository
func (c *Client) CreatePlanRepo(ctx context.Context, planID, repoID int) (*models.PlanRepo, error) {
	var created models.PlanRepo
	body := &models.PlanRepo{PlanID: planID, RepoID: repoID}
	if err := c.do(ctx, Action{ResourcePlanRepos, VerbCreate}, 0, nil, body, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ListOrgs lists orgs
func (c *Client) ListOrgs(ctx context.Context, filter Filter) (*models.Page[models.Org], error) {
	var page models.Page[models.Org]
	if err := c.do(ctx, Action{ResourceOrgs, VerbList}, 0, filter, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetOrg retrieves an org by id
func (c *Client) GetOrg(ctx context.Context, id int) (*models.Org, error) {
	var org models.Org
	if err := c.do(ctx, Action{ResourceOrgs, VerbRead}, id, nil, nil, &org); err != nil {
		return nil, notFound(err, "Org", strconv.Itoa(id))
	}
	return &org, nil
}

// CreateOrg creates an org
func (c *Client) CreateOrg(ctx context.Context, org *models.Org) (*models.Org, error) {
	var created models.Org
	if err := c.do(ctx, Action{ResourceOrgs, VerbCreate}, 0, nil, org, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ListBuilds lists builds
func (c *Client) ListBuilds(ctx context.Context, filter Filter) (*models.Page[models.Build], error) {
	var page models.Page[models.Build]
	if err := c.do(ctx, Action{ResourceBuilds, VerbList}, 0, filter, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetBuild retrieves a build by id
func (c *Client) GetBuild(ctx context.Context, id int) (*models.Build, error) {
	var build models.Build
	if err := c.do(ctx, Action{ResourceBuilds, VerbRead}, id, nil, nil, &build); err != nil {
		return nil, notFound(err, "Build", strconv.Itoa(id))
	}
	return &build, nil
}

// CreateBuild queues a build
func (c *Client) CreateBuild(ctx context.Context, req *models.BuildRequest) (*models.Build, error) {
	var created models.Build
	if err := c.do(ctx, Action{ResourceBuilds, VerbCreate}, 0, nil, req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ListServices lists services
func (c *Client) ListServices(ctx context.Context, filter Filter) (*models.Page[models.Service], error) {
	var page models.Page[models.Service]
	if err := c.do(ctx, Action{ResourceServices, VerbList}, 0, filter, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetService retrieves a service by id
func (c *Client) GetService(ctx context.Context, id int) (*models.Service, error) {
	var service models.Service
	if err := c.do(ctx, Action{ResourceServices, VerbRead}, id, nil, nil, &service); err != nil {
		return nil, notFound(err, "Service", strconv.Itoa(id))
	}
	return &service, nil
}

// CreateService creates a service
func (c *Client) CreateService(ctx context.Context, service *models.Service) (*models.Service, error) {
	var created models.Service
	if err := c.do(ctx, Action{ResourceServices, VerbCreate}, 0, nil, service, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// notFound names the missing object on 404s from detail routes
func notFound(err error, resource, id string) error {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		nf.Resource = resource
		nf.Identifier = id
	}
	return err
}
