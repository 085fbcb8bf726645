package api

import (
	"fmt"
	"net/http"
)

// Resource names a MetaCI REST resource
type Resource string

const (
	ResourceRepos     Resource = "repos"
	ResourceBranches  Resource = "branches"
	ResourcePlans     Resource = "plans"
	ResourcePlanRepos Resource = "plan_repos"
	ResourceOrgs      Resource = "orgs"
	ResourceBuilds    Resource = "builds"
	ResourceServices  Resource = "services"
)

// Verb names an operation on a resource
type Verb string

const (
	VerbList   Verb = "list"
	VerbRead   Verb = "read"
	VerbCreate Verb = "create"
)

// Action is one (resource, verb) pair the server exposes
type Action struct {
	Resource Resource
	Verb     Verb
}

func (a Action) String() string {
	return string(a.Resource) + "." + string(a.Verb)
}

type route struct {
	method string
	// detail routes take an object id
	detail bool
}

// actions is the fixed surface of the MetaCI API
var actions = map[Action]route{
	{ResourceRepos, VerbList}:       {http.MethodGet, false},
	{ResourceRepos, VerbRead}:       {http.MethodGet, true},
	{ResourceRepos, VerbCreate}:     {http.MethodPost, false},
	{ResourceBranches, VerbList}:    {http.MethodGet, false},
	{ResourceBranches, VerbCreate}:  {http.MethodPost, false},
	{ResourcePlans, VerbList}:       {http.MethodGet, false},
	{ResourcePlans, VerbRead}:       {http.MethodGet, true},
	{ResourcePlans, VerbCreate}:     {http.MethodPost, false},
	{ResourcePlanRepos, VerbList}:   {http.MethodGet, false},
	{ResourcePlanRepos, VerbCreate}: {http.MethodPost, false},
	{ResourceOrgs, VerbList}:        {http.MethodGet, false},
	{ResourceOrgs, VerbRead}:        {http.MethodGet, true},
	{ResourceOrgs, VerbCreate}:      {http.MethodPost, false},
	{ResourceBuilds, VerbList}:      {http.MethodGet, false},
	{ResourceBuilds, VerbRead}:      {http.MethodGet, true},
	{ResourceBuilds, VerbCreate}:    {http.MethodPost, false},
	{ResourceServices, VerbList}:    {http.MethodGet, false},
	{ResourceServices, VerbRead}:    {http.MethodGet, true},
	{ResourceServices, VerbCreate}:  {http.MethodPost, false},
}

// path returns the method and API path for an action
func (a Action) path(id int) (string, string, error) {
	r, ok := actions[a]
	if !ok {
		return "", "", fmt.Errorf("unsupported action %s", a)
	}
	if r.detail {
		return r.method, fmt.Sprintf("/api/%s/%d/", a.Resource, id), nil
	}
	return r.method, fmt.Sprintf("/api/%s/", a.Resource), nil
}
