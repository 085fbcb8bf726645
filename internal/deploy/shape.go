package deploy

import (
	"context"
	"fmt"
	"strings"

	"github.com/jlantz/metaci-cli/internal/heroku"
)

// Shape is a fixed scaling profile for a MetaCI Heroku app
type Shape string

const (
	ShapeDev     Shape = "dev"
	ShapeStaging Shape = "staging"
	ShapeProd    Shape = "prod"
)

// Shapes lists the valid shapes in display order
var Shapes = []Shape{ShapeDev, ShapeStaging, ShapeProd}

// ShapeDescriptions explains each shape for prompts
var ShapeDescriptions = map[Shape]string{
	ShapeDev:     "Runs on free Heroku resources with build concurrency of 1",
	ShapeStaging: "Runs on paid Heroku resources with fixed build concurrency",
	ShapeProd:    "Runs on paid Heroku resources with build concurrency auto-scaled via Hirefire.io (paid add on configured separately)",
}

// Process types of a MetaCI app
const (
	ProcessWeb         = "web"
	ProcessDevWorker   = "dev_worker"
	ProcessWorker      = "worker"
	ProcessWorkerShort = "worker_short"
)

var processes = []string{ProcessWeb, ProcessDevWorker, ProcessWorker, ProcessWorkerShort}

// ParseShape validates a shape name
func ParseShape(s string) (Shape, error) {
	for _, shape := range Shapes {
		if string(shape) == s {
			return shape, nil
		}
	}
	return "", fmt.Errorf("unknown app shape: %s", s)
}

// Plan is the formation a shape resolves to
type Plan struct {
	Shape Shape
	Size  string
	Scale map[string]int
}

// PlanFor resolves shape into a formation. workers only affects staging
// and defaults to 1.
func PlanFor(shape Shape, workers int) (*Plan, error) {
	if workers < 1 {
		workers = 1
	}

	switch shape {
	case ShapeDev:
		return &Plan{Shape: shape, Size: "free", Scale: map[string]int{
			ProcessWeb: 1, ProcessDevWorker: 1, ProcessWorker: 0, ProcessWorkerShort: 0,
		}}, nil
	case ShapeStaging:
		return &Plan{Shape: shape, Size: "standard-1x", Scale: map[string]int{
			ProcessWeb: 1, ProcessDevWorker: 0, ProcessWorker: workers, ProcessWorkerShort: 1,
		}}, nil
	case ShapeProd:
		// Hirefire scales worker up from 0
		return &Plan{Shape: shape, Size: "standard-1x", Scale: map[string]int{
			ProcessWeb: 1, ProcessDevWorker: 0, ProcessWorker: 0, ProcessWorkerShort: 1,
		}}, nil
	default:
		return nil, fmt.Errorf("unknown app shape: %s", shape)
	}
}

// Updates returns the formation updates that apply the plan
func (p *Plan) Updates() []heroku.FormationUpdate {
	updates := make([]heroku.FormationUpdate, 0, len(processes))
	for _, proc := range processes {
		qty := p.Scale[proc]
		updates = append(updates, heroku.FormationUpdate{
			Type:     proc,
			Quantity: &qty,
			Size:     p.Size,
		})
	}
	return updates
}

// Summary renders the scale as web=1 dev_worker=0 ...
func (p *Plan) Summary() string {
	parts := make([]string, 0, len(p.Scale))
	for _, proc := range processes {
		parts = append(parts, fmt.Sprintf("%s=%d", proc, p.Scale[proc]))
	}
	return strings.Join(parts, " ")
}

// FormationUpdater applies formation changes to an app
type FormationUpdater interface {
	BatchUpdateFormation(ctx context.Context, app string, updates []heroku.FormationUpdate) ([]heroku.Formation, error)
}

// ApplyShape resizes and scales every MetaCI process type of app in one call
func ApplyShape(ctx context.Context, updater FormationUpdater, app string, shape Shape, workers int) (*Plan, error) {
	plan, err := PlanFor(shape, workers)
	if err != nil {
		return nil, err
	}

	if _, err := updater.BatchUpdateFormation(ctx, app, plan.Updates()); err != nil {
		return nil, fmt.Errorf("failed to apply %s shape: %w", shape, err)
	}
	return plan, nil
}

// ShapeNames returns the shape names in display order
func ShapeNames() []string {
	names := make([]string, 0, len(Shapes))
	for _, s := range Shapes {
		names = append(names, string(s))
	}
	return names
}
