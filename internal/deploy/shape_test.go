package deploy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jlantz/metaci-cli/internal/heroku"
)

type recordingUpdater struct {
	app     string
	updates []heroku.FormationUpdate
	err     error
}

func (r *recordingUpdater) BatchUpdateFormation(ctx context.Context, app string, updates []heroku.FormationUpdate) ([]heroku.Formation, error) {
	r.app = app
	r.updates = updates
	return nil, r.err
}

func TestPlanFor(t *testing.T) {
	tests := []struct {
		shape   Shape
		workers int
		size    string
		summary string
	}{
		{ShapeDev, 0, "free", "web=1 dev_worker=1 worker=0 worker_short=0"},
		{ShapeStaging, 0, "standard-1x", "web=1 dev_worker=0 worker=1 worker_short=1"},
		{ShapeStaging, 4, "standard-1x", "web=1 dev_worker=0 worker=4 worker_short=1"},
		{ShapeProd, 4, "standard-1x", "web=1 dev_worker=0 worker=0 worker_short=1"},
	}

	for _, tt := range tests {
		t.Run(string(tt.shape), func(t *testing.T) {
			plan, err := PlanFor(tt.shape, tt.workers)
			require.NoError(t, err)
			assert.Equal(t, tt.size, plan.Size)
			assert.Equal(t, tt.summary, plan.Summary())
		})
	}

	_, err := PlanFor("huge", 1)
	assert.EqualError(t, err, "unknown app shape: huge")
}

func TestApplyShape(t *testing.T) {
	updater := &recordingUpdater{}

	plan, err := ApplyShape(context.Background(), updater, "metaci-test", ShapeStaging, 3)
	require.NoError(t, err)
	assert.Equal(t, ShapeStaging, plan.Shape)
	assert.Equal(t, "metaci-test", updater.app)

	require.Len(t, updater.updates, 4)
	got := map[string]int{}
	for _, u := range updater.updates {
		assert.Equal(t, "standard-1x", u.Size)
		got[u.Type] = *u.Quantity
	}
	assert.Equal(t, map[string]int{"web": 1, "dev_worker": 0, "worker": 3, "worker_short": 1}, got)
}

func TestApplyShapeError(t *testing.T) {
	updater := &recordingUpdater{err: errors.New("forbidden")}

	_, err := ApplyShape(context.Background(), updater, "app", ShapeDev, 0)
	assert.ErrorContains(t, err, "failed to apply dev shape")
}

func TestParseShape(t *testing.T) {
	shape, err := ParseShape("prod")
	require.NoError(t, err)
	assert.Equal(t, ShapeProd, shape)

	_, err = ParseShape("Prod")
	assert.Error(t, err)

	assert.Equal(t, []string{"dev", "staging", "prod"}, ShapeNames())
}
