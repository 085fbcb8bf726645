package keychain

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestKeychain opens a keychain in a temp dir
func setupTestKeychain(t *testing.T) *Keychain {
	k, err := Open(filepath.Join(t.TempDir(), "keychain.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { k.Close() })
	return k
}

func TestServiceRoundTrip(t *testing.T) {
	k := setupTestKeychain(t)
	ctx := context.Background()

	err := k.SetService(ctx, "github", ServiceConfig{
		"username": "octocat",
		"password": "hunter2",
		"email":    "octocat@example.com",
	})
	require.NoError(t, err)

	cfg, err := k.GetService(ctx, "github")
	require.NoError(t, err)
	assert.Equal(t, "octocat", cfg.Get("username"))
	assert.Equal(t, "", cfg.Get("missing"))

	// Overwrite replaces the config
	require.NoError(t, k.SetService(ctx, "github", ServiceConfig{"username": "other"}))
	cfg, err = k.GetService(ctx, "github")
	require.NoError(t, err)
	assert.Equal(t, "other", cfg.Get("username"))
	assert.Equal(t, "", cfg.Get("password"))
}

func TestGetServiceNotConfigured(t *testing.T) {
	k := setupTestKeychain(t)

	_, err := k.GetService(context.Background(), "github")
	var notConfigured ServiceNotConfiguredError
	require.ErrorAs(t, err, &notConfigured)
	assert.Equal(t, "github", notConfigured.Name)
}

func TestListAndDeleteServices(t *testing.T) {
	k := setupTestKeychain(t)
	ctx := context.Background()

	for _, name := range []string{"mrbelvedere", "apextestsdb", "github"} {
		require.NoError(t, k.SetService(ctx, name, ServiceConfig{"k": "v"}))
	}

	names, err := k.ListServices(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"apextestsdb", "github", "mrbelvedere"}, names)

	require.NoError(t, k.DeleteService(ctx, "github"))
	err = k.DeleteService(ctx, "github")
	assert.ErrorAs(t, err, &ServiceNotConfiguredError{})

	names, err = k.ListServices(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"apextestsdb", "mrbelvedere"}, names)
}

func TestOrgsAndDefault(t *testing.T) {
	k := setupTestKeychain(t)
	ctx := context.Background()

	def, err := k.DefaultOrg(ctx)
	require.NoError(t, err)
	assert.Nil(t, def)

	require.NoError(t, k.SetOrg(ctx, &OrgConfig{
		Name:    "dev",
		Scratch: true,
		Default: true,
		Config:  map[string]interface{}{"config_file": "orgs/dev.json", "namespaced": false},
	}))
	require.NoError(t, k.SetOrg(ctx, &OrgConfig{
		Name:    "packaging",
		Default: true,
		Config:  map[string]interface{}{"instance_url": "https://na1.salesforce.com"},
	}))

	def, err = k.DefaultOrg(ctx)
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, "packaging", def.Name)

	dev, err := k.GetOrg(ctx, "dev")
	require.NoError(t, err)
	assert.True(t, dev.Scratch)
	assert.False(t, dev.Default)
	assert.Equal(t, "orgs/dev.json", dev.Config["config_file"])

	names, err := k.ListOrgs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"dev", "packaging"}, names)

	_, err = k.GetOrg(ctx, "qa")
	assert.ErrorAs(t, err, &OrgNotFoundError{})
	assert.Contains(t, err.Error(), "qa")
}

func TestSite(t *testing.T) {
	k := setupTestKeychain(t)
	ctx := context.Background()

	_, err := k.GetSite(ctx)
	assert.ErrorAs(t, err, &ServiceNotConfiguredError{})

	site := &Site{URL: "https://metaci-test.herokuapp.com", Token: "abc123", AppName: "metaci-test"}
	require.NoError(t, k.SetSite(ctx, site))

	got, err := k.GetSite(ctx)
	require.NoError(t, err)
	assert.Equal(t, site, got)
}

func TestOpenLogsThroughInjectedLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keychain.db")

	var quiet bytes.Buffer
	k, err := Open(path, zerolog.New(&quiet).Level(zerolog.WarnLevel))
	require.NoError(t, err)
	require.NoError(t, k.SetService(context.Background(), "github", ServiceConfig{"username": "bot"}))
	require.NoError(t, k.Close())
	assert.Empty(t, quiet.String())

	var verbose bytes.Buffer
	k, err = Open(filepath.Join(t.TempDir(), "keychain.db"), zerolog.New(&verbose).Level(zerolog.DebugLevel))
	require.NoError(t, err)
	defer k.Close()
	assert.Contains(t, verbose.String(), "Creating table")
}

func TestDeleteOrg(t *testing.T) {
	k := setupTestKeychain(t)
	ctx := context.Background()

	require.NoError(t, k.SetOrg(ctx, &OrgConfig{Name: "dev", Config: map[string]interface{}{}}))
	require.NoError(t, k.DeleteOrg(ctx, "dev"))

	names, err := k.ListOrgs(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	err = k.DeleteOrg(ctx, "dev")
	assert.ErrorAs(t, err, &OrgNotFoundError{})
}
