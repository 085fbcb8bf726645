package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestKeychainImportAndList(t *testing.T) {
	env := newTestEnv(t)

	code := env.run("", "keychain", "org-import", "dev", "--file", writeJSON(t, `{"config_name":"dev","namespaced":false}`), "--scratch", "--default")
	require.Equal(t, ExitOK, code, env.errOut.String())
	code = env.run("", "keychain", "org-import", "qa", "--file", writeJSON(t, `{"instance_url":"https://qa.example.com"}`))
	require.Equal(t, ExitOK, code, env.errOut.String())
	code = env.run("", "keychain", "service-import", "github", "--file", writeJSON(t, `{"username":"bot"}`))
	require.Equal(t, ExitOK, code, env.errOut.String())

	code = env.run("", "keychain", "list")
	require.Equal(t, ExitOK, code, env.errOut.String())
	assert.Equal(t, "Kind     Name\norg      dev (default)\norg      qa\nservice  github\n", env.out.String())

	org, err := env.keychain(t).GetOrg(context.Background(), "dev")
	require.NoError(t, err)
	assert.True(t, org.Scratch)
	assert.Equal(t, "dev", org.Config["config_name"])
}

func TestKeychainImportErrors(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, ExitUsage, env.run("", "keychain", "org-import", "dev"))
	assert.Equal(t, ExitUsage, env.run("", "keychain", "service-import", "metaci", "--file", writeJSON(t, `{}`)))

	code := env.run("", "keychain", "service-import", "github", "--file", writeJSON(t, `[1, 2]`))
	assert.Equal(t, ExitError, code)
	assert.Contains(t, env.errOut.String(), "must contain a JSON object")
}

func TestKeychainRemove(t *testing.T) {
	env := newTestEnv(t)

	require.Equal(t, ExitOK, env.run("", "keychain", "org-import", "dev", "--file", writeJSON(t, `{}`)))
	require.Equal(t, ExitOK, env.run("", "keychain", "service-import", "github", "--file", writeJSON(t, `{"username":"bot"}`)))

	code := env.run("", "keychain", "org-remove", "dev")
	require.Equal(t, ExitOK, code, env.errOut.String())
	assert.Equal(t, "Org dev removed from the local keychain\n", env.out.String())

	code = env.run("", "keychain", "service-remove", "github")
	require.Equal(t, ExitOK, code, env.errOut.String())
	assert.Equal(t, "Service github removed from the local keychain\n", env.out.String())

	code = env.run("", "keychain", "list")
	require.Equal(t, ExitOK, code, env.errOut.String())
	assert.Equal(t, "Kind     Name\n", env.out.String())

	code = env.run("", "keychain", "service-remove", "github")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, env.errOut.String(), "service github is not configured")

	code = env.run("", "keychain", "org-remove", "dev")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, env.errOut.String(), "org dev is not configured")

	assert.Equal(t, ExitUsage, env.run("", "keychain", "org-remove"))
}
