package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"famtree/internal/genealogy/models"
)

const familyScript = `
steps:
  - register: {ssn: "9000", given: Ada, family: Admin, gender: FEMALE, role: ADMIN, email: ada@example.org}
  - register: {ssn: "1001", given: Jean, family: Dupont, gender: MALE, birth: 1960-05-01, email: jean@example.org}
  - resolve: {admin: "9000", accept: true}
  - add_link:
      owner: "1001"
      requester: "1001"
      kind: FATHER
      person: {given: Louis, family: Dupont, gender: MALE, birth: 1930-02-02}
  - resolve: {admin: "9000", accept: true, type: ADD_LINK}
`

func writeFixture(t *testing.T) (configPath, scriptPath string) {
	t.Helper()
	dir := t.TempDir()
	configPath = filepath.Join(dir, "famtree.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("storage:\n  data_dir: "+filepath.Join(dir, "data")+"\nlog:\n  level: error\n"), 0o600))
	scriptPath = filepath.Join(dir, "script.yaml")
	require.NoError(t, os.WriteFile(scriptPath, []byte(familyScript), 0o600))
	return configPath, scriptPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestBatchThenView(t *testing.T) {
	configPath, scriptPath := writeFixture(t)

	out, err := execute(t, "--config", configPath, "batch", scriptPath)
	require.NoError(t, err)
	assert.Contains(t, out, "registered 1001")
	assert.Contains(t, out, "add_link FATHER Louis: pending")
	assert.Contains(t, out, "resolve ADD_LINK")
	assert.NotContains(t, out, "rejected")

	// A fresh process rebuilds the tree from the files written above.
	out, err = execute(t, "--config", configPath, "view", "--owner", "1001", "--viewer", "1001")
	require.NoError(t, err)
	assert.Contains(t, out, "Jean DUPONT")
	assert.Contains(t, out, "Louis DUPONT")

	out, err = execute(t, "--config", configPath, "verify", "--owner", "1001", "--strict")
	require.NoError(t, err)
	assert.Contains(t, out, "1001: ok")

	out, err = execute(t, "--config", configPath, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "TREE")

	out, err = execute(t, "--config", configPath, "audit", "--subject", "1001")
	require.NoError(t, err)
	assert.Contains(t, out, "person_registered")
}

func TestBatchStopsAtFirstError(t *testing.T) {
	configPath, _ := writeFixture(t)
	script := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(script, []byte(`
steps:
  - register: {ssn: "1001", given: Jean, family: Dupont, gender: X}
`), 0o600))

	_, err := execute(t, "--config", configPath, "batch", script)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 1")
}

func TestViewUnknownOwner(t *testing.T) {
	configPath, _ := writeFixture(t)
	_, err := execute(t, "--config", configPath, "view", "--owner", "404", "--viewer", "404")
	require.Error(t, err)
}

func TestParseKey(t *testing.T) {
	assert.Equal(t, models.IdentityKey{SSN: "1001"}, parseKey(" 1001 "))
	assert.Equal(t,
		models.IdentityKey{FamilyName: "dupont", GivenName: "Louis", BirthDate: "1930-02-02"},
		parseKey("Dupont|Louis|1930-02-02"))
	assert.Equal(t, models.IdentityKey{FamilyName: "roy", GivenName: "Paul"}, parseKey("roy|Paul"))
}
