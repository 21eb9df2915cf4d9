package main

import (
	"bytes"
	"errors"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bareSource = `authors: []
main: ""
`

const yamlSource = `group: acme
name: economy
version: 1.4.0
authors:
  - name: Ada
    email: ada@acme.com
dependencies:
  acme:core: ">=1.0.0"
main: com.acme.economy.EconomyPlugin
`

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func stubUser(t *testing.T, name string, err error) {
	t.Helper()
	prev := currentUser
	currentUser = func() (*user.User, error) {
		if err != nil {
			return nil, err
		}
		return &user.User{Username: name}, nil
	}
	t.Cleanup(func() { currentUser = prev })
}

func TestGenerate(t *testing.T) {
	src := writeSource(t, "plugin.yaml", yamlSource)
	out := t.TempDir()

	stdout, _, err := execute(t, "generate", src, "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "acme:economy 1.4.0")

	written, err := os.ReadFile(filepath.Join(out, "manifest.json"))
	require.NoError(t, err)
	assert.Equal(t,
		`{"Group":"acme","Name":"economy","Version":"1.4.0","Authors":[{"Name":"Ada","Email":"ada@acme.com"}],"ServerVersion":"*","Dependencies":{"acme:core":">=1.0.0"},"Main":"com.acme.economy.EconomyPlugin"}`,
		strings.TrimSpace(string(written)))
}

func TestGenerate_Defaults(t *testing.T) {
	stubUser(t, "ada", nil)
	src := writeSource(t, "plugin.yaml", bareSource)
	resources := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(resources, "lang.json"), []byte("{}"), 0644))
	out := t.TempDir()

	_, _, err := execute(t, "generate", src,
		"--group", "acme",
		"--name", "economy",
		"--version", "0.1.0",
		"--main-candidate", "com.acme.economy.Main",
		"--resources", resources,
		"--out", out,
		"--pretty",
	)
	require.NoError(t, err)

	written, err := os.ReadFile(filepath.Join(out, "manifest.json"))
	require.NoError(t, err)
	doc := string(written)
	assert.True(t, strings.HasPrefix(doc, "{\n  \"Group\": \"acme\""))
	assert.Contains(t, doc, `"Name": "ada"`)
	assert.Contains(t, doc, `"IncludesAssetPack": true`)
	assert.Contains(t, doc, `"Main": "com.acme.economy.Main"`)
}

func TestGenerate_AmbiguousMain(t *testing.T) {
	stubUser(t, "", errors.New("no user"))
	src := writeSource(t, "plugin.yaml", bareSource)

	_, stderr, err := execute(t, "generate", src,
		"--group", "acme",
		"--name", "economy",
		"--version", "0.1.0",
		"--main-candidate", "com.acme.A",
		"--main-candidate", "com.acme.B",
		"--out", t.TempDir(),
	)
	require.Error(t, err)
	assert.Contains(t, stderr, "warning: Main left blank: multiple main candidates: com.acme.A, com.acme.B")
	assert.Contains(t, err.Error(), "pluginMainClass cannot be empty")
}

func TestGenerate_Errors(t *testing.T) {
	_, _, err := execute(t, "generate")
	assert.Error(t, err)

	_, _, err = execute(t, "generate", filepath.Join(t.TempDir(), "plugin.ini"))
	assert.Error(t, err)

	_, _, err = execute(t, "generate", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	src := writeSource(t, "plugin.yaml", yamlSource)

	stdout, _, err := execute(t, "validate", src)
	require.NoError(t, err)
	assert.Contains(t, stdout, `"Group":"acme"`)

	invalid := writeSource(t, "plugin.json",
		`{"group":"acme","name":"","version":"1.4.0","authors":[{"name":"Ada","email":"ada.acme.com"}],"main":"com.acme.Main"}`)

	stdout, _, err = execute(t, "validate", invalid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 problem(s)")
	assert.Equal(t, "pluginName cannot be empty -> null\nauthors[0].email must contain a '@' -> ada.acme.com\n", stdout)

	stdout, _, err = execute(t, "validate", invalid, "--fail-fast")
	require.Error(t, err)
	assert.Equal(t, "pluginName cannot be empty -> null\n", stdout)
}

func TestRange(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    []string
		wantErr error
	}{
		{
			name: "caret bounds",
			args: []string{"range", "^1.2.3"},
			want: []string{"kind:  caret", "min:   1.2.3 (inclusive)", "max:   2.0.0 (exclusive)"},
		},
		{
			name: "wildcard has no bounds",
			args: []string{"range", "*", "0.0.1"},
			want: []string{"kind:  wildcard", "0.0.1 satisfies *"},
		},
		{
			name:    "not satisfied",
			args:    []string{"range", "~1.2.0", "1.3.0"},
			want:    []string{"1.3.0 does not satisfy ~1.2.0"},
			wantErr: errNotSatisfied,
		},
		{
			name: "invalid range",
			args: []string{"range", "1.2.x"},
			want: []string{"range version segment \"patch\" must be a number -> x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := execute(t, tt.args...)
			for _, w := range tt.want {
				assert.Contains(t, stdout, w)
			}
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case strings.HasPrefix(tt.name, "invalid"):
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestVersion(t *testing.T) {
	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "pluginmanifest "))
}
