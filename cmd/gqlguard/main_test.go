package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testSchema = `
type Query { viewer: User }
type User { id: ID! name: String friends: [User!]! }
`

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func execute(args ...string) (string, error) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOutput(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCheck(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"schema.graphql": testSchema,
		"ok.graphql":     `query Ok { viewer { id } }`,
		"bad.graphql":    `query Bad { viewer { nope } }`,
	})
	ok := filepath.Join(dir, "ok.graphql")
	bad := filepath.Join(dir, "bad.graphql")

	out, err := execute("check", "--schema", filepath.Join(dir, "schema.graphql"), ok, bad)
	require.EqualError(t, err, "1 problem(s) found")
	require.Contains(t, out, ok+": operation Ok has depth 1\n")
	require.Contains(t, out, bad+`:1:22: Cannot query field "nope" on type "User".`)
}

func TestCheckPassesValidDocuments(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"schema.graphql": testSchema,
		"a.graphql":      `query A { viewer { friends { id } } } query B { viewer { id } }`,
	})
	out, err := execute("check", "--schema", filepath.Join(dir, "schema.graphql"), filepath.Join(dir, "a.graphql"))
	require.NoError(t, err)
	require.Contains(t, out, "operation A has depth 2")
	require.Contains(t, out, "operation B has depth 1")
}

func TestCheckDepthLimit(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"schema.graphql": testSchema,
		"deep.graphql":   `query Deep { viewer { friends { friends { id } } } }`,
	})
	deep := filepath.Join(dir, "deep.graphql")
	out, err := execute("check", "--schema", filepath.Join(dir, "schema.graphql"), "--limits.depth", "2", deep)
	require.Error(t, err)
	require.Contains(t, out, deep+":1:43: 'Deep' exceeds maximum operation depth of 2")
}

func TestCheckIgnoredFields(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"schema.graphql": testSchema,
		"deep.graphql":   `query Deep { viewer { friends { friends { id } } } }`,
	})
	_, err := execute("check",
		"--schema", filepath.Join(dir, "schema.graphql"),
		"--limits.depth", "2",
		"--limits.depth-ignore", "/^friend/",
		filepath.Join(dir, "deep.graphql"),
	)
	require.NoError(t, err)
}

func TestCheckMissingFile(t *testing.T) {
	dir := writeFiles(t, map[string]string{"schema.graphql": testSchema})
	_, err := execute("check", "--schema", filepath.Join(dir, "schema.graphql"), filepath.Join(dir, "missing.graphql"))
	require.Error(t, err)
}

func TestPrintSchema(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"query.graphql": `type Query { viewer: User }`,
		"user.graphql":  `type User { id: ID! }`,
	})
	out, err := execute("print-schema", "--schema", dir)
	require.NoError(t, err)
	require.Contains(t, out, "type Query")
	require.Contains(t, out, "type User")
}

func TestServeRequiresUpstream(t *testing.T) {
	dir := writeFiles(t, map[string]string{"schema.graphql": testSchema})
	_, err := execute("serve", "--schema", filepath.Join(dir, "schema.graphql"))
	require.EqualError(t, err, "upstream.url is required")
}

func TestConfigFile(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"schema.graphql": testSchema,
		"deep.graphql":   `query Deep { viewer { friends { id } } }`,
		"gqlguard.yaml":  "limits:\n  depth: 1\n",
	})
	_, err := execute("check",
		"--config", filepath.Join(dir, "gqlguard.yaml"),
		"--schema", filepath.Join(dir, "schema.graphql"),
		filepath.Join(dir, "deep.graphql"),
	)
	require.EqualError(t, err, "1 problem(s) found")
}
