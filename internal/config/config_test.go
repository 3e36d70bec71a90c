package config

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/jensneuse/abstractlogger"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	aliaslimit "github.com/hanpama/gqlguard/internal/aliaslimit"
	depthlimit "github.com/hanpama/gqlguard/internal/depthlimit"
	extension "github.com/hanpama/gqlguard/internal/extension"
	language "github.com/hanpama/gqlguard/internal/language"
)

func TestDefaults(t *testing.T) {
	c, err := Load(New(), "")
	require.NoError(t, err)
	require.Equal(t, ":8080", c.Server.Addr)
	require.Equal(t, 10*time.Second, c.Server.Timeout)
	require.Equal(t, 10, c.Limits.Depth)
	require.Equal(t, 15, c.Limits.Aliases)
	require.True(t, c.Limits.Introspection)
	require.Equal(t, "gqlguard", c.Otel.Service)
}

func TestFileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "gqlguard.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
upstream:
  url: http://localhost:4000/graphql
limits:
  depth: 4
  depth-ignore:
    - viewer
    - /^id_/
server:
  timeout: 3s
`), 0o644))
	t.Setenv("GQLGUARD_LIMITS_ALIASES", "2")

	c, err := Load(New(), file)
	require.NoError(t, err)
	require.Equal(t, 4, c.Limits.Depth)
	require.Equal(t, []string{"viewer", "/^id_/"}, c.Limits.DepthIgnore)
	require.Equal(t, 2, c.Limits.Aliases)
	require.Equal(t, 3*time.Second, c.Server.Timeout)

	u, err := c.UpstreamURL()
	require.NoError(t, err)
	require.Equal(t, "localhost:4000", u.Host)
}

func TestFlagsOverrideDefaults(t *testing.T) {
	v := New()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("limits.depth", 10, "")
	require.NoError(t, fs.Parse([]string{"--limits.depth=3"}))
	require.NoError(t, BindFlags(v, fs))

	c, err := Load(v, "")
	require.NoError(t, err)
	require.Equal(t, 3, c.Limits.Depth)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestUpstreamURL(t *testing.T) {
	c := &Config{}
	_, err := c.UpstreamURL()
	require.EqualError(t, err, "upstream.url is required")

	c.Upstream.URL = "ftp://example.com"
	_, err = c.UpstreamURL()
	require.Error(t, err)
}

func TestExtensions(t *testing.T) {
	c, err := Load(New(), "")
	require.NoError(t, err)
	c.Limits.Introspection = false
	c.Errors.Mask = true

	exts, err := c.Extensions(abstractlogger.NoopLogger)
	require.NoError(t, err)
	var names []string
	for _, e := range exts {
		names = append(names, e.ExtensionName())
	}
	require.Equal(t, []string{
		"MaxTokensLimiter", "ParserCache", "ValidationCache", "DisableIntrospection",
		"QueryDepthLimiter", "MaxAliasesLimiter", "MaskErrors",
	}, names)
	require.Equal(t, 10, exts[4].(*depthlimit.QueryDepthLimiter).MaxDepth)
	require.Equal(t, 15, exts[5].(*aliaslimit.MaxAliasesLimiter).MaxAliasCount)
	require.IsType(t, &extension.MaskErrors{}, exts[6])
}

func TestExtensionsDisabledLimits(t *testing.T) {
	c := &Config{Limits: LimitsConfig{Introspection: true}}
	exts, err := c.Extensions(abstractlogger.NoopLogger)
	require.NoError(t, err)
	require.Empty(t, exts)
}

func TestShouldIgnore(t *testing.T) {
	fn, err := LimitsConfig{}.ShouldIgnore()
	require.NoError(t, err)
	require.Nil(t, fn)

	fn, err = LimitsConfig{DepthIgnore: []string{"viewer", "/^id_/"}}.ShouldIgnore()
	require.NoError(t, err)
	require.True(t, fn(depthlimit.IgnoreContext{Node: &language.Field{Name: "viewer"}}))
	require.True(t, fn(depthlimit.IgnoreContext{Node: &language.Field{Name: "id_user"}}))
	require.False(t, fn(depthlimit.IgnoreContext{Node: &language.Field{Name: "user"}}))

	_, err = LimitsConfig{DepthIgnore: []string{"/[/"}}.ShouldIgnore()
	require.Error(t, err)
}

func TestIgnorePatterns(t *testing.T) {
	got, err := ignorePatterns([]string{"viewer", " /^id_/ ", ""})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "viewer", got[0])
	require.IsType(t, &regexp.Regexp{}, got[1])
	require.Equal(t, "^id_", got[1].(*regexp.Regexp).String())

	_, err = ignorePatterns([]string{"/(/"})
	require.Error(t, err)
}
