package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestProperties_LoadsEnvFileMapping(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, ".env", `
# local settings
QWEN_API_KEY="sk-from-dotenv-file"
QWEN_MODEL_NAME=qwen-plus # cheaper model
QWEN_API_BASE_URL=https://dashscope-intl.aliyuncs.com/compatible-mode/v1
PROFILES_ACTIVE=dev
`)

	props, err := NewProperties(PropertiesOptions{
		ConfigFile: filepath.Join(dir, "missing.yaml"),
		EnvFile:    envFile,
	})
	require.NoError(t, err)

	v, ok := props.Get(PropAPIKey)
	require.True(t, ok)
	assert.Equal(t, "sk-from-dotenv-file", v)

	v, ok = props.Get(PropAPIKeyUpperCase)
	require.True(t, ok)
	assert.Equal(t, "sk-from-dotenv-file", v)

	v, _ = props.Get(PropDefaultModel)
	assert.Equal(t, "qwen-plus", v)

	v, _ = props.Get(PropBaseURL)
	assert.Equal(t, "https://dashscope-intl.aliyuncs.com/compatible-mode/v1", v)

	r := NewResolver(MapEnv{}, props, nil)
	assert.True(t, r.IsDev())
}

func TestProperties_EnvFileOverridesConfigFile(t *testing.T) {
	dir := t.TempDir()
	configFile := writeFile(t, dir, "config.yaml", `
qwen:
  api:
    base-url: https://from-config.example/v1
    default-model: qwen-turbo
`)
	envFile := writeFile(t, dir, ".env", "QWEN_MODEL_NAME=qwen-long\n")

	props, err := NewProperties(PropertiesOptions{ConfigFile: configFile, EnvFile: envFile})
	require.NoError(t, err)

	r := NewResolver(MapEnv{}, props, nil)
	assert.Equal(t, "https://from-config.example/v1", r.BaseURL())
	assert.Equal(t, "qwen-long", r.DefaultModel())
}

func TestProperties_ReloadPicksUpEdits(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, ".env", "QWEN_API_KEY=sk-first-key-value\n")

	props, err := NewProperties(PropertiesOptions{
		ConfigFile: filepath.Join(dir, "none.yaml"),
		EnvFile:    envFile,
	})
	require.NoError(t, err)
	r := NewResolver(MapEnv{}, props, nil)

	assert.Equal(t, "sk-first-key-value", r.Resolve().APIKey)

	writeFile(t, dir, ".env", "QWEN_API_KEY=sk-second-key-value\n")
	assert.Equal(t, "sk-first-key-value", r.Resolve().APIKey, "Resolve must not reload files")
	assert.Equal(t, "sk-second-key-value", r.Refresh().APIKey)
}

func TestProperties_MissingFilesAreFine(t *testing.T) {
	dir := t.TempDir()
	props, err := NewProperties(PropertiesOptions{
		ConfigFile: filepath.Join(dir, "absent.yaml"),
		EnvFile:    filepath.Join(dir, ".env"),
	})
	require.NoError(t, err)

	_, ok := props.Get(PropAPIKey)
	assert.False(t, ok)
}

func TestProperties_NilIsEmpty(t *testing.T) {
	var props *Properties
	_, ok := props.Get(PropAPIKey)
	assert.False(t, ok)
}
