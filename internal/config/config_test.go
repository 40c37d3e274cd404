package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv(PathEnvVar, "")
	t.Setenv("DATABASE_URL", "postgres://localhost/petitions")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "postgres://localhost/petitions", cfg.Database.URL)
	require.Equal(t, time.Second, cfg.Source.PageDelay)
	require.Equal(t, 30*time.Second, cfg.Source.Timeout)
	require.Equal(t, "https://petition.parliament.uk", cfg.Source.PetitionsURL)
	require.Equal(t, "@every 30m", cfg.Watch.Schedule)
	require.Equal(t, "8080", cfg.Server.Port)
	require.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
}

func TestLoadEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv(PathEnvVar, "")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "file:petitions.db")
	t.Setenv("PAGE_DELAY", "250ms")
	t.Setenv("PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 250*time.Millisecond, cfg.Source.PageDelay)
	require.Equal(t, "9090", cfg.Server.Port)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "petitionwatch.yaml")
	body := []byte("database:\n  driver: sqlite\n  url: file:from-file.db\nwatch:\n  schedule: \"*/15 * * * *\"\n")
	require.NoError(t, os.WriteFile(path, body, 0o600))
	t.Setenv(PathEnvVar, path)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "file:from-file.db", cfg.Database.URL)
	require.Equal(t, "*/15 * * * *", cfg.Watch.Schedule)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		c := defaultConfig()
		c.Database.URL = "postgres://localhost/petitions"
		return c
	}

	c := valid()
	require.NoError(t, c.Validate())

	c = valid()
	c.Database.URL = ""
	require.ErrorContains(t, c.Validate(), "DATABASE_URL")

	c = valid()
	c.Database.Driver = "mysql"
	require.ErrorContains(t, c.Validate(), "database.driver")

	c = valid()
	c.Source.PageDelay = -time.Second
	require.ErrorContains(t, c.Validate(), "page_delay")

	c = valid()
	c.Watch.Schedule = "not a schedule"
	require.ErrorContains(t, c.Validate(), "watch.schedule")
}

// chdir changes the working directory for the duration of the test,
// restoring it on cleanup (equivalent to testing.T.Chdir from Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { require.NoError(t, os.Chdir(prev)) })
}
