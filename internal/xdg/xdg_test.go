// internal/xdg/xdg_test.go
package xdg

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestConfigDir_EnvVar(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	got := ConfigDir()
	want := "/custom/config/frei0rhost"
	if got != want {
		t.Errorf("ConfigDir() = %q, want %q", got, want)
	}
}

func TestConfigDir_Default(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/testuser")
	got := ConfigDir()
	want := "/home/testuser/.config/frei0rhost"
	if got != want {
		t.Errorf("ConfigDir() = %q, want %q", got, want)
	}
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	want := "/custom/config/frei0rhost/config.yaml"
	if got := ConfigFile(); got != want {
		t.Errorf("ConfigFile() = %q, want %q", got, want)
	}
}

func TestDataDir_EnvVar(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	got := DataDir()
	want := "/custom/data/frei0rhost"
	if got != want {
		t.Errorf("DataDir() = %q, want %q", got, want)
	}
}

func TestDataDir_Default(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("HOME", "/home/testuser")
	want := "/home/testuser/.local/share/frei0rhost"
	if got := DataDir(); got != want {
		t.Errorf("DataDir() = %q, want %q", got, want)
	}
	if got := ScriptDir(); got != filepath.Join(want, "lua") {
		t.Errorf("ScriptDir() = %q", got)
	}
}

func TestRuntimeDir_EnvVar(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	want := "/run/user/1000/frei0rhost"
	if got := RuntimeDir(); got != want {
		t.Errorf("RuntimeDir() = %q, want %q", got, want)
	}
}

func TestRuntimeDir_Fallback(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "")
	t.Setenv("XDG_STATE_HOME", "/custom/state")
	want := "/custom/state/frei0rhost/run"
	if got := RuntimeDir(); got != want {
		t.Errorf("RuntimeDir() = %q, want %q", got, want)
	}
}

func TestStateDir_Default(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("HOME", "/home/testuser")
	want := "/home/testuser/.local/state/frei0rhost"
	if got := StateDir(); got != want {
		t.Errorf("StateDir() = %q, want %q", got, want)
	}
}

func TestCertsDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	want := "/custom/config/frei0rhost/certs"
	if got := CertsDir(); got != want {
		t.Errorf("CertsDir() = %q, want %q", got, want)
	}
}

func TestPluginPath_Default(t *testing.T) {
	t.Setenv("FREI0R_PATH", "")
	t.Setenv("HOME", "/home/testuser")
	want := []string{"/usr/lib/frei0r-1", "/usr/local/lib/frei0r-1", "/home/testuser/.frei0r-1/lib"}
	if got := PluginPath(); !slices.Equal(got, want) {
		t.Errorf("PluginPath() = %v, want %v", got, want)
	}
}

func TestPluginPath_EnvFirst(t *testing.T) {
	t.Setenv("FREI0R_PATH", "/opt/fx"+string(os.PathListSeparator)+string(os.PathListSeparator)+"/srv/fx")
	t.Setenv("HOME", "")
	want := []string{"/opt/fx", "/srv/fx", "/usr/lib/frei0r-1", "/usr/local/lib/frei0r-1"}
	if got := PluginPath(); !slices.Equal(got, want) {
		t.Errorf("PluginPath() = %v, want %v", got, want)
	}
}

func TestEnsureDir(t *testing.T) {
	tmpDir := t.TempDir()
	testPath := filepath.Join(tmpDir, "a", "b", "c")

	if err := EnsureDir(testPath); err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}

	info, err := os.Stat(testPath)
	if err != nil {
		t.Fatalf("directory not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("path is not a directory")
	}
	if perm := info.Mode().Perm(); perm != 0o700 {
		t.Errorf("permissions = %o, want 700", perm)
	}
}
