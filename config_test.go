package twine_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/b97tsk/twine"
)

func TestConfig(t *testing.T) {
	t.Run("Default", func(t *testing.T) {
		c := twine.DefaultConfig()

		if err := c.Validate(); err != nil {
			t.Fatal(err)
		}
		if c.HighWater != twine.DefaultHighWater || c.Delimiter != "\r\n" {
			t.Fatalf("unexpected defaults %+v", c)
		}
	})
	t.Run("Parse", func(t *testing.T) {
		c, err := twine.ParseConfig([]byte("high_water = 1024\ndelimiter = \"\\n\"\n"))
		if err != nil {
			t.Fatal(err)
		}

		want := twine.DefaultConfig()
		want.HighWater = 1024
		want.Delimiter = "\n"

		if c != want {
			t.Fatalf("want %+v, got %+v", want, c)
		}
	})
	t.Run("Invalid", func(t *testing.T) {
		_, err := twine.ParseConfig([]byte("high_water = 0\nlow_water = 5\ndelimiter = \"\"\n"))
		if err == nil {
			t.Fatal("want an error")
		}
		for _, key := range []string{"high_water", "low_water", "delimiter"} {
			if !strings.Contains(err.Error(), key) {
				t.Errorf("error should mention %s: %v", key, err)
			}
		}
	})
	t.Run("Malformed", func(t *testing.T) {
		if _, err := twine.ParseConfig([]byte("high_water = ")); err == nil {
			t.Fatal("want an error")
		}
	})
	t.Run("Load", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "twine.toml")
		if err := os.WriteFile(path, []byte("max_line_length = 80\n"), 0o644); err != nil {
			t.Fatal(err)
		}

		c, err := twine.LoadConfig(path)
		if err != nil {
			t.Fatal(err)
		}
		if c.MaxLineLength != 80 {
			t.Fatalf("want 80, got %d", c.MaxLineLength)
		}

		if _, err := twine.LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
			t.Fatal("want an error for a missing file")
		}
	})
	t.Run("WithConfig", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Fatal("WithConfig should panic on an invalid config")
			}
		}()

		twine.WithConfig(twine.Config{})
	})
}
