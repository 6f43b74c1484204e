package cli_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/sectorfs/internal/cli"
)

func Test_LoadConfig_Returns_Defaults_When_No_File(t *testing.T) {
	t.Parallel()

	cfg, err := cli.LoadConfig(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(cli.DefaultConfig(), cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func Test_LoadConfig_Reads_Hujson_With_Comments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	content := `{
  // Which image the tool operates on.
  "image": "volumes/test.img",
  "cache_slots": 128, // trailing comma and comments are fine
}`

	if err := os.WriteFile(filepath.Join(dir, cli.ConfigFileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := cli.LoadConfig(dir, "")
	if err != nil {
		t.Fatal(err)
	}

	want := cli.Config{Image: "volumes/test.img", CacheSlots: 128}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func Test_LoadConfig_Keeps_Defaults_For_Unset_Fields(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, cli.ConfigFileName), []byte(`{"image": "other.img"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := cli.LoadConfig(dir, "")
	if err != nil {
		t.Fatal(err)
	}

	want := cli.Config{Image: "other.img", CacheSlots: 64}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func Test_LoadConfig_Fails_On_Missing_Explicit_File(t *testing.T) {
	t.Parallel()

	if _, err := cli.LoadConfig(t.TempDir(), filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func Test_LoadConfig_Rejects_Out_Of_Range_Cache_Slots(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, cli.ConfigFileName), []byte(`{"cache_slots": 100000}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := cli.LoadConfig(dir, ""); err == nil {
		t.Fatal("expected error for out-of-range cache_slots")
	}
}
