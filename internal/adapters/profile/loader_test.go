package profile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoader_Load(t *testing.T) {
	t.Parallel()

	path := writeProfile(t, `
version: "1.0.0"
bundle_type: label_profile
model_code: T100X
date: "26-02-2025"
rohs: "YES"
recognizer:
  noise: visual
renderer:
  output_dir: out/labels
`)

	loaded, err := NewLoader(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Profile.ModelCode != "T100X" {
		t.Fatalf("model_code=%s", loaded.Profile.ModelCode)
	}
	if loaded.Profile.Recognizer.Noise != "visual" {
		t.Fatalf("noise=%s", loaded.Profile.Recognizer.Noise)
	}
	if loaded.Profile.Renderer.OutputDir != "out/labels" {
		t.Fatalf("output_dir=%s", loaded.Profile.Renderer.OutputDir)
	}
	if len(loaded.SHA256) != 64 {
		t.Fatalf("sha256=%s", loaded.SHA256)
	}
}

func TestLoader_Load_WrongBundleType(t *testing.T) {
	t.Parallel()

	path := writeProfile(t, `
version: "1.0.0"
bundle_type: wallet_rules
model_code: T100X
rohs: "YES"
`)
	if _, err := NewLoader(path).Load(context.Background()); err == nil {
		t.Fatal("wrong bundle_type accepted")
	}
}

func TestLoader_Load_MissingModelCode(t *testing.T) {
	t.Parallel()

	path := writeProfile(t, `
version: "1.0.0"
bundle_type: label_profile
rohs: "YES"
`)
	if _, err := NewLoader(path).Load(context.Background()); err == nil {
		t.Fatal("missing model_code accepted")
	}
}

func TestLoader_Load_InvalidNoise(t *testing.T) {
	t.Parallel()

	path := writeProfile(t, `
version: "1.0.0"
bundle_type: label_profile
model_code: T100X
rohs: "YES"
recognizer:
  noise: heavy
`)
	if _, err := NewLoader(path).Load(context.Background()); err == nil {
		t.Fatal("invalid noise accepted")
	}
}

func TestLoader_Load_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := NewLoader(filepath.Join(t.TempDir(), "absent.yaml")).Load(context.Background()); err == nil {
		t.Fatal("missing file accepted")
	}
}
