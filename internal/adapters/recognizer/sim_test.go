package recognizer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeSheetText(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "label.txt")
	if err := os.WriteFile(path, []byte(lines), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestSim_ReadLabel_VisualNoise(t *testing.T) {
	t.Parallel()

	path := writeSheetText(t, "Device ID: T100X-B7-001\n\nRoHS: YES\n")
	sim := NewSim("visual")

	fragments, err := sim.ReadLabel(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadLabel: %v", err)
	}
	if len(fragments) != 2 {
		t.Fatalf("fragments=%v", fragments)
	}
	// 1->I、0->O、小写化是确定性变换。
	if fragments[0] != "device id: tIOOx-b7-OOI" {
		t.Fatalf("fragment0=%q", fragments[0])
	}
	if fragments[1] != "rohs: yes" {
		t.Fatalf("fragment1=%q", fragments[1])
	}
}

func TestSim_ReadLabel_DropFields(t *testing.T) {
	t.Parallel()

	path := writeSheetText(t, "Device ID: T100X-B7-001\nRoHS: YES\n")
	sim := &Sim{DropFields: []string{"RoHS"}}

	fragments, err := sim.ReadLabel(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadLabel: %v", err)
	}
	if len(fragments) != 1 || fragments[0] != "Device ID: T100X-B7-001" {
		t.Fatalf("fragments=%v", fragments)
	}
}

func TestSim_ReadLabel_MissingSheet(t *testing.T) {
	t.Parallel()

	sim := NewSim("off")
	_, err := sim.ReadLabel(context.Background(), filepath.Join(t.TempDir(), "absent.txt"))
	if err == nil {
		t.Fatal("missing sheet accepted")
	}
}

func TestCommand_ReadLabel_CommandNotFound(t *testing.T) {
	t.Parallel()

	cmd := NewCommand("definitely-not-a-real-ocr-binary --fast")
	_, err := cmd.ReadLabel(context.Background(), "label.pdf")
	if err == nil {
		t.Fatal("missing command accepted")
	}
	if _, ok := err.(*UnavailableError); !ok {
		t.Fatalf("err=%T %v", err, err)
	}
}
