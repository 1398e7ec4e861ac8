package renderer

import (
	"context"
	"os"
	"strings"
	"testing"

	"label-inspector/internal/domain/model"
)

func TestPDF_Render(t *testing.T) {
	t.Parallel()

	identity := model.DeviceIdentity{ModelCode: "T100X", BatchID: "B7", Serial: 1}
	fields := model.BuildLabelFields(identity, "26-02-2025", "YES")
	payload := fields.Payload()

	p := NewPDF(t.TempDir())
	res, err := p.Render(context.Background(), fields, payload)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	info, err := os.Stat(res.SheetPath)
	if err != nil {
		t.Fatalf("stat sheet: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("empty sheet")
	}
	if len(res.SheetSHA256) != 64 {
		t.Fatalf("sha256=%s", res.SheetSHA256)
	}

	// 边车文本 = 四行字段 + 负载行，供模拟识别器回读。
	raw, err := os.ReadFile(res.TextPath)
	if err != nil {
		t.Fatalf("read text: %v", err)
	}
	text := string(raw)
	for _, want := range []string{
		"Device ID: T100X-B7-001",
		"Batch ID: B7",
		"Date: 26-02-2025",
		"RoHS: YES",
		payload,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("sidecar missing %q:\n%s", want, text)
		}
	}
}

func TestSanitizeName(t *testing.T) {
	t.Parallel()

	if got := sanitizeName("T100X-B7-001"); got != "T100X-B7-001" {
		t.Fatalf("got=%s", got)
	}
	if got := sanitizeName("a/b c"); got != "a_b_c" {
		t.Fatalf("got=%s", got)
	}
	if got := sanitizeName(""); got != "label" {
		t.Fatalf("got=%s", got)
	}
}
