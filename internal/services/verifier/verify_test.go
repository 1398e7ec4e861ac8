package verifier

import (
	"testing"

	"label-inspector/internal/domain/model"
)

func sampleFields() model.LabelFields {
	identity := model.DeviceIdentity{ModelCode: "T100X", BatchID: "B7", Serial: 1}
	return model.BuildLabelFields(identity, "26-02-2025", "YES")
}

func TestVerify_PassWithNoisyUnorderedFragments(t *testing.T) {
	t.Parallel()

	// 片段乱序、带视觉噪声（0/O、1/I 混淆、大小写、间距抖动），外加一行无关噪声。
	fragments := []string{
		"rohs: yes",
		"date : 26-O2-2O25",
		"device id: tIOOx-b7-OOI",
		"batch id: B7",
		"## scanner noise ##",
	}

	result := Verify(sampleFields(), fragments)
	if result.Status != model.StatusPass {
		t.Fatalf("status=%s fields=%+v", result.Status, result.Fields)
	}
	if !result.AllMatched() {
		t.Fatalf("fields=%+v", result.Fields)
	}
	if len(result.Fields) != len(model.FieldOrder) {
		t.Fatalf("field count=%d", len(result.Fields))
	}
}

func TestVerify_RejectWhenFieldMissing(t *testing.T) {
	t.Parallel()

	// RoHS 行漏读：整体 REJECT，且只有 RoHS 标记未命中。
	fragments := []string{
		"Device ID: T100X-B7-001",
		"Batch ID: B7",
		"Date: 26-02-2025",
	}

	result := Verify(sampleFields(), fragments)
	if result.Status != model.StatusReject {
		t.Fatalf("status=%s", result.Status)
	}
	for _, f := range result.Fields {
		want := f.Key != model.FieldRoHS
		if f.Matched != want {
			t.Fatalf("field %q matched=%v want=%v", f.Key, f.Matched, want)
		}
	}
}

func TestVerify_RejectWhenValueWrong(t *testing.T) {
	t.Parallel()

	// 字段名在、值错：同样未命中。
	fragments := []string{
		"Device ID: T100X-B7-002",
		"Batch ID: B7",
		"Date: 26-02-2025",
		"RoHS: YES",
	}

	result := Verify(sampleFields(), fragments)
	if result.Status != model.StatusReject {
		t.Fatalf("status=%s", result.Status)
	}
	if result.Fields[0].Matched {
		t.Fatalf("device id matched against wrong serial")
	}
}

func TestVerify_NoFragments(t *testing.T) {
	t.Parallel()

	result := Verify(sampleFields(), nil)
	if result.Status != model.StatusReject {
		t.Fatalf("status=%s", result.Status)
	}
	for _, f := range result.Fields {
		if f.Matched {
			t.Fatalf("field %q matched with no fragments", f.Key)
		}
	}
}
