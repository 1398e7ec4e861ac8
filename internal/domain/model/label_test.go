package model

import "testing"

func TestDeviceIdentity_Text_PadsSerial(t *testing.T) {
	t.Parallel()

	cases := []struct {
		serial int
		want   string
	}{
		{1, "T100X-B7-001"},
		{42, "T100X-B7-042"},
		{999, "T100X-B7-999"},
	}
	for _, c := range cases {
		got := DeviceIdentity{ModelCode: "T100X", BatchID: "B7", Serial: c.serial}.Text()
		if got != c.want {
			t.Fatalf("serial=%d got=%s want=%s", c.serial, got, c.want)
		}
	}
}

func TestLabelFields_Payload(t *testing.T) {
	t.Parallel()

	identity := DeviceIdentity{ModelCode: "T100X", BatchID: "B7", Serial: 1}
	fields := BuildLabelFields(identity, "26-02-2025", "YES")

	want := "Device ID: T100X-B7-001 | Batch ID: B7 | Date: 26-02-2025 | RoHS: YES"
	if got := fields.Payload(); got != want {
		t.Fatalf("payload=%q want=%q", got, want)
	}
}

func TestLabelFields_Value(t *testing.T) {
	t.Parallel()

	fields := LabelFields{DeviceID: "T100X-B7-001", BatchID: "B7", Date: "26-02-2025", RoHS: "YES"}

	for _, key := range FieldOrder {
		if fields.Value(key) == "" {
			t.Fatalf("field %q empty", key)
		}
	}
	if got := fields.Value("Unknown"); got != "" {
		t.Fatalf("unknown field value=%q", got)
	}
}

func TestVerificationResult_AllMatched(t *testing.T) {
	t.Parallel()

	empty := VerificationResult{Status: StatusPass}
	if empty.AllMatched() {
		t.Fatal("empty result reported all matched")
	}

	mixed := VerificationResult{
		Status: StatusReject,
		Fields: []FieldMatch{
			{Key: FieldDeviceID, Matched: true},
			{Key: FieldRoHS, Matched: false},
		},
	}
	if mixed.AllMatched() {
		t.Fatal("mixed result reported all matched")
	}
}
