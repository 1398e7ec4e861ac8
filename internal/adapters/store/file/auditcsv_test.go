package file

import (
	"errors"
	"path/filepath"
	"testing"

	"label-inspector/internal/domain/model"
)

func sampleEntry(deviceID, status string) model.AuditEntry {
	return model.AuditEntry{
		Timestamp: "2025-02-26T09:30:00Z",
		DeviceID:  deviceID,
		BatchID:   "B7",
		Date:      "26-02-2025",
		RoHS:      "YES",
		Status:    status,
	}
}

func TestAuditCSV_Append_Order(t *testing.T) {
	t.Parallel()

	log := NewAuditCSV(filepath.Join(t.TempDir(), "trace.csv"))

	if err := log.Append(sampleEntry("T100X-B7-001", "PASS")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := log.Append(sampleEntry("T100X-B7-002", "REJECT")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	rows, err := log.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%d", len(rows))
	}
	// 追加顺序保持；第一行在第二次追加后不被改动。
	if rows[0].DeviceID != "T100X-B7-001" || rows[0].Status != "PASS" {
		t.Fatalf("row0=%+v", rows[0])
	}
	if rows[1].DeviceID != "T100X-B7-002" || rows[1].Status != "REJECT" {
		t.Fatalf("row1=%+v", rows[1])
	}
}

func TestAuditCSV_ReadAll_MissingFile(t *testing.T) {
	t.Parallel()

	log := NewAuditCSV(filepath.Join(t.TempDir(), "absent.csv"))
	rows, err := log.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("rows=%d", len(rows))
	}
}

func TestAuditCSV_Append_Unavailable(t *testing.T) {
	t.Parallel()

	// 路径指向目录：打开追加必然失败，错误应可识别为 LogUnavailableError。
	log := NewAuditCSV(t.TempDir())
	err := log.Append(sampleEntry("T100X-B7-001", "PASS"))
	if err == nil {
		t.Fatal("append to directory succeeded")
	}
	var unavailable *LogUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("err=%v", err)
	}
}
