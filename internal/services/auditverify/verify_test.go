package auditverify

import (
	"fmt"
	"testing"

	"label-inspector/internal/domain/model"
	"label-inspector/internal/platform/hash"
)

// chainEvent 按入库公式计算 chain_hash，构造一条自洽的事件。
func chainEvent(prev, batchID, eventType, action, status string, occurredAt int64, detail string) model.AuditEvent {
	return model.AuditEvent{
		EventID:       fmt.Sprintf("evt_%d", occurredAt),
		BatchID:       batchID,
		EventType:     eventType,
		Action:        action,
		Status:        status,
		DetailJSON:    []byte(detail),
		OccurredAt:    occurredAt,
		ChainPrevHash: prev,
		ChainHash: hash.Text(prev, batchID, eventType, action, status,
			fmt.Sprintf("%d", occurredAt), detail),
	}
}

func sampleChain() []model.AuditEvent {
	first := chainEvent("", "B7", "detection", "cycle", "PASS", 1700000001, `{"payload":"x"}`)
	second := chainEvent(first.ChainHash, "B7", "detection", "cycle", "REJECT", 1700000002, `{"payload":"y"}`)
	third := chainEvent(second.ChainHash, "B7", "export", "audit_pdf", "success", 1700000003, `{}`)
	return []model.AuditEvent{first, second, third}
}

func TestVerifyEvents_IntactChain(t *testing.T) {
	t.Parallel()

	events := sampleChain()
	res := VerifyEvents(events)
	if !res.OK {
		t.Fatalf("res=%+v", res)
	}
	if res.Total != 3 || res.Failed != 0 {
		t.Fatalf("total=%d failed=%d", res.Total, res.Failed)
	}
	if res.LastChainHash != events[2].ChainHash {
		t.Fatalf("last=%s want=%s", res.LastChainHash, events[2].ChainHash)
	}
}

func TestVerifyEvents_TamperedStatus(t *testing.T) {
	t.Parallel()

	events := sampleChain()
	// 事后把 REJECT 改成 PASS：重算 chain_hash 必然对不上。
	events[1].Status = "PASS"

	res := VerifyEvents(events)
	if res.OK {
		t.Fatal("tampered chain reported OK")
	}
	if res.ChainHashFailed == 0 {
		t.Fatalf("res=%+v", res)
	}
	found := false
	for _, f := range res.Failures {
		if f.Index == 1 && f.ChainHashMismatch {
			found = true
		}
	}
	if !found {
		t.Fatalf("failures=%+v", res.Failures)
	}
}

func TestVerifyEvents_BrokenPrevLink(t *testing.T) {
	t.Parallel()

	events := sampleChain()
	// 第二条事件被整条替换（自身 hash 自洽但前链断裂）。
	events[1] = chainEvent("deadbeef", "B7", "detection", "cycle", "PASS", 1700000002, `{"payload":"z"}`)

	res := VerifyEvents(events)
	if res.OK {
		t.Fatal("broken chain reported OK")
	}
	if res.PrevHashFailed == 0 {
		t.Fatalf("res=%+v", res)
	}
}

func TestVerifyEvents_Empty(t *testing.T) {
	t.Parallel()

	res := VerifyEvents(nil)
	if !res.OK || res.Total != 0 {
		t.Fatalf("res=%+v", res)
	}
}
