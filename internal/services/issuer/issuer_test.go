package issuer

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// fakeSerials 是内存计数存储，记录收到的批次号。
type fakeSerials struct {
	counts  map[string]int
	batches []string
	err     error
}

func (f *fakeSerials) NextSerial(ctx context.Context, batchID string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.counts == nil {
		f.counts = map[string]int{}
	}
	f.batches = append(f.batches, batchID)
	f.counts[batchID]++
	return f.counts[batchID], nil
}

func TestIssuer_Issue_SequentialIdentities(t *testing.T) {
	t.Parallel()

	iss := New(&fakeSerials{})
	ctx := context.Background()

	want := []string{"T100X-B7-001", "T100X-B7-002", "T100X-B7-003"}
	for _, w := range want {
		identity, err := iss.Issue(ctx, "T100X", "B7")
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		if identity.Text() != w {
			t.Fatalf("identity=%s want=%s", identity.Text(), w)
		}
	}
}

func TestIssuer_Issue_BatchIDUppercased(t *testing.T) {
	t.Parallel()

	store := &fakeSerials{}
	iss := New(store)

	identity, err := iss.Issue(context.Background(), "T100X", "  b7 ")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if identity.BatchID != "B7" {
		t.Fatalf("batch=%s", identity.BatchID)
	}
	if len(store.batches) != 1 || store.batches[0] != "B7" {
		t.Fatalf("store saw batches=%v", store.batches)
	}
}

func TestIssuer_Issue_RequiredInputs(t *testing.T) {
	t.Parallel()

	iss := New(&fakeSerials{})
	ctx := context.Background()

	if _, err := iss.Issue(ctx, "", "B7"); err == nil {
		t.Fatal("empty model code accepted")
	}
	if _, err := iss.Issue(ctx, "T100X", "   "); err == nil {
		t.Fatal("blank batch id accepted")
	}
}

func TestIssuer_Issue_StoreErrorPropagates(t *testing.T) {
	t.Parallel()

	storeErr := fmt.Errorf("disk gone")
	iss := New(&fakeSerials{err: storeErr})

	_, err := iss.Issue(context.Background(), "T100X", "B7")
	if err == nil {
		t.Fatal("store error swallowed")
	}
	if !errors.Is(err, storeErr) {
		t.Fatalf("err=%v", err)
	}
}

func TestIssuer_Issue_BatchExhausted(t *testing.T) {
	t.Parallel()

	// 计数已到顶：下一次发号返回 1000，应拒发。
	store := &fakeSerials{counts: map[string]int{"B7": MaxSerial}}
	iss := New(store)

	_, err := iss.Issue(context.Background(), "T100X", "B7")
	if err == nil {
		t.Fatal("serial beyond cap accepted")
	}
	var exhausted *BatchExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("err=%v", err)
	}
	if exhausted.BatchID != "B7" || exhausted.Serial != MaxSerial+1 {
		t.Fatalf("exhausted=%+v", exhausted)
	}
}
