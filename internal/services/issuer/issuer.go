package issuer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"label-inspector/internal/domain/model"
)

// SerialStore 是批次计数存储的最小接口。
// 文件实现（JSON 原子替换）与 SQLite 实现（单事务 upsert）都满足它。
type SerialStore interface {
	NextSerial(ctx context.Context, batchID string) (int, error)
}

// MaxSerial 是单批次可发的最大序列号。
// 设备标识的序列段固定 3 位补零，超出后宽度会变化，打印契约即被破坏，
// 因此到顶直接拒发而不是放宽格式。
const MaxSerial = 999

// BatchExhaustedError 表示批次序列号已用尽。
// 触发时计数已推进到越界值并保持不动：丢号无害，重号致命。
type BatchExhaustedError struct {
	BatchID string
	Serial  int
}

func (e *BatchExhaustedError) Error() string {
	return fmt.Sprintf("batch %s exhausted: serial %d exceeds %03d", e.BatchID, e.Serial, MaxSerial)
}

// Issuer 负责为批次内的下一台设备发号。
type Issuer struct {
	serials SerialStore
}

func New(serials SerialStore) *Issuer {
	return &Issuer{serials: serials}
}

// Issue 发出批次内下一个设备标识。
// 批次号不区分大小写（统一大写后使用）；计数存储的任何失败直接上抛，
// 不重试——瞬时错误下重试可能跳号，跳号可接受，但绝不能冒重号的险。
func (i *Issuer) Issue(ctx context.Context, modelCode, batchID string) (model.DeviceIdentity, error) {
	modelCode = strings.TrimSpace(modelCode)
	if modelCode == "" {
		return model.DeviceIdentity{}, errors.New("model code is required")
	}
	batch := strings.ToUpper(strings.TrimSpace(batchID))
	if batch == "" {
		return model.DeviceIdentity{}, errors.New("batch id is required")
	}

	serial, err := i.serials.NextSerial(ctx, batch)
	if err != nil {
		return model.DeviceIdentity{}, fmt.Errorf("next serial for batch %s: %w", batch, err)
	}
	if serial > MaxSerial {
		return model.DeviceIdentity{}, &BatchExhaustedError{BatchID: batch, Serial: serial}
	}

	return model.DeviceIdentity{
		ModelCode: modelCode,
		BatchID:   batch,
		Serial:    serial,
	}, nil
}
