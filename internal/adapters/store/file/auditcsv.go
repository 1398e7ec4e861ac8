package file

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"label-inspector/internal/domain/model"
)

// LogUnavailableError 表示追溯日志文件无法以追加方式打开
// （典型场景：文件被表格软件独占锁定）。
//
// 该错误不回滚已经做出的校验结论：序列号已经消耗、结论已经产生，
// 调用方只需把“这次没记上”单独呈现给操作员。
type LogUnavailableError struct {
	Path string
	Err  error
}

func (e *LogUnavailableError) Error() string {
	return fmt.Sprintf("audit log unavailable: %s: %v", e.Path, e.Err)
}

func (e *LogUnavailableError) Unwrap() error { return e.Err }

// AuditCSV 是只追加的 CSV 追溯日志。
// 每个校验周期写一行，从不改写既有行；文件不存在时首次使用自动创建。
type AuditCSV struct {
	Path string
}

func NewAuditCSV(path string) *AuditCSV {
	return &AuditCSV{Path: path}
}

// Append 追加一条审计记录。
// 打开即追加模式，保证与既有行互不干扰；写入后立刻刷盘关闭，不持有文件句柄。
func (l *AuditCSV) Append(entry model.AuditEntry) error {
	dir := filepath.Dir(l.Path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &LogUnavailableError{Path: l.Path, Err: err}
		}
	}

	f, err := os.OpenFile(l.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &LogUnavailableError{Path: l.Path, Err: err}
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		entry.Timestamp,
		entry.DeviceID,
		entry.BatchID,
		entry.Date,
		entry.RoHS,
		entry.Status,
	}); err != nil {
		return &LogUnavailableError{Path: l.Path, Err: err}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return &LogUnavailableError{Path: l.Path, Err: err}
	}
	return nil
}

// ReadAll 读出全部日志行（按追加顺序）。供查询命令与测试使用。
func (l *AuditCSV) ReadAll() ([]model.AuditEntry, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return []model.AuditEntry{}, nil
		}
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	out := make([]model.AuditEntry, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		out = append(out, model.AuditEntry{
			Timestamp: row[0],
			DeviceID:  row[1],
			BatchID:   row[2],
			Date:      row[3],
			RoHS:      row[4],
			Status:    row[5],
		})
	}
	return out, nil
}
