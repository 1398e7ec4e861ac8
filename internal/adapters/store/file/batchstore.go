package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CorruptStoreError 表示计数文件存在但无法解析。
//
// 这类错误对发号是致命的：静默重置会从 0 重新计数，直接破坏设备标识唯一性，
// 因此只能报错并交由人工恢复文件。
type CorruptStoreError struct {
	Path string
	Err  error
}

func (e *CorruptStoreError) Error() string {
	return fmt.Sprintf("batch store corrupt: %s: %v", e.Path, e.Err)
}

func (e *CorruptStoreError) Unwrap() error { return e.Err }

// BatchStore 是基于单个 JSON 文件的批次计数存储。
//
// 文件内容是 batch_id -> last_serial 的一个 JSON 对象；
// 写入采用“整写临时文件 + 原子替换”，避免进程中断留下半截文件。
// 设计假设单进程单写者；多工位并发发号需要外部锁或换用 SQLite 实现。
type BatchStore struct {
	Path string
}

func NewBatchStore(path string) *BatchStore {
	return &BatchStore{Path: path}
}

// NextSerial 读取-自增-持久化一次完成：
// 文件缺失视为空映射，未见过的批次从 0 起步，自增后的值先落盘再返回。
// 读写同一调用内完成，持久化失败时不返回序列号，保证“没落盘的号不会被用掉”。
func (s *BatchStore) NextSerial(ctx context.Context, batchID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	data, err := s.load()
	if err != nil {
		return 0, err
	}

	key := strings.ToUpper(strings.TrimSpace(batchID))
	serial := data[key] + 1
	data[key] = serial

	if err := s.replace(data); err != nil {
		return 0, err
	}
	return serial, nil
}

// LastSerial 返回批次当前已发到的序列号（未见过的批次为 0）。只读，不推进计数。
func (s *BatchStore) LastSerial(ctx context.Context, batchID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	data, err := s.load()
	if err != nil {
		return 0, err
	}
	return data[strings.ToUpper(strings.TrimSpace(batchID))], nil
}

// load 读出完整映射。键统一按大写归一，旧文件中的小写键在此被合并。
func (s *BatchStore) load() (map[string]int, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]int{}, nil
		}
		return nil, fmt.Errorf("read batch store: %w", err)
	}

	var data map[string]int
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, &CorruptStoreError{Path: s.Path, Err: err}
	}

	out := make(map[string]int, len(data))
	for k, v := range data {
		key := strings.ToUpper(strings.TrimSpace(k))
		if v > out[key] {
			out[key] = v
		}
	}
	return out, nil
}

// replace 整写临时文件后原子替换，其余批次的键原样保留（load 已读入全量映射）。
func (s *BatchStore) replace(data map[string]int) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode batch store: %w", err)
	}

	dir := filepath.Dir(s.Path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create batch store directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".batch_serials_*.tmp")
	if err != nil {
		return fmt.Errorf("create batch store temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write batch store temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync batch store temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close batch store temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.Path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace batch store: %w", err)
	}
	return nil
}
