package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"label-inspector/internal/domain/model"
	"label-inspector/internal/platform/hash"
	"label-inspector/internal/platform/id"
)

// Store 封装与 SQLite 的读写逻辑。
//
// 对发号而言它是文件版 BatchStore 的事务型替代实现：
// 读-改-写在一个事务里完成，满足同一个 NextSerial 合约。
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// NextSerial 在一个事务内完成读取-自增-持久化，返回自增后的序列号。
// 未见过的批次从 0 起步；批次号统一按大写归一。
func (s *Store) NextSerial(ctx context.Context, batchID string) (int, error) {
	key := strings.ToUpper(strings.TrimSpace(batchID))
	now := time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx next serial: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var last int
	err = tx.QueryRowContext(ctx, `
		SELECT last_serial
		FROM batch_serials
		WHERE batch_id = ?
		LIMIT 1
	`, key).Scan(&last)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("query last serial: %w", err)
	}
	err = nil

	serial := last + 1
	_, err = tx.ExecContext(ctx, `
		INSERT INTO batch_serials(batch_id, last_serial, created_at, updated_at)
		VALUES(?, ?, ?, ?)
		ON CONFLICT(batch_id) DO UPDATE SET
			last_serial=excluded.last_serial,
			updated_at=excluded.updated_at
	`, key, serial, now, now)
	if err != nil {
		return 0, fmt.Errorf("upsert serial: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit next serial: %w", err)
	}
	return serial, nil
}

// LastSerial 返回批次当前已发到的序列号（未见过的批次为 0）。
func (s *Store) LastSerial(ctx context.Context, batchID string) (int, error) {
	var last int
	err := s.db.QueryRowContext(ctx, `
		SELECT last_serial
		FROM batch_serials
		WHERE batch_id = ?
		LIMIT 1
	`, strings.ToUpper(strings.TrimSpace(batchID))).Scan(&last)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("query last serial: %w", err)
	}
	return last, nil
}

// AppendEvent 写入审计事件，并生成链式 hash 以便后续校验完整性。
// 链按批次推进：每个批次的事件各自成链。
func (s *Store) AppendEvent(ctx context.Context, ev model.AuditEvent) (string, error) {
	detailJSON := []byte("{}")
	if len(ev.DetailJSON) > 0 {
		detailJSON = ev.DetailJSON
	}

	batchID := strings.ToUpper(strings.TrimSpace(ev.BatchID))

	prev := ""
	err := s.db.QueryRowContext(ctx, `
		SELECT chain_hash
		FROM audit_events
		WHERE batch_id = ?
		ORDER BY occurred_at DESC, event_id DESC
		LIMIT 1
	`, batchID).Scan(&prev)
	if err != nil && err != sql.ErrNoRows {
		return "", fmt.Errorf("query previous chain hash: %w", err)
	}

	occurredAt := ev.OccurredAt
	if occurredAt <= 0 {
		occurredAt = time.Now().Unix()
	}
	eventID := ev.EventID
	if eventID == "" {
		eventID = id.New("evt")
	}
	chain := hash.Text(prev, batchID, ev.EventType, ev.Action, ev.Status, fmt.Sprintf("%d", occurredAt), string(detailJSON))

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_events(
			event_id, batch_id, device_id, event_type, action, status,
			label_date, rohs, detail_json, occurred_at, chain_prev_hash, chain_hash
		)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, eventID, batchID, nullIfEmpty(ev.DeviceID), ev.EventType, ev.Action, ev.Status,
		nullIfEmpty(ev.LabelDate), nullIfEmpty(ev.RoHS), string(detailJSON), occurredAt, nullIfEmpty(prev), chain)
	if err != nil {
		return "", fmt.Errorf("insert audit event: %w", err)
	}

	return eventID, nil
}

// ListEvents 返回批次审计事件（按时间升序）。
func (s *Store) ListEvents(ctx context.Context, batchID string, limit int) ([]model.AuditEvent, error) {
	if limit <= 0 {
		limit = 500
	}
	if limit > 5000 {
		limit = 5000
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			event_id,
			batch_id,
			COALESCE(device_id, ''),
			event_type,
			action,
			status,
			COALESCE(label_date, ''),
			COALESCE(rohs, ''),
			COALESCE(detail_json, '{}'),
			occurred_at,
			COALESCE(chain_prev_hash, ''),
			chain_hash
		FROM audit_events
		WHERE batch_id = ?
		ORDER BY occurred_at ASC, event_id ASC
		LIMIT ?
	`, strings.ToUpper(strings.TrimSpace(batchID)), limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var out []model.AuditEvent
	for rows.Next() {
		var item model.AuditEvent
		var detail string
		if err := rows.Scan(
			&item.EventID,
			&item.BatchID,
			&item.DeviceID,
			&item.EventType,
			&item.Action,
			&item.Status,
			&item.LabelDate,
			&item.RoHS,
			&detail,
			&item.OccurredAt,
			&item.ChainPrevHash,
			&item.ChainHash,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		item.DetailJSON = json.RawMessage(detail)
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	if out == nil {
		out = []model.AuditEvent{}
	}
	return out, nil
}

// ListBatches 返回批次摘要列表（已发序列号 + 校验周期的通过/拒收计数），按更新时间倒序。
func (s *Store) ListBatches(ctx context.Context, limit, offset int) ([]model.BatchSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			b.batch_id,
			b.last_serial,
			b.updated_at,
			(SELECT COUNT(*) FROM audit_events e
				WHERE e.batch_id = b.batch_id AND e.event_type = 'detection' AND e.status = 'PASS'),
			(SELECT COUNT(*) FROM audit_events e
				WHERE e.batch_id = b.batch_id AND e.event_type = 'detection' AND e.status = 'REJECT')
		FROM batch_serials b
		ORDER BY b.updated_at DESC, b.batch_id ASC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	var out []model.BatchSummary
	for rows.Next() {
		var item model.BatchSummary
		if err := rows.Scan(
			&item.BatchID,
			&item.LastSerial,
			&item.UpdatedAt,
			&item.PassCount,
			&item.RejectCount,
		); err != nil {
			return nil, fmt.Errorf("scan batch summary: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batch summaries: %w", err)
	}
	if out == nil {
		out = []model.BatchSummary{}
	}
	return out, nil
}

// GetBatchSummary 返回单个批次的聚合摘要；批次不存在时返回 nil。
func (s *Store) GetBatchSummary(ctx context.Context, batchID string) (*model.BatchSummary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT
			b.batch_id,
			b.last_serial,
			b.updated_at,
			(SELECT COUNT(*) FROM audit_events e
				WHERE e.batch_id = b.batch_id AND e.event_type = 'detection' AND e.status = 'PASS'),
			(SELECT COUNT(*) FROM audit_events e
				WHERE e.batch_id = b.batch_id AND e.event_type = 'detection' AND e.status = 'REJECT')
		FROM batch_serials b
		WHERE b.batch_id = ?
	`, strings.ToUpper(strings.TrimSpace(batchID)))

	var out model.BatchSummary
	if err := row.Scan(
		&out.BatchID,
		&out.LastSerial,
		&out.UpdatedAt,
		&out.PassCount,
		&out.RejectCount,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query batch summary: %w", err)
	}
	return &out, nil
}

// SaveReport 记录报告产物信息，供查询与导出流程追踪。
func (s *Store) SaveReport(ctx context.Context, batchID, reportType, filePath, sha256, generatorVersion, status string) (string, error) {
	reportID := id.New("report")
	now := time.Now().Unix()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports(
			report_id, batch_id, report_type, file_path, sha256, generated_at, generator_version, status
		)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
	`, reportID, strings.ToUpper(strings.TrimSpace(batchID)), reportType, filePath, sha256, now, generatorVersion, status)
	if err != nil {
		return "", fmt.Errorf("insert report: %w", err)
	}
	return reportID, nil
}

// GetReportByID 按报告 ID 查询报告索引。
func (s *Store) GetReportByID(ctx context.Context, reportID string) (*model.ReportInfo, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT report_id, batch_id, report_type, file_path, sha256, generated_at, generator_version, status
		FROM reports
		WHERE report_id = ?
		LIMIT 1
	`, reportID)

	var out model.ReportInfo
	if err := row.Scan(
		&out.ReportID,
		&out.BatchID,
		&out.ReportType,
		&out.FilePath,
		&out.SHA256,
		&out.GeneratedAt,
		&out.GeneratorVersion,
		&out.Status,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query report info: %w", err)
	}
	return &out, nil
}

// ListReportsByBatch 返回批次全部报告索引，按生成时间倒序。
func (s *Store) ListReportsByBatch(ctx context.Context, batchID string) ([]model.ReportInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT report_id, batch_id, report_type, file_path, sha256, generated_at, generator_version, status
		FROM reports
		WHERE batch_id = ?
		ORDER BY generated_at DESC, report_id DESC
	`, strings.ToUpper(strings.TrimSpace(batchID)))
	if err != nil {
		return nil, fmt.Errorf("query reports by batch: %w", err)
	}
	defer rows.Close()

	var out []model.ReportInfo
	for rows.Next() {
		var item model.ReportInfo
		if err := rows.Scan(
			&item.ReportID,
			&item.BatchID,
			&item.ReportType,
			&item.FilePath,
			&item.SHA256,
			&item.GeneratedAt,
			&item.GeneratorVersion,
			&item.Status,
		); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	if out == nil {
		out = []model.ReportInfo{}
	}
	return out, nil
}

// 空字符串按 NULL 写入，避免无意义空值污染查询条件。
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
