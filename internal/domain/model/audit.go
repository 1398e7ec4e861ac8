package model

import "encoding/json"

// AuditEntry 表示 CSV 追溯日志中的一行（对应 traceability log 的一次校验周期）。
// 只追加，从不改写。
type AuditEntry struct {
	Timestamp string // RFC3339 时间戳
	DeviceID  string // 设备标识文本形式
	BatchID   string // 批次号
	Date      string // 标签日期字段（原样字符串）
	RoHS      string // 合规标记（原样字符串）
	Status    string // PASS / REJECT
}

// AuditEvent 表示 SQLite 审计事件流中的一条记录（对应 audit_events 表）。
// 与 CSV 日志互补：CSV 是对外交付的表格格式，事件流带链式 hash 供防篡改校验。
type AuditEvent struct {
	EventID       string          // 事件 ID
	BatchID       string          // 关联批次
	DeviceID      string          // 设备标识文本形式；非发号事件可为空
	EventType     string          // 事件类型，例如 detection / export
	Action        string          // 动作，例如 cycle / audit_pdf
	Status        string          // PASS / REJECT / success / failed
	LabelDate     string          // 标签日期字段
	RoHS          string          // 合规标记
	DetailJSON    json.RawMessage // 事件细节（入库时为紧凑 JSON）
	OccurredAt    int64           // 发生时间（Unix 秒）
	ChainPrevHash string          // 上一条事件的 chain_hash
	ChainHash     string          // 本条事件的链式 hash
}

// BatchSummary 表示一个批次的聚合摘要（已发序列号与校验结果计数）。
type BatchSummary struct {
	BatchID     string `json:"batch_id"`
	LastSerial  int    `json:"last_serial"`
	PassCount   int    `json:"pass_count"`
	RejectCount int    `json:"reject_count"`
	UpdatedAt   int64  `json:"updated_at"`
}

// ReportInfo 表示一份已生成报告的索引信息（对应 reports 表）。
type ReportInfo struct {
	ReportID         string `json:"report_id"`
	BatchID          string `json:"batch_id"`
	ReportType       string `json:"report_type"`
	FilePath         string `json:"file_path"`
	SHA256           string `json:"sha256"`
	GeneratedAt      int64  `json:"generated_at"`
	GeneratorVersion string `json:"generator_version"`
	Status           string `json:"status"`
}
