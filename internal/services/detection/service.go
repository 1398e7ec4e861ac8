package detection

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"label-inspector/internal/adapters/profile"
	"label-inspector/internal/adapters/recognizer"
	"label-inspector/internal/adapters/renderer"
	filestore "label-inspector/internal/adapters/store/file"
	sqliteadapter "label-inspector/internal/adapters/store/sqlite"
	"label-inspector/internal/app"
	"label-inspector/internal/domain/model"
	"label-inspector/internal/services/issuer"
	"label-inspector/internal/services/verifier"

	_ "modernc.org/sqlite"
)

// MissingBatchInputError 表示会话启动时拿不到当前批次号。
// 没有批次就没有发号对象，这是会话级致命错误，不提供默认批次兜底。
type MissingBatchInputError struct {
	Path string
}

func (e *MissingBatchInputError) Error() string {
	return fmt.Sprintf("active batch input missing or empty: %s", e.Path)
}

// ReadActiveBatch 读取当前批次号：整文件读入，去空白并统一大写。
// 文件缺失或内容为空都按 MissingBatchInputError 处理。
func ReadActiveBatch(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", &MissingBatchInputError{Path: path}
	}
	batch := strings.ToUpper(strings.TrimSpace(string(raw)))
	if batch == "" {
		return "", &MissingBatchInputError{Path: path}
	}
	return batch, nil
}

// Collaborators 是一个校验周期依赖的全部协作方。
// 测试可以注入模拟识别器/临时目录存储，产线接线由 Run 完成。
type Collaborators struct {
	Issuer     *issuer.Issuer
	Renderer   renderer.Renderer
	Recognizer recognizer.Recognizer
	Log        *filestore.AuditCSV
	Events     *sqliteadapter.Store // 可为 nil：不写事件流
}

// Params 是一个校验周期的输入。
type Params struct {
	ModelCode string
	BatchID   string
	Date      string
	RoHS      string
}

// CycleResult 是一个校验周期的完整输出。
type CycleResult struct {
	Identity     model.DeviceIdentity     `json:"identity"`
	Payload      string                   `json:"payload"`
	Verification model.VerificationResult `json:"verification"`
	SheetPath    string                   `json:"sheet_path,omitempty"`
	Fragments    []string                 `json:"fragments,omitempty"`
	// LogError 是追溯日志写入失败（结论不回退，单独呈现给操作员）。
	LogError error    `json:"-"`
	Warnings []string `json:"warnings,omitempty"`
}

// Cycle 执行一次完整的发号-渲染-识别-校验-留痕周期。
//
// 阶段间没有补偿回滚：发号与负载构建都有副作用（序列号已消耗），
// 后续任何失败都不撤销它们。丢号无害，重号致命。
func Cycle(ctx context.Context, deps Collaborators, p Params) (*CycleResult, error) {
	identity, err := deps.Issuer.Issue(ctx, p.ModelCode, p.BatchID)
	if err != nil {
		return nil, err
	}

	fields := model.BuildLabelFields(identity, p.Date, p.RoHS)
	payload := fields.Payload()

	out := &CycleResult{
		Identity: identity,
		Payload:  payload,
	}

	rendered, err := deps.Renderer.Render(ctx, fields, payload)
	if err != nil {
		// 标签没渲染出来，识别侧没有东西可读；发号已成立，不回退。
		return out, fmt.Errorf("render label %s: %w", identity.Text(), err)
	}
	out.SheetPath = rendered.SheetPath

	fragments, err := deps.Recognizer.ReadLabel(ctx, scanTarget(deps.Recognizer, rendered))
	if err != nil {
		return out, err
	}
	out.Fragments = fragments

	out.Verification = verifier.Verify(fields, fragments)

	entry := model.AuditEntry{
		Timestamp: time.Now().Format(time.RFC3339),
		DeviceID:  identity.Text(),
		BatchID:   identity.BatchID,
		Date:      fields.Date,
		RoHS:      fields.RoHS,
		Status:    string(out.Verification.Status),
	}
	if err := deps.Log.Append(entry); err != nil {
		// 结论已经产生，序列号已经消耗，这里只能单独上报，不能回退。
		out.LogError = err
		out.Warnings = append(out.Warnings, "audit log append failed: "+err.Error())
	}

	if deps.Events != nil {
		if _, err := deps.Events.AppendEvent(ctx, model.AuditEvent{
			BatchID:   identity.BatchID,
			DeviceID:  identity.Text(),
			EventType: "detection",
			Action:    "cycle",
			Status:    string(out.Verification.Status),
			LabelDate: fields.Date,
			RoHS:      fields.RoHS,
			DetailJSON: mustJSON(map[string]any{
				"payload":      payload,
				"sheet_path":   rendered.SheetPath,
				"sheet_sha256": rendered.SheetSHA256,
				"fields":       out.Verification.Fields,
				"fragments":    fragments,
			}),
		}); err != nil {
			out.Warnings = append(out.Warnings, "audit event append failed: "+err.Error())
		}
	}

	return out, nil
}

// scanTarget 决定识别器读什么：
// 外部命令读图纸本体，内置模拟器读文本边车。
func scanTarget(r recognizer.Recognizer, rendered *renderer.Result) string {
	if _, ok := r.(*recognizer.Sim); ok {
		return rendered.TextPath
	}
	return rendered.SheetPath
}

// Options 定义一次产线检测运行的输入参数。
type Options struct {
	DBPath          string
	BatchStorePath  string
	AuditLogPath    string
	ActiveBatchPath string
	ProfilePath     string
	LabelDir        string
	// BatchID 非空时覆盖 active batch 文件。
	BatchID string
	// SerialBackend 选择计数存储：file（默认）或 sqlite。
	SerialBackend string
	// Count 是连续执行的周期数，默认 1。
	Count int
}

// CycleSummary 是单个周期的摘要（用于 CLI/API 输出）。
type CycleSummary struct {
	DeviceID  string             `json:"device_id"`
	Status    string             `json:"status"`
	Fields    []model.FieldMatch `json:"fields"`
	SheetPath string             `json:"sheet_path,omitempty"`
}

// Result 定义一次产线检测运行的摘要输出。
type Result struct {
	BatchID       string         `json:"batch_id"`
	ModelCode     string         `json:"model_code"`
	ProfileSHA256 string         `json:"profile_sha256"`
	Cycles        []CycleSummary `json:"cycles"`
	PassCount     int            `json:"pass_count"`
	RejectCount   int            `json:"reject_count"`
	Warnings      []string       `json:"warnings,omitempty"`
	StartedAt     int64          `json:"started_at"`
	FinishedAt    int64          `json:"finished_at"`
}

// Run 执行产线检测主流程：
// 1) 加载工位配置与当前批次
// 2) 准备计数存储 / 审计日志 / 事件流
// 3) 逐周期执行发号-渲染-识别-校验-留痕
// 4) 汇总摘要
func Run(ctx context.Context, opts Options) (*Result, error) {
	defaults := app.DefaultConfig()
	if opts.DBPath == "" {
		opts.DBPath = defaults.DBPath
	}
	if opts.BatchStorePath == "" {
		opts.BatchStorePath = defaults.BatchStorePath
	}
	if opts.AuditLogPath == "" {
		opts.AuditLogPath = defaults.AuditLogPath
	}
	if opts.ActiveBatchPath == "" {
		opts.ActiveBatchPath = defaults.ActiveBatchPath
	}
	if opts.ProfilePath == "" {
		opts.ProfilePath = defaults.ProfilePath
	}
	if opts.LabelDir == "" {
		opts.LabelDir = defaults.LabelDir
	}
	if opts.Count <= 0 {
		opts.Count = 1
	}
	backend := strings.ToLower(strings.TrimSpace(opts.SerialBackend))
	if backend == "" {
		backend = "file"
	}
	if backend != "file" && backend != "sqlite" {
		return nil, fmt.Errorf("invalid serial backend: %s (expect file|sqlite)", opts.SerialBackend)
	}

	loaded, err := profile.NewLoader(opts.ProfilePath).Load(ctx)
	if err != nil {
		return nil, err
	}
	prof := loaded.Profile

	batchID := strings.ToUpper(strings.TrimSpace(opts.BatchID))
	if batchID == "" {
		batchID, err = ReadActiveBatch(opts.ActiveBatchPath)
		if err != nil {
			return nil, err
		}
	}

	date := strings.TrimSpace(prof.Date)
	if date == "" {
		date = time.Now().Format("02-01-2006")
	}

	if err := os.MkdirAll(filepath.Dir(opts.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", opts.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()
	// 单机工位优先稳定性：SQLite 用单连接 + busy_timeout 减少 "database is locked"。
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := sqliteadapter.NewMigrator(db).Up(ctx); err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	events := sqliteadapter.NewStore(db)

	var serials issuer.SerialStore
	if backend == "sqlite" {
		serials = events
	} else {
		serials = filestore.NewBatchStore(opts.BatchStorePath)
	}

	var rec recognizer.Recognizer
	if cmd := strings.TrimSpace(prof.Recognizer.Command); cmd != "" {
		rec = recognizer.NewCommand(cmd)
	} else {
		rec = recognizer.NewSim(prof.Recognizer.Noise)
	}

	labelDir := opts.LabelDir
	if strings.TrimSpace(prof.Renderer.OutputDir) != "" {
		labelDir = prof.Renderer.OutputDir
	}

	deps := Collaborators{
		Issuer:     issuer.New(serials),
		Renderer:   renderer.NewPDF(labelDir),
		Recognizer: rec,
		Log:        filestore.NewAuditCSV(opts.AuditLogPath),
		Events:     events,
	}

	result := &Result{
		BatchID:       batchID,
		ModelCode:     prof.ModelCode,
		ProfileSHA256: loaded.SHA256,
		StartedAt:     time.Now().Unix(),
	}

	for n := 0; n < opts.Count; n++ {
		cycle, err := Cycle(ctx, deps, Params{
			ModelCode: prof.ModelCode,
			BatchID:   batchID,
			Date:      date,
			RoHS:      prof.RoHS,
		})
		if err != nil {
			// 批次发满是预期的停线条件，带着已完成的周期返回。
			var exhausted *issuer.BatchExhaustedError
			if errors.As(err, &exhausted) {
				result.Warnings = append(result.Warnings, err.Error())
				break
			}
			result.FinishedAt = time.Now().Unix()
			return result, err
		}

		result.Cycles = append(result.Cycles, CycleSummary{
			DeviceID:  cycle.Identity.Text(),
			Status:    string(cycle.Verification.Status),
			Fields:    cycle.Verification.Fields,
			SheetPath: cycle.SheetPath,
		})
		switch cycle.Verification.Status {
		case model.StatusPass:
			result.PassCount++
		case model.StatusReject:
			result.RejectCount++
		}
		result.Warnings = append(result.Warnings, cycle.Warnings...)
	}

	result.FinishedAt = time.Now().Unix()
	return result, nil
}

// mustJSON 保证 detail_json 至少为合法 JSON。
func mustJSON(v any) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return raw
}
