package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"label-inspector/internal/adapters/profile"
	sqliteadapter "label-inspector/internal/adapters/store/sqlite"
	"label-inspector/internal/app"
	"label-inspector/internal/services/auditpdf"
	"label-inspector/internal/services/auditverify"
	"label-inspector/internal/services/detection"
	"label-inspector/internal/services/webapp"

	_ "modernc.org/sqlite"
)

// CLI 入口。所有子命令错误都统一输出到 stderr 并返回非 0 状态码。
func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run 是一级命令路由。
func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printUsage()
		return nil
	}

	switch args[0] {
	case "migrate":
		return runMigrate(ctx, args[1:])
	case "profile":
		return runProfile(ctx, args[1:])
	case "batch":
		return runBatch(ctx, args[1:])
	case "detect":
		return runDetect(ctx, args[1:])
	case "query":
		return runQuery(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "verify":
		return runVerify(ctx, args[1:])
	case "serve":
		return runServe(ctx, args[1:])
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

// runMigrate 执行 SQLite 迁移，确保数据库结构完整。
func runMigrate(ctx context.Context, args []string) error {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	dbPath := fs.String("db", cfg.DBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0o755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}

	m := sqliteadapter.NewMigrator(db)
	if err := m.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	fmt.Printf("migrations applied successfully: db=%s\n", *dbPath)
	return nil
}

// runProfile 是二级命令路由，目前支持 profile validate。
func runProfile(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printProfileUsage()
		return nil
	}

	switch args[0] {
	case "validate":
		return runProfileValidate(ctx, args[1:])
	default:
		printProfileUsage()
		return fmt.Errorf("unknown profile command: %s", args[0])
	}
}

// runProfileValidate 用于标签配置文件合法性检查，输出版本与哈希摘要。
func runProfileValidate(ctx context.Context, args []string) error {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("profile validate", flag.ContinueOnError)
	profilePath := fs.String("profile", cfg.ProfilePath, "label profile file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	loader := profile.NewLoader(*profilePath)
	loaded, err := loader.Load(ctx)
	if err != nil {
		return err
	}

	fmt.Println("profile validation passed")
	fmt.Printf("version=%s model_code=%s rohs=%s\n",
		loaded.Profile.Version, loaded.Profile.ModelCode, loaded.Profile.RoHS)
	fmt.Printf("recognizer: command=%q noise=%s\n",
		loaded.Profile.Recognizer.Command, loaded.Profile.Recognizer.Noise)
	fmt.Printf("sha256=%s\n", loaded.SHA256)
	return nil
}

// runBatch 是二级命令路由：batch set / batch show。
func runBatch(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printBatchUsage()
		return nil
	}

	switch args[0] {
	case "set":
		return runBatchSet(ctx, args[1:])
	case "show":
		return runBatchShow(ctx, args[1:])
	default:
		printBatchUsage()
		return fmt.Errorf("unknown batch command: %s", args[0])
	}
}

// runBatchSet 写入当班批次文件。后续 detect 不带 --batch-id 时以该文件为准。
func runBatchSet(ctx context.Context, args []string) error {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("batch set", flag.ContinueOnError)
	batchID := fs.String("batch-id", "", "batch id (required)")
	file := fs.String("file", cfg.ActiveBatchPath, "active batch file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	batch := strings.ToUpper(strings.TrimSpace(*batchID))
	if batch == "" {
		return fmt.Errorf("--batch-id is required")
	}

	if dir := filepath.Dir(*file); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create active batch directory: %w", err)
		}
	}
	if err := os.WriteFile(*file, []byte(batch+"\n"), 0o644); err != nil {
		return fmt.Errorf("write active batch file: %w", err)
	}

	fmt.Printf("active batch set: batch_id=%s file=%s\n", batch, *file)
	return nil
}

// runBatchShow 输出当班批次。文件缺失或为空时返回错误，提示操作员先 batch set。
func runBatchShow(ctx context.Context, args []string) error {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("batch show", flag.ContinueOnError)
	file := fs.String("file", cfg.ActiveBatchPath, "active batch file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	batch, err := detection.ReadActiveBatch(*file)
	if err != nil {
		return err
	}
	fmt.Printf("batch_id=%s file=%s\n", batch, *file)
	return nil
}

// runDetect 执行检测周期全流程（发号 -> 渲染 -> 识别 -> 校验 -> 留痕）。
func runDetect(ctx context.Context, args []string) error {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("detect", flag.ContinueOnError)
	dbPath := fs.String("db", cfg.DBPath, "sqlite database path")
	batchStorePath := fs.String("batch-store", cfg.BatchStorePath, "batch serial store file")
	auditLogPath := fs.String("audit-log", cfg.AuditLogPath, "traceability csv log path")
	activeBatchPath := fs.String("active-batch", cfg.ActiveBatchPath, "active batch file")
	profilePath := fs.String("profile", cfg.ProfilePath, "label profile file")
	labelDir := fs.String("label-dir", cfg.LabelDir, "label sheet output directory")
	batchID := fs.String("batch-id", "", "batch id (overrides active batch file)")
	serialBackend := fs.String("serial-backend", "file", "serial counter backend: file|sqlite")
	count := fs.Int("count", 1, "number of cycles to run")
	if err := fs.Parse(args); err != nil {
		return err
	}

	result, err := detection.Run(ctx, detection.Options{
		DBPath:          *dbPath,
		BatchStorePath:  *batchStorePath,
		AuditLogPath:    *auditLogPath,
		ActiveBatchPath: *activeBatchPath,
		ProfilePath:     *profilePath,
		LabelDir:        *labelDir,
		BatchID:         *batchID,
		SerialBackend:   *serialBackend,
		Count:           *count,
	})
	if err != nil {
		return err
	}

	fmt.Println("detection completed")
	fmt.Printf("batch_id=%s model_code=%s profile_sha256=%s\n",
		result.BatchID, result.ModelCode, result.ProfileSHA256)
	fmt.Printf("cycles=%d pass=%d reject=%d\n",
		len(result.Cycles), result.PassCount, result.RejectCount)
	for _, c := range result.Cycles {
		fmt.Printf("device_id=%s status=%s sheet=%s\n", c.DeviceID, c.Status, c.SheetPath)
	}
	if len(result.Warnings) > 0 {
		fmt.Printf("warnings=%s\n", strings.Join(result.Warnings, " | "))
	}
	return nil
}

// runQuery 是查询命令路由（批次摘要/事件流）。
func runQuery(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printQueryUsage()
		return nil
	}
	switch args[0] {
	case "batches":
		return runQueryBatches(ctx, args[1:])
	case "events":
		return runQueryEvents(ctx, args[1:])
	default:
		printQueryUsage()
		return fmt.Errorf("unknown query command: %s", args[0])
	}
}

// runQueryBatches 查询批次列表，适合 UI 列表页。
func runQueryBatches(ctx context.Context, args []string) error {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("query batches", flag.ContinueOnError)
	dbPath := fs.String("db", cfg.DBPath, "sqlite database path")
	limit := fs.Int("limit", 50, "max rows")
	offset := fs.Int("offset", 0, "rows to skip")
	asJSON := fs.Bool("json", true, "print as json")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, store, err := openStore(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := store.ListBatches(ctx, *limit, *offset)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(rows)
	}

	for _, b := range rows {
		fmt.Printf("batch_id=%s last_serial=%03d pass=%d reject=%d\n",
			b.BatchID, b.LastSerial, b.PassCount, b.RejectCount)
	}
	return nil
}

// runQueryEvents 查询批次事件流，按发生时间正序输出。
func runQueryEvents(ctx context.Context, args []string) error {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("query events", flag.ContinueOnError)
	dbPath := fs.String("db", cfg.DBPath, "sqlite database path")
	batchID := fs.String("batch-id", "", "batch id (required)")
	limit := fs.Int("limit", 500, "max rows")
	asJSON := fs.Bool("json", true, "print as json")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*batchID) == "" {
		return fmt.Errorf("--batch-id is required")
	}

	db, store, err := openStore(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	events, err := store.ListEvents(ctx, strings.ToUpper(strings.TrimSpace(*batchID)), *limit)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(events)
	}

	for _, e := range events {
		fmt.Printf("event_id=%s type=%s action=%s status=%s device_id=%s occurred_at=%d\n",
			e.EventID, e.EventType, e.Action, e.Status, e.DeviceID, e.OccurredAt)
	}
	return nil
}

// runExport 是导出命令路由：生成批次追溯产物。
func runExport(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printExportUsage()
		return nil
	}
	switch args[0] {
	case "audit-pdf":
		return runExportAuditPDF(ctx, args[1:])
	default:
		printExportUsage()
		return fmt.Errorf("unknown export command: %s", args[0])
	}
}

func runExportAuditPDF(ctx context.Context, args []string) error {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("export audit-pdf", flag.ContinueOnError)
	dbPath := fs.String("db", cfg.DBPath, "sqlite database path")
	batchID := fs.String("batch-id", "", "batch id (required)")
	operator := fs.String("operator", "system", "operator id or name")
	note := fs.String("note", "", "export note")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*batchID) == "" {
		return fmt.Errorf("--batch-id is required")
	}

	db, store, err := openStore(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	res, err := auditpdf.Generate(ctx, store, auditpdf.Options{
		BatchID:  strings.TrimSpace(*batchID),
		DBPath:   *dbPath,
		Operator: strings.TrimSpace(*operator),
		Note:     strings.TrimSpace(*note),
	})
	if err != nil {
		return err
	}

	fmt.Println("audit pdf export completed")
	fmt.Printf("batch_id=%s report_id=%s chain_ok=%v\n",
		strings.ToUpper(strings.TrimSpace(*batchID)), res.ReportID, res.ChainOK)
	fmt.Printf("pdf=%s\n", res.PDFPath)
	fmt.Printf("pdf_sha256=%s\n", res.PDFSHA256)
	if len(res.Warnings) > 0 {
		fmt.Printf("warnings=%s\n", strings.Join(res.Warnings, " | "))
	}
	return nil
}

// runVerify 是校验命令路由，目前支持 verify chain。
func runVerify(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printVerifyUsage()
		return nil
	}
	switch args[0] {
	case "chain":
		return runVerifyChain(ctx, args[1:])
	default:
		printVerifyUsage()
		return fmt.Errorf("unknown verify command: %s", args[0])
	}
}

// runVerifyChain 对批次事件流做审计链强校验，输出逐条失败明细。
func runVerifyChain(ctx context.Context, args []string) error {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("verify chain", flag.ContinueOnError)
	dbPath := fs.String("db", cfg.DBPath, "sqlite database path")
	batchID := fs.String("batch-id", "", "batch id (required)")
	asJSON := fs.Bool("json", false, "print as json")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*batchID) == "" {
		return fmt.Errorf("--batch-id is required")
	}

	db, store, err := openStore(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	events, err := store.ListEvents(ctx, strings.ToUpper(strings.TrimSpace(*batchID)), 5000)
	if err != nil {
		return err
	}
	res := auditverify.VerifyEvents(events)
	if *asJSON {
		return printJSON(res)
	}

	fmt.Printf("chain_ok=%v total=%d failed=%d prev_hash_failed=%d chain_hash_failed=%d\n",
		res.OK, res.Total, res.Failed, res.PrevHashFailed, res.ChainHashFailed)
	for _, f := range res.Failures {
		fmt.Printf("index=%d event_id=%s type=%s action=%s message=%s\n",
			f.Index, f.EventID, f.EventType, f.Action, f.Message)
	}
	if !res.OK {
		return fmt.Errorf("audit chain verification failed: %d of %d events", res.Failed, res.Total)
	}
	fmt.Println("audit chain verification passed")
	return nil
}

// runServe 启动内置 Web UI + API，便于“安装即用”的工位体验。
func runServe(ctx context.Context, args []string) error {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	dbPath := fs.String("db", cfg.DBPath, "sqlite database path")
	batchStorePath := fs.String("batch-store", cfg.BatchStorePath, "batch serial store file")
	auditLogPath := fs.String("audit-log", cfg.AuditLogPath, "traceability csv log path")
	activeBatchPath := fs.String("active-batch", cfg.ActiveBatchPath, "active batch file")
	profilePath := fs.String("profile", cfg.ProfilePath, "label profile file")
	labelDir := fs.String("label-dir", cfg.LabelDir, "label sheet output directory")
	listen := fs.String("listen", "127.0.0.1:8787", "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// 支持 Ctrl+C 优雅退出。
	sigCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return webapp.Run(sigCtx, webapp.Options{
		DBPath:          *dbPath,
		BatchStorePath:  *batchStorePath,
		AuditLogPath:    *auditLogPath,
		ActiveBatchPath: *activeBatchPath,
		ProfilePath:     *profilePath,
		LabelDir:        *labelDir,
		ListenAddr:      *listen,
	})
}

// openStore 打开数据库并应用迁移，返回待关闭的 db 与查询存储。
func openStore(ctx context.Context, dbPath string) (*sql.DB, *sqliteadapter.Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	migrator := sqliteadapter.NewMigrator(db)
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("apply migrations: %w", err)
	}

	return db, sqliteadapter.NewStore(db), nil
}

// printUsage 输出一级命令帮助。
func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  labeler-cli migrate [--db data/labeler.db]")
	fmt.Println("  labeler-cli profile validate [--profile profiles/label_profile.template.yaml]")
	fmt.Println("  labeler-cli batch set --batch-id BATCH_ID [--file active_batch.txt]")
	fmt.Println("  labeler-cli batch show [--file active_batch.txt]")
	fmt.Println("  labeler-cli detect [--batch-id BATCH_ID] [--count N] [--serial-backend file|sqlite] [--db data/labeler.db]")
	fmt.Println("  labeler-cli query batches [--db data/labeler.db] [--limit 50]")
	fmt.Println("  labeler-cli query events --batch-id BATCH_ID [--db data/labeler.db] [--limit 500]")
	fmt.Println("  labeler-cli export audit-pdf --batch-id BATCH_ID [--db data/labeler.db]")
	fmt.Println("  labeler-cli verify chain --batch-id BATCH_ID [--db data/labeler.db]")
	fmt.Println("  labeler-cli serve [--listen 127.0.0.1:8787] [--db data/labeler.db]")
}

// printProfileUsage 输出 profile 子命令帮助。
func printProfileUsage() {
	fmt.Println("Usage:")
	fmt.Println("  labeler-cli profile validate [--profile path]")
}

// printBatchUsage 输出 batch 子命令帮助。
func printBatchUsage() {
	fmt.Println("Usage:")
	fmt.Println("  labeler-cli batch set --batch-id BATCH_ID [--file path]")
	fmt.Println("  labeler-cli batch show [--file path]")
}

// printQueryUsage 输出 query 子命令帮助。
func printQueryUsage() {
	fmt.Println("Usage:")
	fmt.Println("  labeler-cli query batches [--db path] [--limit n] [--offset n] [--json=true]")
	fmt.Println("  labeler-cli query events --batch-id id [--db path] [--limit n] [--json=true]")
}

func printExportUsage() {
	fmt.Println("Usage:")
	fmt.Println("  labeler-cli export audit-pdf --batch-id BATCH_ID [--db path] [--operator name] [--note text]")
}

func printVerifyUsage() {
	fmt.Println("Usage:")
	fmt.Println("  labeler-cli verify chain --batch-id BATCH_ID [--db path] [--json]")
}

func printJSON(v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}
