package webapp

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	sqliteadapter "label-inspector/internal/adapters/store/sqlite"
	"label-inspector/internal/app"

	_ "modernc.org/sqlite"
)

// 注意：
// - go:embed 的路径必须相对当前包目录，且不能包含 ".."
// - 前端 build 输出拷贝到 internal/services/webapp/ui_dist/，二进制即可离线分发（产线工位解压即用）。
// - ui_dist/ 至少要有一个文件（本仓库放置了占位 index.html），否则 go:embed 会因“无匹配文件”而编译失败。
//
//go:embed ui_dist
var uiFS embed.FS

// Options 定义 Web UI + API 服务启动参数。
// 目标：工位内网试用优先（默认不做鉴权）。
type Options struct {
	DBPath          string
	BatchStorePath  string
	AuditLogPath    string
	ActiveBatchPath string
	ProfilePath     string
	LabelDir        string

	ListenAddr string
}

// Run 启动内置 Web UI：
// - 提供批次列表、事件流、报告浏览接口
// - 提供“单周期检测”与“导出追溯 PDF”接口（工位操作员用）
func Run(ctx context.Context, opts Options) error {
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
	if opts.ListenAddr == "" {
		opts.ListenAddr = "127.0.0.1:8787"
	}

	if err := os.MkdirAll(filepath.Dir(opts.DBPath), 0o755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}
	if err := os.MkdirAll(opts.LabelDir, 0o755); err != nil {
		return fmt.Errorf("create label directory: %w", err)
	}

	db, err := sql.Open("sqlite", opts.DBPath)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		return fmt.Errorf("set busy_timeout: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}

	migrator := sqliteadapter.NewMigrator(db)
	if err := migrator.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	sub, err := fs.Sub(uiFS, "ui_dist")
	if err != nil {
		return fmt.Errorf("sub ui fs: %w", err)
	}

	s := &Server{
		opts:  opts,
		db:    db,
		store: sqliteadapter.NewStore(db),
		ui:    sub,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	httpServer := &http.Server{
		Addr:              opts.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	fmt.Printf("webapp listening: http://%s\n", opts.ListenAddr)
	err = httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
