package webapp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"label-inspector/internal/services/auditpdf"
	"label-inspector/internal/services/auditverify"
	"label-inspector/internal/services/detection"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"service": "webapp",
		"time":    time.Now().Unix(),
	})
}

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// active batch 缺失不是错误：工位可能还没设置当班批次。
	activeBatch := ""
	if b, err := detection.ReadActiveBatch(s.opts.ActiveBatchPath); err == nil {
		activeBatch = b
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"db_path":           s.opts.DBPath,
		"batch_store_path":  s.opts.BatchStorePath,
		"audit_log_path":    s.opts.AuditLogPath,
		"active_batch_path": s.opts.ActiveBatchPath,
		"active_batch":      activeBatch,
		"profile_path":      s.opts.ProfilePath,
		"label_dir":         s.opts.LabelDir,
	})
}

func (s *Server) handleBatches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := parseInt(r.URL.Query().Get("limit"), 50)
	offset := parseInt(r.URL.Query().Get("offset"), 0)

	rows, err := s.store.ListBatches(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"batches": rows})
}

func (s *Server) handleBatchRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/batches/")
	rest = strings.Trim(rest, "/")
	if rest == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(rest, "/")
	batchID := strings.ToUpper(parts[0])
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	switch action {
	case "summary":
		s.handleBatchSummary(w, r, batchID)
	case "events":
		s.handleBatchEvents(w, r, batchID)
	case "reports":
		s.handleBatchReports(w, r, batchID)
	case "exports":
		// /api/batches/{batch_id}/exports/{kind}
		//
		// 目前支持：
		// - POST /api/batches/{batch_id}/exports/audit-pdf
		restParts := []string{}
		if len(parts) > 2 {
			restParts = parts[2:]
		}
		s.handleBatchExports(w, r, batchID, restParts)
	case "verify":
		// /api/batches/{batch_id}/verify/{kind}
		//
		// - POST /api/batches/{batch_id}/verify/chain
		restParts := []string{}
		if len(parts) > 2 {
			restParts = parts[2:]
		}
		s.handleBatchVerify(w, r, batchID, restParts)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *Server) handleBatchSummary(w http.ResponseWriter, r *http.Request, batchID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	summary, err := s.store.GetBatchSummary(r.Context(), batchID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if summary == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("batch not found: %s", batchID))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": summary})
}

func (s *Server) handleBatchEvents(w http.ResponseWriter, r *http.Request, batchID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := parseInt(r.URL.Query().Get("limit"), 500)

	events, err := s.store.ListEvents(r.Context(), batchID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleBatchReports(w http.ResponseWriter, r *http.Request, batchID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	reports, err := s.store.ListReportsByBatch(r.Context(), batchID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (s *Server) handleBatchExports(w http.ResponseWriter, r *http.Request, batchID string, parts []string) {
	if len(parts) < 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	kind := strings.TrimSpace(parts[0])
	switch kind {
	case "audit-pdf":
		s.handleBatchExportAuditPDF(w, r, batchID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *Server) handleBatchExportAuditPDF(w http.ResponseWriter, r *http.Request, batchID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	type reqBody struct {
		Operator string `json:"operator,omitempty"`
		Note     string `json:"note,omitempty"`
	}
	var req reqBody
	_ = json.NewDecoder(r.Body).Decode(&req)

	res, err := auditpdf.Generate(r.Context(), s.store, auditpdf.Options{
		BatchID:  batchID,
		DBPath:   s.opts.DBPath,
		Operator: strings.TrimSpace(req.Operator),
		Note:     strings.TrimSpace(req.Note),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleBatchVerify(w http.ResponseWriter, r *http.Request, batchID string, parts []string) {
	if len(parts) < 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	kind := strings.TrimSpace(parts[0])
	switch kind {
	case "chain":
		s.handleBatchVerifyChain(w, r, batchID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// handleBatchVerifyChain 对批次事件流做审计链强校验：
// 重算每条 chain_hash 并核对 chain_prev_hash 连续性，输出逐条失败明细。
// 该接口用于快速发现“数据库被手工改动”的情况。
func (s *Server) handleBatchVerifyChain(w http.ResponseWriter, r *http.Request, batchID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	events, err := s.store.ListEvents(r.Context(), batchID, 5000)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	res := auditverify.VerifyEvents(events)
	writeJSON(w, http.StatusOK, res)
}

// handleDetect 执行检测周期（发号-渲染-识别-校验-留痕）。
// 与 CLI 的 detect 子命令走同一条 Run 路径，避免 UI/CLI 行为分叉。
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	type reqBody struct {
		BatchID       string `json:"batch_id,omitempty"`
		Count         int    `json:"count,omitempty"`
		SerialBackend string `json:"serial_backend,omitempty"`
	}
	var req reqBody
	_ = json.NewDecoder(r.Body).Decode(&req)

	res, err := detection.Run(r.Context(), detection.Options{
		DBPath:          s.opts.DBPath,
		BatchStorePath:  s.opts.BatchStorePath,
		AuditLogPath:    s.opts.AuditLogPath,
		ActiveBatchPath: s.opts.ActiveBatchPath,
		ProfilePath:     s.opts.ProfilePath,
		LabelDir:        s.opts.LabelDir,
		BatchID:         strings.TrimSpace(req.BatchID),
		SerialBackend:   strings.TrimSpace(req.SerialBackend),
		Count:           req.Count,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleReportRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/reports/")
	rest = strings.Trim(rest, "/")
	if rest == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(rest, "/")
	reportID := parts[0]
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	switch action {
	case "":
		s.handleReportInfo(w, r, reportID)
	case "file":
		s.handleReportFile(w, r, reportID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *Server) handleReportInfo(w http.ResponseWriter, r *http.Request, reportID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	info, err := s.store.GetReportByID(r.Context(), reportID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if info == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("report not found: %s", reportID))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"report": info})
}

func (s *Server) handleReportFile(w http.ResponseWriter, r *http.Request, reportID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	info, err := s.store.GetReportByID(r.Context(), reportID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if info == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("report not found: %s", reportID))
		return
	}
	if _, err := os.Stat(info.FilePath); err != nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("report file missing: %s", info.FilePath))
		return
	}
	http.ServeFile(w, r, info.FilePath)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{
		"error": err.Error(),
	})
}

func parseInt(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
