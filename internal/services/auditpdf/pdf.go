package auditpdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqliteadapter "label-inspector/internal/adapters/store/sqlite"
	"label-inspector/internal/domain/model"
	"label-inspector/internal/platform/hash"
	"label-inspector/internal/services/auditverify"

	"github.com/phpdave11/gofpdf"
)

// 批次追溯 PDF 报告（audit_pdf）
//
// 设计目标：
// - 先“能用”：输出一个可打印、可长期归档的批次追溯文件
// - 先“可追溯”：报告登记到 reports 表，并写入 audit_events 留痕
// - 链路摘要：内嵌审计链强校验结果，报告本身能说明事件流是否被动过

type Options struct {
	BatchID  string
	DBPath   string
	Operator string
	Note     string
}

type Result struct {
	ReportID    string   `json:"report_id"`
	PDFPath     string   `json:"pdf_path"`
	PDFSHA256   string   `json:"pdf_sha256"`
	ChainOK     bool     `json:"chain_ok"`
	Warnings    []string `json:"warnings,omitempty"`
	GeneratedAt int64    `json:"generated_at"`
}

const pdfGeneratorVer = "auditpdf-0.1.0"

// Generate 生成批次追溯 PDF，并在 reports 表中登记为 report_type=audit_pdf。
func Generate(ctx context.Context, store *sqliteadapter.Store, opts Options) (*Result, error) {
	batchID := strings.ToUpper(strings.TrimSpace(opts.BatchID))
	if batchID == "" {
		return nil, fmt.Errorf("batch_id is required")
	}
	dbPath := strings.TrimSpace(opts.DBPath)
	if dbPath == "" {
		return nil, fmt.Errorf("db_path is required")
	}
	operator := strings.TrimSpace(opts.Operator)
	if operator == "" {
		operator = "system"
	}

	summary, err := store.GetBatchSummary(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("get batch summary: %w", err)
	}
	if summary == nil {
		return nil, fmt.Errorf("batch not found: %s", batchID)
	}

	warnings := []string{}

	events, err := store.ListEvents(ctx, batchID, 5000)
	if err != nil {
		warnings = append(warnings, "list events failed: "+err.Error())
		events = []model.AuditEvent{}
	}

	chain := auditverify.VerifyEvents(events)

	// 事件太多时只展示末尾窗口，汇总数字仍来自全量。
	const maxEvents = 300
	eventRows := events
	if len(eventRows) > maxEvents {
		eventRows = eventRows[len(eventRows)-maxEvents:]
	}

	now := time.Now().Unix()
	reportDir := filepath.Join(filepath.Dir(dbPath), "reports")
	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir reports: %w", err)
	}
	pdfPath := filepath.Join(reportDir, fmt.Sprintf("%s_audit_%d.pdf", batchID, now))

	pdf := buildPDF(*summary, eventRows, chain, operator, opts.Note, warnings, now)
	if err := pdf.OutputFileAndClose(pdfPath); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}

	sum, _, err := hash.File(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("sha256 pdf: %w", err)
	}

	reportID, err := store.SaveReport(ctx, batchID, "audit_pdf", pdfPath, sum, pdfGeneratorVer, "ready")
	if err != nil {
		return nil, fmt.Errorf("save report: %w", err)
	}

	// 审计留痕：export/audit_pdf
	if _, err := store.AppendEvent(ctx, model.AuditEvent{
		BatchID:   batchID,
		EventType: "export",
		Action:    "audit_pdf",
		Status:    "success",
		DetailJSON: []byte(fmt.Sprintf(
			`{"pdf":%q,"pdf_sha256":%q,"chain_ok":%v,"event_count":%d,"operator":%q}`,
			pdfPath, sum, chain.OK, chain.Total, operator,
		)),
	}); err != nil {
		warnings = append(warnings, "audit event append failed: "+err.Error())
	}

	return &Result{
		ReportID:    reportID,
		PDFPath:     pdfPath,
		PDFSHA256:   sum,
		ChainOK:     chain.OK,
		Warnings:    warnings,
		GeneratedAt: now,
	}, nil
}

func buildPDF(
	summary model.BatchSummary,
	events []model.AuditEvent,
	chain auditverify.Result,
	operator string,
	note string,
	warnings []string,
	generatedAt int64,
) *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(14, 14, 14)
	pdf.SetAutoPageBreak(true, 14)
	pdf.SetTitle("Label Inspector - Batch Traceability Report", false)

	pdf.AddPage()

	// 标题
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 9, "Label Inspector - Batch Traceability Report", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated at: %s", fmtTime(generatedAt)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Operator: %s", operator), "", 1, "L", false, 0, "")
	if strings.TrimSpace(note) != "" {
		pdf.MultiCell(0, 5, fmt.Sprintf("Note: %s", note), "", "L", false)
	}
	pdf.Ln(2)

	// Overview
	sectionTitle(pdf, "1. Batch Overview")
	kv(pdf, "Batch ID", summary.BatchID)
	kv(pdf, "Last Serial", fmt.Sprintf("%03d", summary.LastSerial))
	kv(pdf, "Pass Count", fmt.Sprintf("%d", summary.PassCount))
	kv(pdf, "Reject Count", fmt.Sprintf("%d", summary.RejectCount))
	kv(pdf, "Updated At", fmtTime(summary.UpdatedAt))
	pdf.Ln(2)

	// Chain
	sectionTitle(pdf, "2. Audit Chain Verification")
	kv(pdf, "Chain OK", fmt.Sprintf("%v", chain.OK))
	kv(pdf, "Total Events", fmt.Sprintf("%d", chain.Total))
	kv(pdf, "Failed", fmt.Sprintf("%d (prev=%d, chain=%d)", chain.Failed, chain.PrevHashFailed, chain.ChainHashFailed))
	if chain.LastChainHash != "" {
		kv(pdf, "Last Chain Hash", chain.LastChainHash)
	}
	for _, f := range chain.Failures {
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(160, 40, 40)
		pdf.MultiCell(0, 4.5, fmt.Sprintf("- #%d %s %s/%s: %s", f.Index, f.EventID, f.EventType, f.Action, f.Message), "", "L", false)
	}
	pdf.Ln(2)

	// Warnings
	if len(warnings) > 0 {
		sectionTitle(pdf, "Warnings")
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(120, 80, 0)
		for _, w := range warnings {
			pdf.MultiCell(0, 4.5, "- "+w, "", "L", false)
		}
		pdf.Ln(2)
	}

	// Events
	sectionTitle(pdf, "3. Events (Tail Window)")
	if len(events) == 0 {
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(90, 90, 90)
		pdf.MultiCell(0, 5, "(empty)", "", "L", false)
	} else {
		for _, e := range events {
			line := fmt.Sprintf("[%s] %s %s/%s device=%s date=%s rohs=%s",
				fmtTime(e.OccurredAt), e.Status, e.EventType, e.Action, e.DeviceID, e.LabelDate, e.RoHS)
			pdf.SetFont("Helvetica", "", 9)
			pdf.SetTextColor(30, 30, 30)
			pdf.MultiCell(0, 4.5, line, "", "L", false)
		}
	}

	return pdf
}

func sectionTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(20, 20, 20)
	pdf.CellFormat(0, 7, title, "", 1, "L", false, 0, "")
}

func kv(pdf *gofpdf.Fpdf, key, value string) {
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(30, 30, 30)
	pdf.CellFormat(42, 5.5, key+":", "", 0, "L", false, 0, "")
	pdf.MultiCell(0, 5.5, value, "", "L", false)
}

func fmtTime(ts int64) string {
	if ts <= 0 {
		return "-"
	}
	return time.Unix(ts, 0).Format("2006-01-02 15:04:05")
}
