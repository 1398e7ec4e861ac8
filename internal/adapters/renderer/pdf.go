package renderer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"label-inspector/internal/domain/model"
	"label-inspector/internal/platform/hash"

	"github.com/phpdave11/gofpdf"
)

// PDF 用 gofpdf 生成打印用标签图纸：
// 左侧是四行人读字段，底部是机读负载行（打印工位把它编码成扫描码）。
//
// 同时写出 .txt 边车文件（图纸文本内容），供模拟识别器在没有真实
// 光学设备的环境里回读。
type PDF struct {
	// OutputDir 是产物目录，按设备标识命名文件。
	OutputDir string
}

func NewPDF(outputDir string) *PDF {
	return &PDF{OutputDir: outputDir}
}

// Render 输出一张标签图纸与其文本边车。
func (p *PDF) Render(ctx context.Context, fields model.LabelFields, payload string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(p.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create label output directory: %w", err)
	}

	base := sanitizeName(fields.DeviceID)
	sheetPath := filepath.Join(p.OutputDir, base+".pdf")
	textPath := filepath.Join(p.OutputDir, base+".txt")

	lines := []string{
		fmt.Sprintf("%s: %s", model.FieldDeviceID, fields.DeviceID),
		fmt.Sprintf("%s: %s", model.FieldBatchID, fields.BatchID),
		fmt.Sprintf("%s: %s", model.FieldDate, fields.Date),
		fmt.Sprintf("%s: %s", model.FieldRoHS, fields.RoHS),
	}

	// gofpdf 的内置尺寸表没有 "A7"，用自定义尺寸给出 A7（74×105 mm）。
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "L",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: 74, Ht: 105},
	})
	pdf.SetMargins(6, 6, 6)
	pdf.SetAutoPageBreak(false, 6)
	pdf.SetTitle("Label "+fields.DeviceID, false)
	pdf.AddPage()

	pdf.SetFont("Courier", "B", 11)
	for _, line := range lines {
		pdf.CellFormat(0, 6, line, "", 1, "L", false, 0, "")
	}

	pdf.Ln(2)
	pdf.SetFont("Courier", "", 7)
	pdf.SetTextColor(80, 80, 80)
	pdf.MultiCell(0, 3.5, payload, "", "L", false)

	if err := pdf.OutputFileAndClose(sheetPath); err != nil {
		return nil, fmt.Errorf("write label sheet: %w", err)
	}

	// 边车内容 = 四行字段 + 负载行，与图纸上的文本一致。
	text := strings.Join(append(append([]string{}, lines...), payload), "\n") + "\n"
	if err := os.WriteFile(textPath, []byte(text), 0o644); err != nil {
		return nil, fmt.Errorf("write label sheet text: %w", err)
	}

	sum, _, err := hash.File(sheetPath)
	if err != nil {
		return nil, fmt.Errorf("sha256 label sheet: %w", err)
	}

	return &Result{
		SheetPath:   sheetPath,
		TextPath:    textPath,
		SheetSHA256: sum,
	}, nil
}

// sanitizeName 把设备标识转成安全文件名（标识本身只含字母数字和连字符，这里兜底）。
func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "label"
	}
	return b.String()
}
