package renderer

import (
	"context"

	"label-inspector/internal/domain/model"
)

// Renderer 是标签渲染协作方的统一入口。
// 核心只要求产物存在并返回其位置，不检查版式、二维码矩阵等呈现细节。
type Renderer interface {
	Render(ctx context.Context, fields model.LabelFields, payload string) (*Result, error)
}

// Result 描述一次渲染的产物。
type Result struct {
	// SheetPath 是打印用标签图纸（PDF）。
	SheetPath string
	// TextPath 是图纸文本内容的边车文件，每行一条，供模拟识别器读取。
	TextPath string
	// SheetSHA256 是图纸文件哈希，随审计事件留痕。
	SheetSHA256 string
}
