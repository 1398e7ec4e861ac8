package verifier

import "strings"

// Normalize 把文本归一到统一的比对字母表：
// 先全部大写，再做 I->1、O->0 的视觉混淆折叠，然后去掉空格与冒号，
// 最后裁掉首尾空白。变换顺序固定，期望侧与识别侧必须走同一条路。
//
// 只折叠这两对最常见的光学混淆，不做编辑距离之类的模糊比对：
// 归一后做子串判断已经覆盖了间距/标点抖动，引入距离阈值反而难解释。
func Normalize(text string) string {
	text = strings.ToUpper(text)
	text = strings.ReplaceAll(text, "I", "1")
	text = strings.ReplaceAll(text, "O", "0")
	text = strings.ReplaceAll(text, " ", "")
	text = strings.ReplaceAll(text, ":", "")
	return strings.TrimSpace(text)
}
