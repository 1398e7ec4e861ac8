package verifier

import (
	"fmt"
	"strings"

	"label-inspector/internal/domain/model"
)

// Verify 将期望的标签字段与识别片段逐字段比对。
//
// 每个字段按 "{字段名}: {值}" 归一化后，在任意一个归一化片段中找子串：
// 找到即命中（存在式匹配，不要求整行相等——识别文本常带周边噪声）。
// 四个字段全部命中为 PASS，任何一个缺席为 REJECT，没有部分得分。
//
// 这是偏召回的设计：噪声碰巧包含期望子串会误收，字段被识别严重损坏
// 会误拒，两者都是已接受的取舍而不是缺陷。
func Verify(fields model.LabelFields, fragments []string) model.VerificationResult {
	normalized := make([]string, 0, len(fragments))
	for _, f := range fragments {
		normalized = append(normalized, Normalize(f))
	}

	result := model.VerificationResult{
		Status: model.StatusPass,
		Fields: make([]model.FieldMatch, 0, len(model.FieldOrder)),
	}

	for _, key := range model.FieldOrder {
		expected := Normalize(fmt.Sprintf("%s: %s", key, fields.Value(key)))
		matched := false
		for _, frag := range normalized {
			if strings.Contains(frag, expected) {
				matched = true
				break
			}
		}
		if !matched {
			result.Status = model.StatusReject
		}
		result.Fields = append(result.Fields, model.FieldMatch{Key: key, Matched: matched})
	}

	return result
}
