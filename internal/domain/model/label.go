package model

import "fmt"

// DeviceIdentity 表示一次发号产生的设备标识。
// 文本形式 {model}-{batch}-{serial:03d} 是打印到标签上的最终形态，发号后不可变。
type DeviceIdentity struct {
	ModelCode string // 型号代码，例如 T100X
	BatchID   string // 批次号（统一大写）
	Serial    int    // 批内序列号（自增后的值）
}

// Text 返回设备标识的规范文本形式。
// 序列号固定补零到 3 位；超过 999 的情况由发号器在生成前拦截（BatchExhaustedError）。
func (d DeviceIdentity) Text() string {
	return fmt.Sprintf("%s-%s-%03d", d.ModelCode, d.BatchID, d.Serial)
}

// 标签四个固定字段的名称。字段名会原样出现在校验负载与识别文本中。
const (
	FieldDeviceID = "Device ID"
	FieldBatchID  = "Batch ID"
	FieldDate     = "Date"
	FieldRoHS     = "RoHS"
)

// FieldOrder 是标签字段的固定顺序。
// 顺序是负载序列化的一部分，改动会破坏新旧标签的互认。
var FieldOrder = []string{FieldDeviceID, FieldBatchID, FieldDate, FieldRoHS}

// LabelFields 表示一张标签的全部字段内容。
// 四个字段必须齐全；Date / RoHS 是调用方给定的原样字符串，核心不做格式校验。
type LabelFields struct {
	DeviceID string
	BatchID  string
	Date     string
	RoHS     string
}

// BuildLabelFields 从设备标识与批次元数据构建标签字段。
func BuildLabelFields(identity DeviceIdentity, date, rohs string) LabelFields {
	return LabelFields{
		DeviceID: identity.Text(),
		BatchID:  identity.BatchID,
		Date:     date,
		RoHS:     rohs,
	}
}

// Value 按字段名取值，未知字段返回空串。
func (f LabelFields) Value(key string) string {
	switch key {
	case FieldDeviceID:
		return f.DeviceID
	case FieldBatchID:
		return f.BatchID
	case FieldDate:
		return f.Date
	case FieldRoHS:
		return f.RoHS
	default:
		return ""
	}
}

// Payload 将标签字段序列化为校验负载。
//
// 该字符串同时是编码进扫描码的内容和光学识别端需要还原的基准，
// 字段顺序与分隔符都是线上契约，必须逐字节稳定。
func (f LabelFields) Payload() string {
	return fmt.Sprintf("Device ID: %s | Batch ID: %s | Date: %s | RoHS: %s",
		f.DeviceID, f.BatchID, f.Date, f.RoHS)
}

// VerifyStatus 表示一次校验的总体结论。
type VerifyStatus string

const (
	// StatusPass 四个字段全部命中。
	StatusPass VerifyStatus = "PASS"
	// StatusReject 至少一个字段未在识别片段中出现。
	StatusReject VerifyStatus = "REJECT"
)

// FieldMatch 表示单个字段的比对结果。
type FieldMatch struct {
	Key     string `json:"key"`     // 字段名
	Matched bool   `json:"matched"` // 是否在至少一个识别片段中命中
}

// VerificationResult 表示一次标签校验的完整结果。
// 生成后不可变，是审计落库与上层指示灯/弹窗的唯一输入。
type VerificationResult struct {
	Status VerifyStatus `json:"status"`
	Fields []FieldMatch `json:"fields"` // 按固定字段顺序
}

// AllMatched 返回是否全部字段命中。
func (r VerificationResult) AllMatched() bool {
	for _, f := range r.Fields {
		if !f.Matched {
			return false
		}
	}
	return len(r.Fields) > 0
}
