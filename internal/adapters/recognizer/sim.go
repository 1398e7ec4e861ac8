package recognizer

import (
	"bufio"
	"context"
	"os"
	"strings"
)

// Sim 是内置模拟识别器：读取渲染侧输出的文本图纸（.txt 边车文件），
// 并按档位注入“视觉近似”噪声。用于没有真实识别命令的产线联调与测试。
//
// 噪声只覆盖归一化设计上能容忍的失真（I/1、O/0 混淆与大小写、空白抖动），
// 这样模拟链路在标签内容正确时应当稳定 PASS。
type Sim struct {
	// Noise 为 "visual" 时注入字符混淆；"off" 或空则原样返回。
	Noise string
	// DropFields 指定从输出中丢弃的行（按包含的字段名），用于模拟漏读。
	DropFields []string
}

func NewSim(noise string) *Sim {
	return &Sim{Noise: strings.ToLower(strings.TrimSpace(noise))}
}

// ReadLabel 读取文本图纸并逐行返回片段。
func (s *Sim) ReadLabel(ctx context.Context, labelRef string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(labelRef)
	if err != nil {
		return nil, &UnavailableError{Reason: "open label sheet text", Err: err}
	}
	defer f.Close()

	var fragments []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if s.dropped(line) {
			continue
		}
		if s.Noise == "visual" {
			line = visualNoise(line)
		}
		fragments = append(fragments, line)
	}
	if err := sc.Err(); err != nil {
		return nil, &UnavailableError{Reason: "read label sheet text", Err: err}
	}
	return fragments, nil
}

func (s *Sim) dropped(line string) bool {
	for _, field := range s.DropFields {
		if field != "" && strings.Contains(line, field) {
			return true
		}
	}
	return false
}

// visualNoise 模拟常见光学混淆：数字 1/0 读成字母 I/O，整体小写化。
// 确定性变换，便于测试断言。
func visualNoise(line string) string {
	line = strings.ReplaceAll(line, "1", "I")
	line = strings.ReplaceAll(line, "0", "O")
	return strings.ToLower(line)
}
