package recognizer

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Recognizer 是光学识别协作方的统一入口。
// 输入是渲染产物的路径，输出是无序、尽力而为的文本片段，
// 核心不对片段数量、顺序与质量做任何假设。
type Recognizer interface {
	ReadLabel(ctx context.Context, labelRef string) ([]string, error)
}

// UnavailableError 表示识别协作方无法运行（命令缺失、进程失败等）。
// 此时校验无法进行，但发号与标签构建已经完成且不会回退。
type UnavailableError struct {
	Reason string
	Err    error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("recognizer unavailable: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("recognizer unavailable: %s", e.Reason)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Command 通过外部识别命令读取标签。
// 约定：命令最后一个参数是产物路径，stdout 每行输出一个识别片段。
type Command struct {
	// Line 是完整命令行，例如 "ocr-reader --lang en"。
	Line string
}

func NewCommand(line string) *Command {
	return &Command{Line: strings.TrimSpace(line)}
}

// ReadLabel 执行外部识别命令并收集片段。
// 命令不存在或执行失败都归为 UnavailableError，不做重试。
func (c *Command) ReadLabel(ctx context.Context, labelRef string) ([]string, error) {
	parts := strings.Fields(c.Line)
	if len(parts) == 0 {
		return nil, &UnavailableError{Reason: "recognizer command is empty"}
	}

	bin, err := exec.LookPath(parts[0])
	if err != nil {
		return nil, &UnavailableError{Reason: fmt.Sprintf("command not found: %s", parts[0]), Err: err}
	}

	args := append(parts[1:], labelRef)
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return nil, &UnavailableError{Reason: fmt.Sprintf("run %s", parts[0]), Err: err}
	}

	var fragments []string
	sc := bufio.NewScanner(&stdout)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			fragments = append(fragments, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &UnavailableError{Reason: "read recognizer output", Err: err}
	}
	return fragments, nil
}
