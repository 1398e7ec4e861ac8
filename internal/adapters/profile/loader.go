package profile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"label-inspector/internal/domain/model"

	"gopkg.in/yaml.v3"
)

// Loader 负责从磁盘读取并校验标签工位配置。
type Loader struct {
	File string
}

// LoadedProfile 是加载后的配置和其文件哈希，用于留痕与版本确认。
type LoadedProfile struct {
	Profile model.LabelProfile
	SHA256  string
}

func NewLoader(file string) *Loader {
	return &Loader{File: file}
}

// Load 读取配置文件并执行基础结构校验。
func (l *Loader) Load(ctx context.Context) (*LoadedProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(l.File)
	if err != nil {
		return nil, fmt.Errorf("read label profile: %w", err)
	}

	var p model.LabelProfile
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse label profile: %w", err)
	}
	if err := validateProfile(p); err != nil {
		return nil, err
	}

	sum := sha256.Sum256(raw)
	return &LoadedProfile{
		Profile: p,
		SHA256:  hex.EncodeToString(sum[:]),
	}, nil
}

// validateProfile 检查配置的完整性。
// Date 与 RoHS 的取值本身不做枚举校验（打印什么就校验什么），只要求非空。
func validateProfile(p model.LabelProfile) error {
	if strings.TrimSpace(p.Version) == "" {
		return errors.New("label profile: version is required")
	}
	if strings.TrimSpace(p.BundleType) != "label_profile" {
		return fmt.Errorf("label profile: unexpected bundle_type: %q", p.BundleType)
	}
	if strings.TrimSpace(p.ModelCode) == "" {
		return errors.New("label profile: model_code is required")
	}
	if strings.TrimSpace(p.RoHS) == "" {
		return errors.New("label profile: rohs is required")
	}

	noise := strings.ToLower(strings.TrimSpace(p.Recognizer.Noise))
	switch noise {
	case "", "off", "visual":
	default:
		return fmt.Errorf("label profile: invalid recognizer noise: %q (expect off|visual)", p.Recognizer.Noise)
	}
	return nil
}
