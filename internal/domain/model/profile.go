package model

// LabelProfile 是标签工位配置包（YAML）。
// 描述一条产线当前使用的型号、日期与合规标记，以及识别/渲染协作方的接入参数。
type LabelProfile struct {
	Version    string `yaml:"version"`
	BundleType string `yaml:"bundle_type"` // 固定为 label_profile
	ModelCode  string `yaml:"model_code"`  // 型号代码，例如 T100X
	Date       string `yaml:"date"`        // 标签日期字段，原样打印（留空则由调用方决定）
	RoHS       string `yaml:"rohs"`        // 合规标记，例如 YES / NO

	Recognizer RecognizerProfile `yaml:"recognizer"`
	Renderer   RendererProfile   `yaml:"renderer"`
}

// RecognizerProfile 描述光学识别协作方的接入方式。
type RecognizerProfile struct {
	// Command 是外部识别命令（每行输出一个识别片段）。
	// 留空时使用内置模拟识别器（读取渲染侧记录的负载并注入可容忍噪声）。
	Command string `yaml:"command,omitempty"`
	// Noise 控制模拟识别器的噪声档位：off / visual。
	Noise string `yaml:"noise,omitempty"`
}

// RendererProfile 描述标签渲染协作方的输出位置。
type RendererProfile struct {
	// OutputDir 是标签图纸产物目录。
	OutputDir string `yaml:"output_dir,omitempty"`
}
