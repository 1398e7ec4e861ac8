package app

// Config 存放应用级默认路径配置。
type Config struct {
	DBPath          string
	BatchStorePath  string
	AuditLogPath    string
	ActiveBatchPath string
	ProfilePath     string
	LabelDir        string
}

// DefaultConfig 返回单工位本地部署的默认配置。
func DefaultConfig() Config {
	return Config{
		DBPath:          "data/labeler.db",
		BatchStorePath:  "data/batch_serials.json",
		AuditLogPath:    "data/traceability_log.csv",
		ActiveBatchPath: "active_batch.txt",
		ProfilePath:     "profiles/label_profile.template.yaml",
		LabelDir:        "data/labels",
	}
}
