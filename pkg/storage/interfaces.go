package storage

// Settings are the remediation defaults the planner may write. Nothing here is
// ever derived from DNS: every value is supplied by an operator.
type Settings struct {
	SPFInclude         string   `json:"spf_include"`
	DMARCReportAddress string   `json:"dmarc_rua"`
	MXTarget           string   `json:"mx_target"`
	MXPriority         uint16   `json:"mx_priority"`
	ApexTarget         string   `json:"apex_a"`
	WWWTarget          string   `json:"www_cname"`
	TTL                int      `json:"ttl"`
	DKIMSelectors      []string `json:"dkim_selectors"`
}

// Config represents the application state stored in JSON
type Config struct {
	Settings Settings `json:"settings"`
}

// ConfigStorage defines the interface for configuration storage
type ConfigStorage interface {
	Load() (*Config, error)
	Save(cfg *Config) error
}

// SettingsStorage defines the interface for reading and editing remediation settings
type SettingsStorage interface {
	GetSettings() (Settings, error)
	UpdateSettings(update func(s *Settings)) (Settings, error)
}

// CombinedStorage implements every storage interface
type CombinedStorage interface {
	ConfigStorage
	SettingsStorage
}
