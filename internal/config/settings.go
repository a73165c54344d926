package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// Rule is one row of the threshold policy table. The table is versioned
// configuration, not hot business logic; changing it requires a config
// update, not a deploy.
type Rule struct {
	Threshold     uint32 `json:"threshold"`
	WindowSeconds uint32 `json:"window_seconds"`
	Severity      string `json:"severity"`
	AutoBlock     bool   `json:"auto_block"`
}

type Config struct {
	PolicyVersion string `json:"policy_version"`

	// Rules maps event type -> policy row. Keys must stay within the
	// closed event type enum.
	Rules map[string]Rule `json:"rules"`

	Ingest struct {
		QueueSize     uint32 `json:"queue_size"`
		BatchWindowMs uint32 `json:"batch_window_ms"`
		BatchMaxItems uint32 `json:"batch_max_items"`
	} `json:"ingest"`

	Retention struct {
		EventHorizonDays uint32 `json:"event_horizon_days"`
		SweepTimer       Timer  `json:"sweep_timer"`
	} `json:"retention"`

	GeoIP struct {
		CountryDBPath string `json:"country_db_path"`
		ASNDBPath     string `json:"asn_db_path"`
	} `json:"geoip"`

	Server struct {
		MaxConnections  int    `json:"max_connections"`
		RequestTimeoutS uint32 `json:"request_timeout_s"`
	} `json:"server"`
}

type Timer struct {
	Days    uint32 `json:"days"`
	Hours   uint32 `json:"hours"`
	Minutes uint32 `json:"minutes"`
	Seconds uint32 `json:"seconds"`
}

// Duration converts the timer to a time.Duration.
func (t Timer) Duration() time.Duration {
	return time.Duration(t.Days)*24*time.Hour +
		time.Duration(t.Hours)*time.Hour +
		time.Duration(t.Minutes)*time.Minute +
		time.Duration(t.Seconds)*time.Second
}

const settingsFilePath = "data/settings.json"

var (
	//go:embed default_settings.json
	defaultConfig []byte

	configValue atomic.Value
	configMu    sync.Mutex
	onChange    []func(Config)

	InProductionMode bool
)

// RegisterOnChange registers a callback invoked after every applied
// configuration update, local or remote. Callbacks must not call SetConfig.
func RegisterOnChange(fn func(Config)) {
	configMu.Lock()
	defer configMu.Unlock()
	onChange = append(onChange, fn)
}

func init() {
	configValue.Store(Config{})
}

func SetProductionMode(production bool) {
	InProductionMode = production
}

func ReadSettings() {
	data, err := os.ReadFile(settingsFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("Settings file not found, creating with default configuration")

			if err = os.MkdirAll("data", os.ModePerm); err != nil {
				log.Error("Error creating directory for settings file:", err)
				return
			}

			if err = os.WriteFile(settingsFilePath, defaultConfig, os.ModePerm); err != nil {
				log.Error("Error writing default settings file:", err)
				return
			}

			data = defaultConfig
		} else {
			log.Error("Error reading settings file:", err)
			return
		}
	}

	var newConfig Config
	if err = json.Unmarshal(data, &newConfig); err != nil {
		log.Error("Error unmarshalling settings file:", err)
		return
	}

	if err := applyConfigUpdate(newConfig, configUpdateOptions{source: "file"}); err != nil {
		log.Error("Error applying configuration from settings file:", err)
		return
	}

	log.Debug("Settings file loaded successfully")
}

func SetConfig(newConfig Config) {
	if err := UpdateConfig(newConfig); err != nil {
		log.Error("Error applying configuration update:", err)
	}
}

// UpdateConfig applies, persists, and broadcasts a configuration update,
// reporting validation failures to the caller.
func UpdateConfig(newConfig Config) error {
	if err := applyConfigUpdate(newConfig, configUpdateOptions{persistToFile: true, broadcast: true, source: "local"}); err != nil {
		return err
	}

	log.Debug("Configuration updated and written to file successfully")
	return nil
}

type configUpdateOptions struct {
	persistToFile bool
	broadcast     bool
	source        string
}

func applyConfigUpdate(newConfig Config, opts configUpdateOptions) error {
	configMu.Lock()
	defer configMu.Unlock()

	if err := validateRules(newConfig); err != nil {
		return err
	}

	configValue.Store(newConfig)

	var errs []error

	if opts.persistToFile {
		data, err := json.MarshalIndent(newConfig, "", "  ")
		if err != nil {
			log.Error("Error marshalling new configuration:", err)
			errs = append(errs, err)
		} else if err := os.WriteFile(settingsFilePath, data, os.ModePerm); err != nil {
			log.Error("Error writing new configuration to file:", err)
			errs = append(errs, err)
		}
	}

	if opts.broadcast {
		payload, err := json.Marshal(newConfig)
		if err != nil {
			log.Error("Error serializing configuration for broadcast:", err)
			errs = append(errs, err)
		} else if err := broadcastConfigUpdate(payload); err != nil {
			log.Error("Error broadcasting configuration update:", err)
			errs = append(errs, err)
		}
	}

	if opts.source != "" {
		log.Debug("Configuration applied", "source", opts.source)
	}

	for _, fn := range onChange {
		fn(newConfig)
	}

	return errors.Join(errs...)
}

func validateRules(cfg Config) error {
	for name, rule := range cfg.Rules {
		if rule.Threshold == 0 {
			return errors.New("config: rule " + name + " has zero threshold")
		}
		if rule.WindowSeconds == 0 {
			return errors.New("config: rule " + name + " has zero window")
		}
	}
	return nil
}

func GetConfig() Config {
	return configValue.Load().(Config)
}
