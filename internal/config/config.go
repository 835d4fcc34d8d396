package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"lpr-service/internal/domain/anpr"
)

// Config is the full process configuration, loaded once at startup and
// injected read-only into the components that need it.
type Config struct {
	Server    ServerConfig        `mapstructure:"server"`
	Detection DetectionConfig     `mapstructure:"detection"`
	Preview   PreviewConfig       `mapstructure:"preview"`
	Detector  DetectorConfig      `mapstructure:"detector"`
	Parking   ParkingConfig       `mapstructure:"parking"`
	Cameras   []anpr.CameraSource `mapstructure:"cameras"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

type DetectionConfig struct {
	MinConfidence float64       `mapstructure:"min_confidence"`
	Cooldown      time.Duration `mapstructure:"cooldown"`
	FrameSkip     int           `mapstructure:"frame_skip"`
	AutoEntryExit bool          `mapstructure:"auto_entry_exit"`
	StopTimeout   time.Duration `mapstructure:"stop_timeout"`
}

type PreviewConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Width    int           `mapstructure:"width"`
	Height   int           `mapstructure:"height"`
	Quality  int           `mapstructure:"quality"`
}

type DetectorConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ParkingConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "5001")

	viper.SetDefault("detection.min_confidence", 0.6)
	viper.SetDefault("detection.cooldown", 3*time.Second)
	viper.SetDefault("detection.frame_skip", 2)
	viper.SetDefault("detection.auto_entry_exit", false)
	viper.SetDefault("detection.stop_timeout", 5*time.Second)

	viper.SetDefault("preview.interval", 200*time.Millisecond)
	viper.SetDefault("preview.width", 640)
	viper.SetDefault("preview.height", 480)
	viper.SetDefault("preview.quality", 80)

	viper.SetDefault("detector.url", "http://127.0.0.1:5002")
	viper.SetDefault("detector.timeout", 30*time.Second)

	viper.SetDefault("parking.url", "http://127.0.0.1:5000")
	viper.SetDefault("parking.timeout", 10*time.Second)
}

// Load reads configuration from a yaml file and LPR_* environment
// variables, with defaults for everything but the camera list. With an
// empty path it searches the working directory for an optional
// config.yaml; an explicit path must exist.
func Load(path string) (*Config, error) {
	setDefaults()

	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("lpr")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Detection.MinConfidence < 0 || c.Detection.MinConfidence > 1 {
		return fmt.Errorf("detection.min_confidence must be in [0,1], got %v", c.Detection.MinConfidence)
	}
	if c.Detection.FrameSkip < 1 {
		c.Detection.FrameSkip = 1
	}
	seen := make(map[string]struct{}, len(c.Cameras))
	for i := range c.Cameras {
		cam := &c.Cameras[i]
		if cam.ID == "" {
			return fmt.Errorf("camera %d: id is required", i)
		}
		if _, dup := seen[cam.ID]; dup {
			return fmt.Errorf("camera %q configured twice", cam.ID)
		}
		seen[cam.ID] = struct{}{}
		switch cam.Role {
		case anpr.RoleEntry, anpr.RoleExit, anpr.RoleMonitor:
		default:
			return fmt.Errorf("camera %q: unknown role %q", cam.ID, cam.Role)
		}
		if cam.Source == "" {
			return fmt.Errorf("camera %q: source is required", cam.ID)
		}
	}
	return nil
}
