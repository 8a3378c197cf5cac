package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/homee/internal/logger"
)

// Config holds the settings of the monitor daemon and its control client.
type Config struct {
	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level" koanf:"log_level"`
	// LogFormat is console or json.
	LogFormat string `yaml:"log_format" koanf:"log_format"`
	// HTTPAddr is the dashboard listen address. Empty disables the dashboard.
	HTTPAddr string `yaml:"http_addr" koanf:"http_addr"`
	// GRPCAddr is the control API address, used by the daemon and homee-ctl.
	GRPCAddr string `yaml:"grpc_addr" koanf:"grpc_addr"`
	// StateFile is the path to the JSON file storing the control state.
	StateFile string `yaml:"state_file" koanf:"state_file"`
	// Timeout bounds control RPCs and server shutdown.
	Timeout time.Duration `yaml:"timeout" koanf:"timeout"`

	Hardware Hardware `yaml:"hardware" koanf:"hardware"`
	Sensor   Sensor   `yaml:"sensor" koanf:"sensor"`
	Motion   Motion   `yaml:"motion" koanf:"motion"`
	Intruder Intruder `yaml:"intruder" koanf:"intruder"`
	Badge    Badge    `yaml:"badge" koanf:"badge"`
	Button   Button   `yaml:"button" koanf:"button"`
	Events   Events   `yaml:"events" koanf:"events"`
}

// Hardware selects the drivers and their wiring. Pins use BCM numbering.
type Hardware struct {
	// Driver is "gpio" on the Raspberry Pi or "sim" anywhere else.
	Driver string `yaml:"driver" koanf:"driver"`
	// CMPerSecond converts an echo time into centimetres.
	CMPerSecond float64 `yaml:"cm_per_second" koanf:"cm_per_second"`

	MotionTriggerPin   int `yaml:"motion_trigger_pin" koanf:"motion_trigger_pin"`
	MotionEchoPin      int `yaml:"motion_echo_pin" koanf:"motion_echo_pin"`
	IntruderTriggerPin int `yaml:"intruder_trigger_pin" koanf:"intruder_trigger_pin"`
	IntruderEchoPin    int `yaml:"intruder_echo_pin" koanf:"intruder_echo_pin"`
	MotionLEDPin       int `yaml:"motion_led_pin" koanf:"motion_led_pin"`
	ClearLEDPin        int `yaml:"clear_led_pin" koanf:"clear_led_pin"`
	BadgeLEDPin        int `yaml:"badge_led_pin" koanf:"badge_led_pin"`
	AlertLEDPin        int `yaml:"alert_led_pin" koanf:"alert_led_pin"`
	RelayPin           int `yaml:"relay_pin" koanf:"relay_pin"`
	ButtonPin          int `yaml:"button_pin" koanf:"button_pin"`

	// LCDPort is the serial display device. Empty disables the display.
	LCDPort string `yaml:"lcd_port" koanf:"lcd_port"`
	LCDBaud int    `yaml:"lcd_baud" koanf:"lcd_baud"`
	// RFIDPort is the RDM6300 device. Empty disables badge reading.
	RFIDPort string `yaml:"rfid_port" koanf:"rfid_port"`
	RFIDBaud int    `yaml:"rfid_baud" koanf:"rfid_baud"`

	Sim Sim `yaml:"sim" koanf:"sim"`
}

// Sim shapes the simulated environment.
type Sim struct {
	MotionBaseCM   float64       `yaml:"motion_base_cm" koanf:"motion_base_cm"`
	IntruderBaseCM float64       `yaml:"intruder_base_cm" koanf:"intruder_base_cm"`
	JitterCM       float64       `yaml:"jitter_cm" koanf:"jitter_cm"`
	VisitEvery     time.Duration `yaml:"visit_every" koanf:"visit_every"`
	VisitFor       time.Duration `yaml:"visit_for" koanf:"visit_for"`
	VisitCM        float64       `yaml:"visit_cm" koanf:"visit_cm"`
	BadgeInterval  time.Duration `yaml:"badge_interval" koanf:"badge_interval"`
	Badges         []string      `yaml:"badges" koanf:"badges"`
}

// Sensor bounds individual distance readings.
type Sensor struct {
	Timeout       time.Duration `yaml:"timeout" koanf:"timeout"`
	MaxRangeCM    float64       `yaml:"max_range_cm" koanf:"max_range_cm"`
	DegradedAfter int           `yaml:"degraded_after" koanf:"degraded_after"`
}

// Motion configures calibration and the motion state machine.
type Motion struct {
	CalibrationWindow   int           `yaml:"calibration_window" koanf:"calibration_window"`
	CalibrationCount    int           `yaml:"calibration_count" koanf:"calibration_count"`
	CalibrationAttempts int           `yaml:"calibration_attempts" koanf:"calibration_attempts"`
	CalibrationInterval time.Duration `yaml:"calibration_interval" koanf:"calibration_interval"`
	Window              int           `yaml:"window" koanf:"window"`
	ThresholdCM         float64       `yaml:"threshold_cm" koanf:"threshold_cm"`
	Grace               time.Duration `yaml:"grace" koanf:"grace"`
	Cadence             time.Duration `yaml:"cadence" koanf:"cadence"`
	WatchTick           time.Duration `yaml:"watch_tick" koanf:"watch_tick"`
}

// Intruder configures the close-range alarm.
type Intruder struct {
	BandMinCM     float64       `yaml:"band_min_cm" koanf:"band_min_cm"`
	BandMaxCM     float64       `yaml:"band_max_cm" koanf:"band_max_cm"`
	FlashDuration time.Duration `yaml:"flash_duration" koanf:"flash_duration"`
	FlashInterval time.Duration `yaml:"flash_interval" koanf:"flash_interval"`
	Interval      time.Duration `yaml:"interval" koanf:"interval"`
}

// Badge configures the presence loop.
type Badge struct {
	Pulse        time.Duration `yaml:"pulse" koanf:"pulse"`
	RepeatWindow time.Duration `yaml:"repeat_window" koanf:"repeat_window"`
}

// Button configures the light-system push button.
type Button struct {
	Debounce time.Duration `yaml:"debounce" koanf:"debounce"`
}

// Events configures the event writers.
type Events struct {
	CSVPath     string `yaml:"csv_path" koanf:"csv_path"`
	BufferSize  int    `yaml:"buffer_size" koanf:"buffer_size"`
	HistorySize int    `yaml:"history_size" koanf:"history_size"`
	// MQTTBroker enables MQTT publishing when set (tcp://host:1883).
	MQTTBroker   string `yaml:"mqtt_broker" koanf:"mqtt_broker"`
	MQTTTopic    string `yaml:"mqtt_topic" koanf:"mqtt_topic"`
	MQTTClientID string `yaml:"mqtt_client_id" koanf:"mqtt_client_id"`
}

// Drivers.
const (
	DriverGPIO = "gpio"
	DriverSim  = "sim"
)

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "homee.yaml"

	// DefaultStateFilename is the default filename for the control state JSON.
	DefaultStateFilename = "homee-state.json"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultFilePermissions is the default file permission for config and state files.
	DefaultFilePermissions = 0o600

	// DefaultDirPermissions is used for directories created for state files.
	DefaultDirPermissions = 0o750
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errInvalid is wrapped by every validation failure.
	errInvalid = errors.New("invalid settings")
)

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: logger.FormatConsole,
		HTTPAddr:  ":5000",
		GRPCAddr:  ":50051",
		StateFile: DefaultStateFilename,
		Timeout:   DefaultTimeout,
		Hardware: Hardware{
			Driver:             DriverGPIO,
			CMPerSecond:        17150,
			MotionTriggerPin:   23,
			MotionEchoPin:      24,
			IntruderTriggerPin: 20,
			IntruderEchoPin:    21,
			MotionLEDPin:       17,
			ClearLEDPin:        27,
			BadgeLEDPin:        22,
			AlertLEDPin:        5,
			RelayPin:           26,
			ButtonPin:          18,
			LCDPort:            "/dev/ttyUSB0",
			LCDBaud:            9600,
			RFIDPort:           "/dev/serial0",
			RFIDBaud:           9600,
			Sim: Sim{
				MotionBaseCM:   120,
				IntruderBaseCM: 150,
				JitterCM:       1.5,
				VisitEvery:     time.Minute,
				VisitFor:       10 * time.Second,
				VisitCM:        60,
				BadgeInterval:  45 * time.Second,
			},
		},
		Sensor: Sensor{
			Timeout:       100 * time.Millisecond,
			MaxRangeCM:    400,
			DegradedAfter: 3,
		},
		Motion: Motion{
			CalibrationWindow:   50,
			CalibrationCount:    50,
			CalibrationAttempts: 500,
			CalibrationInterval: 50 * time.Millisecond,
			Window:              5,
			ThresholdCM:         15,
			Grace:               5 * time.Second,
			Cadence:             300 * time.Millisecond,
			WatchTick:           time.Second,
		},
		Intruder: Intruder{
			BandMinCM:     2,
			BandMaxCM:     10,
			FlashDuration: 5 * time.Second,
			FlashInterval: 200 * time.Millisecond,
			Interval:      time.Second,
		},
		Badge: Badge{
			Pulse:        2 * time.Second,
			RepeatWindow: 2 * time.Second,
		},
		Button: Button{
			Debounce: 150 * time.Millisecond,
		},
		Events: Events{
			CSVPath:      "homee_events.csv",
			BufferSize:   256,
			HistorySize:  500,
			MQTTTopic:    "homee/events",
			MQTTClientID: "homee-monitor",
		},
	}
}

// DefaultSimBadges is the scan script of the simulated reader: one check-in,
// a visitor and the matching check-out.
func DefaultSimBadges() []string {
	return []string{"0A00AABBCC", "0A00112233", "0A00AABBCC"}
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills unset values from Default and checks the rest.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	fillDefaults(cfg, Default())

	if _, ok := logger.ParseLogLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("%w: unknown log level %q", errInvalid, cfg.LogLevel)
	}

	if _, err := logger.ParseFormat(cfg.LogFormat); err != nil {
		return fmt.Errorf("%w: %w", errInvalid, err)
	}

	if cfg.Hardware.Driver != DriverGPIO && cfg.Hardware.Driver != DriverSim {
		return fmt.Errorf("%w: unknown hardware driver %q", errInvalid, cfg.Hardware.Driver)
	}

	if cfg.HTTPAddr != "" {
		if _, err := net.ResolveTCPAddr("tcp", cfg.HTTPAddr); err != nil {
			return fmt.Errorf("%w: http_addr: %w", errInvalid, err)
		}
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.GRPCAddr); err != nil {
		return fmt.Errorf("%w: grpc_addr: %w", errInvalid, err)
	}

	m := cfg.Motion
	if m.CalibrationCount < m.CalibrationWindow {
		return fmt.Errorf("%w: motion.calibration_count %d is below calibration_window %d",
			errInvalid, m.CalibrationCount, m.CalibrationWindow)
	}

	if m.CalibrationAttempts < m.CalibrationCount+m.CalibrationWindow-1 {
		return fmt.Errorf("%w: motion.calibration_attempts %d cannot yield %d samples",
			errInvalid, m.CalibrationAttempts, m.CalibrationCount)
	}

	if cfg.Intruder.BandMinCM >= cfg.Intruder.BandMaxCM {
		return fmt.Errorf("%w: intruder band [%g, %g] is empty",
			errInvalid, cfg.Intruder.BandMinCM, cfg.Intruder.BandMaxCM)
	}

	if cfg.Intruder.FlashInterval > cfg.Intruder.FlashDuration {
		return fmt.Errorf("%w: intruder.flash_interval exceeds flash_duration", errInvalid)
	}

	return nil
}

// fillDefaults replaces zero and negative values with defaults.
// Band bounds and paths that may legitimately be empty are left alone.
func fillDefaults(cfg, def *Config) {
	orString(&cfg.LogLevel, def.LogLevel)
	orString(&cfg.LogFormat, def.LogFormat)
	orString(&cfg.GRPCAddr, def.GRPCAddr)
	orString(&cfg.StateFile, def.StateFile)
	orDuration(&cfg.Timeout, def.Timeout)

	orString(&cfg.Hardware.Driver, def.Hardware.Driver)
	orFloat(&cfg.Hardware.CMPerSecond, def.Hardware.CMPerSecond)
	orInt(&cfg.Hardware.LCDBaud, def.Hardware.LCDBaud)
	orInt(&cfg.Hardware.RFIDBaud, def.Hardware.RFIDBaud)
	orDuration(&cfg.Hardware.Sim.BadgeInterval, def.Hardware.Sim.BadgeInterval)

	if len(cfg.Hardware.Sim.Badges) == 0 {
		cfg.Hardware.Sim.Badges = DefaultSimBadges()
	}

	orDuration(&cfg.Sensor.Timeout, def.Sensor.Timeout)
	orFloat(&cfg.Sensor.MaxRangeCM, def.Sensor.MaxRangeCM)
	orInt(&cfg.Sensor.DegradedAfter, def.Sensor.DegradedAfter)

	orInt(&cfg.Motion.CalibrationWindow, def.Motion.CalibrationWindow)
	orInt(&cfg.Motion.CalibrationCount, def.Motion.CalibrationCount)
	orInt(&cfg.Motion.CalibrationAttempts, def.Motion.CalibrationAttempts)
	orDuration(&cfg.Motion.CalibrationInterval, def.Motion.CalibrationInterval)
	orInt(&cfg.Motion.Window, def.Motion.Window)
	orFloat(&cfg.Motion.ThresholdCM, def.Motion.ThresholdCM)
	orDuration(&cfg.Motion.Grace, def.Motion.Grace)
	orDuration(&cfg.Motion.Cadence, def.Motion.Cadence)
	orDuration(&cfg.Motion.WatchTick, def.Motion.WatchTick)

	if cfg.Intruder.BandMinCM == 0 && cfg.Intruder.BandMaxCM == 0 {
		cfg.Intruder.BandMinCM, cfg.Intruder.BandMaxCM = def.Intruder.BandMinCM, def.Intruder.BandMaxCM
	}

	orDuration(&cfg.Intruder.FlashDuration, def.Intruder.FlashDuration)
	orDuration(&cfg.Intruder.FlashInterval, def.Intruder.FlashInterval)
	orDuration(&cfg.Intruder.Interval, def.Intruder.Interval)

	orDuration(&cfg.Badge.Pulse, def.Badge.Pulse)
	orDuration(&cfg.Badge.RepeatWindow, def.Badge.RepeatWindow)
	orDuration(&cfg.Button.Debounce, def.Button.Debounce)

	orInt(&cfg.Events.BufferSize, def.Events.BufferSize)
	orInt(&cfg.Events.HistorySize, def.Events.HistorySize)
	orString(&cfg.Events.MQTTTopic, def.Events.MQTTTopic)
	orString(&cfg.Events.MQTTClientID, def.Events.MQTTClientID)
}

func orString(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

func orInt(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

func orFloat(v *float64, def float64) {
	if *v <= 0 {
		*v = def
	}
}

func orDuration(v *time.Duration, def time.Duration) {
	if *v <= 0 {
		*v = def
	}
}
