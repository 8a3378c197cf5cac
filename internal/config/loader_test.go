package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	convey.Convey("Given a config loader", t, func() {
		convey.Convey("When no file and no environment are present", func() {
			cfg, err := Load("")

			convey.Convey("Then the defaults are used", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.HTTPAddr, convey.ShouldEqual, ":5000")
				convey.So(cfg.Motion.ThresholdCM, convey.ShouldEqual, 15)
				convey.So(cfg.Motion.Cadence, convey.ShouldEqual, 300*time.Millisecond)
				convey.So(cfg.Hardware.CMPerSecond, convey.ShouldEqual, 17150)
				convey.So(cfg.Events.HistorySize, convey.ShouldEqual, 500)
			})
		})

		convey.Convey("When a YAML file sets some values", func() {
			path := filepath.Join(dir, "custom.yaml")
			content := `
log_level: debug
motion:
  threshold_cm: 20
  grace: 8s
intruder:
  band_min_cm: 3
  band_max_cm: 12
events:
  mqtt_broker: tcp://localhost:1883
`
			err := os.WriteFile(path, []byte(content), DefaultFilePermissions)
			convey.So(err, convey.ShouldBeNil)

			cfg, err := Load(path)

			convey.Convey("Then the file overrides the defaults and keeps the rest", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
				convey.So(cfg.Motion.ThresholdCM, convey.ShouldEqual, 20)
				convey.So(cfg.Motion.Grace, convey.ShouldEqual, 8*time.Second)
				convey.So(cfg.Motion.Window, convey.ShouldEqual, 5)
				convey.So(cfg.Intruder.BandMinCM, convey.ShouldEqual, 3)
				convey.So(cfg.Intruder.BandMaxCM, convey.ShouldEqual, 12)
				convey.So(cfg.Events.MQTTBroker, convey.ShouldEqual, "tcp://localhost:1883")
				convey.So(cfg.Events.MQTTTopic, convey.ShouldEqual, "homee/events")
			})

			convey.Convey("And environment variables override the file", func() {
				t.Setenv("HOMEE_MOTION__THRESHOLD_CM", "25")
				t.Setenv("HOMEE_MOTION__GRACE", "10s")
				t.Setenv("HOMEE_HARDWARE__DRIVER", "sim")

				cfg, err = Load(path)

				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Motion.ThresholdCM, convey.ShouldEqual, 25)
				convey.So(cfg.Motion.Grace, convey.ShouldEqual, 10*time.Second)
				convey.So(cfg.Hardware.Driver, convey.ShouldEqual, DriverSim)
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
			})
		})

		convey.Convey("When the file is invalid", func() {
			path := filepath.Join(dir, "broken.yaml")
			err := os.WriteFile(path, []byte("intruder:\n  band_min_cm: 10\n  band_max_cm: 2\n"), DefaultFilePermissions)
			convey.So(err, convey.ShouldBeNil)

			_, err = Load(path)

			convey.Convey("Then loading fails validation", func() {
				convey.So(errors.Is(err, errInvalid), convey.ShouldBeTrue)
			})
		})
	})
}
