// Package config reads and validates spiblock configuration files.
package config

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	goutils "go.viam.com/utils"

	"go.viam.com/spiblock/components/board/fake"
	"go.viam.com/spiblock/components/board/genericlinux"
	"go.viam.com/spiblock/data"
	"go.viam.com/spiblock/logging"
	"go.viam.com/spiblock/protocol"
	"go.viam.com/spiblock/utils"
)

// Board models.
const (
	BoardModelGenericLinux = "genericlinux"
	BoardModelFake         = "fake"
)

// Config describes a board, the SPI devices wired to it and how results are logged and captured.
type Config struct {
	ConfigFilePath string              `json:"-"`
	Board          Board               `json:"board"`
	Devices        []Device            `json:"devices"`
	Log            LogConfig           `json:"log,omitempty"`
	Capture        *data.CaptureConfig `json:"capture,omitempty"`
}

// Board selects a board model. Attributes are decoded into the model's own config.
type Board struct {
	Model      string             `json:"model"`
	Attributes utils.AttributeMap `json:"attributes,omitempty"`

	ConvertedAttributes interface{} `json:"-"`
}

// Device is one SPI peripheral speaking the block protocol.
type Device struct {
	Name       string             `json:"name"`
	Attributes utils.AttributeMap `json:"attributes"`

	ConvertedAttributes *protocol.Config `json:"-"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level logging.Level               `json:"level,omitempty"`
	File  *logging.FileAppenderConfig `json:"file,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *LogConfig) Validate(path string) error {
	if conf.File != nil && conf.File.Path == "" {
		return goutils.NewConfigValidationFieldRequiredError(path+".file", "path")
	}
	return nil
}

// Validate ensures the model is known and converts its attributes.
func (conf *Board) Validate(path string) error {
	switch conf.Model {
	case "":
		return goutils.NewConfigValidationFieldRequiredError(path, "model")
	case BoardModelGenericLinux:
		converted, err := utils.TransformAttributeMapToStruct[genericlinux.Config](conf.Attributes)
		if err != nil {
			return goutils.NewConfigValidationError(path, err)
		}
		conf.ConvertedAttributes = converted
		return converted.Validate(path + ".attributes")
	case BoardModelFake:
		converted, err := utils.TransformAttributeMapToStruct[fake.Config](conf.Attributes)
		if err != nil {
			return goutils.NewConfigValidationError(path, err)
		}
		conf.ConvertedAttributes = converted
		return converted.Validate(path + ".attributes")
	default:
		return goutils.NewConfigValidationError(path, errors.Errorf("unknown board model %q", conf.Model))
	}
}

// Validate ensures the device is named and its attributes form a valid protocol config.
func (conf *Device) Validate(path string) error {
	if conf.Name == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "name")
	}
	converted, err := utils.TransformAttributeMapToStruct[protocol.Config](conf.Attributes)
	if err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	if err := converted.Validate(path + ".attributes"); err != nil {
		return err
	}
	conf.ConvertedAttributes = converted
	return nil
}

// Ensure validates the whole config and converts all attribute maps.
func (conf *Config) Ensure() error {
	if err := conf.Board.Validate("board"); err != nil {
		return err
	}
	if len(conf.Devices) == 0 {
		return goutils.NewConfigValidationFieldRequiredError("", "devices")
	}
	for idx := range conf.Devices {
		if err := conf.Devices[idx].Validate(fmt.Sprintf("%s.%d", "devices", idx)); err != nil {
			return err
		}
	}
	if dups := lo.FindDuplicates(conf.DeviceNames()); len(dups) != 0 {
		return goutils.NewConfigValidationError("devices", errors.Errorf("duplicate device names %q", dups))
	}
	if err := conf.Log.Validate("log"); err != nil {
		return err
	}
	if conf.Capture != nil {
		if err := conf.Capture.Validate("capture"); err != nil {
			return err
		}
	}
	return nil
}

// DeviceNames returns the names of all configured devices in config order.
func (conf *Config) DeviceNames() []string {
	return lo.Map(conf.Devices, func(d Device, _ int) string { return d.Name })
}
