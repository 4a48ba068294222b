package protocol

import (
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

const (
	// DefaultBlockSize is the payload size of one block, not counting its trailer.
	DefaultBlockSize = 40960
	// DefaultChipSelect is used when a config names none.
	DefaultChipSelect = "0"
	// DefaultBitsPerWord is used when a config names none.
	DefaultBitsPerWord = 8
)

// Policies for rising edges that arrive while a transfer is in progress.
const (
	// EdgePolicyCoalesce remembers at most one such edge and services it once the transfer ends.
	EdgePolicyCoalesce = "coalesce"
	// EdgePolicyDrop forgets them; only edges seen while idle start a transfer.
	EdgePolicyDrop = "drop"
)

// Config describes one peripheral: the bus it sits on, its two handshake lines and the shape
// of its blocks.
type Config struct {
	SPIBus       string          `json:"spi_bus"`
	ChipSelect   string          `json:"chip_select,omitempty"`
	ClockSpeedHz uint            `json:"clock_speed_hz"`
	SPIMode      uint            `json:"spi_mode,omitempty"`
	BitsPerWord  uint            `json:"bits_per_word,omitempty"`
	ReadyPin     string          `json:"ready_pin"`
	BusyPin      string          `json:"busy_pin"`
	BlockSize    int             `json:"block_size,omitempty"`
	Checksum     ChecksumVariant `json:"checksum,omitempty"`
	EdgePolicy   string          `json:"edge_policy,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	if conf.SPIBus == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "spi_bus")
	}
	if conf.ClockSpeedHz == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "clock_speed_hz")
	}
	if conf.SPIMode > 3 {
		return utils.NewConfigValidationError(path, errors.Errorf("spi_mode must be 0-3, got %d", conf.SPIMode))
	}
	if conf.ReadyPin == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "ready_pin")
	}
	if conf.BusyPin == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "busy_pin")
	}
	if conf.ReadyPin == conf.BusyPin {
		return utils.NewConfigValidationError(path, errors.New("ready_pin and busy_pin must be different pins"))
	}
	if conf.BlockSize < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("block_size must be positive, got %d", conf.BlockSize))
	}
	if err := conf.Checksum.Validate(path + ".checksum"); err != nil {
		return err
	}
	switch conf.EdgePolicy {
	case "", EdgePolicyCoalesce, EdgePolicyDrop:
	default:
		return utils.NewConfigValidationError(path,
			errors.Errorf("unknown edge_policy %q, expected %q or %q", conf.EdgePolicy, EdgePolicyCoalesce, EdgePolicyDrop))
	}
	return nil
}

func (conf *Config) blockSize() int {
	if conf.BlockSize == 0 {
		return DefaultBlockSize
	}
	return conf.BlockSize
}

func (conf *Config) edgePolicy() string {
	if conf.EdgePolicy == "" {
		return EdgePolicyCoalesce
	}
	return conf.EdgePolicy
}

func (conf *Config) busParams() BusParams {
	params := BusParams{
		ClockSpeedHz: conf.ClockSpeedHz,
		ChipSelect:   conf.ChipSelect,
		Mode:         conf.SPIMode,
		BitsPerWord:  conf.BitsPerWord,
	}
	if params.ChipSelect == "" {
		params.ChipSelect = DefaultChipSelect
	}
	if params.BitsPerWord == 0 {
		params.BitsPerWord = DefaultBitsPerWord
	}
	return params
}
