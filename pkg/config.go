package reco

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

type ModuleConfig struct {
	ModuleType     int     `json:"module_type" validate:"gte=0"`
	RpcCount       int     `json:"rpc_count" validate:"gte=1"`
	Mergeable      bool    `json:"mergeable"`
	MergeTolerance float64 `json:"merge_tolerance" validate:"gte=0"`
}

type DeadChannels struct {
	ModuleType  int   `json:"module_type" validate:"gte=0"`
	ModuleIndex int   `json:"module_index" validate:"gte=0"`
	Rpc         int   `json:"rpc" validate:"gte=0"`
	Channels    []int `json:"channels" validate:"dive,gte=0"`
}

type Configuration struct {
	Verbosity      int    `json:"verbosity"`
	FileIn         string `json:"file_in" validate:"required"`
	FileOut        string `json:"file_out" validate:"required_if=WriteData true"`
	MaxUnits       int    `json:"max_units" validate:"gte=0"`
	Skip           int    `json:"skip" validate:"gte=0"`
	NoDB           bool   `json:"no_db"`
	ConditionsFile string `json:"conditions_file" validate:"required_if=NoDB true"`
	Host           string `json:"host"`
	User           string `json:"user"`
	Passwd         string `json:"pass"`
	DBName         string `json:"dbname"`
	RunNumber      int    `json:"run_number" validate:"gte=0"`
	NumWorkers     int    `json:"num_workers" validate:"gte=1"`
	ModuleWorkers  int    `json:"module_workers" validate:"gte=1"`
	AddressScheme  string `json:"address_scheme" validate:"oneof=v12 v14"`

	MaxTimeDistance     float64 `json:"max_time_distance" validate:"gt=0"`
	MaxSpaceDistance    float64 `json:"max_space_distance" validate:"gt=0"`
	DeadTime            float64 `json:"dead_time" validate:"gte=0"`
	PositionGuardFactor float64 `json:"position_guard_factor" validate:"gt=0"`
	SignalVelocity      float64 `json:"signal_velocity" validate:"gt=0"`
	RepairPairs         bool    `json:"repair_pairs"`
	WalkBins            int     `json:"walk_bins" validate:"gte=1"`
	WalkChargeMin       float64 `json:"walk_charge_min"`
	WalkChargeMax       float64 `json:"walk_charge_max" validate:"gtfield=WalkChargeMin"`
	MaxMultiplicity     float64 `json:"max_multiplicity" validate:"gt=0"`
	MergeHits           bool    `json:"merge_hits"`
	CorrectPositionTime bool    `json:"correct_position_time"`

	Modules      []ModuleConfig `json:"modules" validate:"required,min=1,dive"`
	DeadChannels []DeadChannels `json:"dead_channels" validate:"dive"`

	WriteData        bool   `json:"write_data"`
	CompressionLevel int    `json:"compression_level" validate:"gte=0,lte=9"`
	MetricsAddr      string `json:"metrics_addr"`
}

// DefaultConfiguration returns the values used for every key missing from
// the configuration file.
func DefaultConfiguration() Configuration {
	return Configuration{
		MaxUnits:            1000000000,
		Host:                "next.ific.uv.es",
		User:                "nextreader",
		Passwd:              "readonly",
		DBName:              "TOFDB",
		NumWorkers:          1,
		ModuleWorkers:       4,
		AddressScheme:       "v14",
		MaxTimeDistance:     1.0,
		MaxSpaceDistance:    2.5,
		DeadTime:            5.0,
		PositionGuardFactor: 1.0,
		SignalVelocity:      16.0,
		RepairPairs:         true,
		WalkBins:            20,
		WalkChargeMin:       0,
		WalkChargeMax:       10,
		MaxMultiplicity:     20,
		MergeHits:           true,
		CorrectPositionTime: true,
		WriteData:           true,
		CompressionLevel:    4,
	}
}

func (c Configuration) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	seen := make(map[int]bool)
	for _, m := range c.Modules {
		if seen[m.ModuleType] {
			return fmt.Errorf("invalid configuration: module type %d listed twice", m.ModuleType)
		}
		seen[m.ModuleType] = true
	}
	return nil
}

func (c Configuration) RpcCounts() map[int]int {
	counts := make(map[int]int, len(c.Modules))
	for _, m := range c.Modules {
		counts[m.ModuleType] = m.RpcCount
	}
	return counts
}

func (c Configuration) PairingParams() PairingParams {
	return PairingParams{
		SignalVelocity: c.SignalVelocity,
		GuardFactor:    c.PositionGuardFactor,
		RepairPairs:    c.RepairPairs,
	}
}

func (c Configuration) ClusterParams() ClusterParams {
	return ClusterParams{
		MaxTimeDistance:  c.MaxTimeDistance,
		MaxSpaceDistance: c.MaxSpaceDistance,
	}
}

func (c Configuration) MergeParams() MergeParams {
	rules := make(map[int]MergeRule, len(c.Modules))
	for _, m := range c.Modules {
		rules[m.ModuleType] = MergeRule{Mergeable: m.Mergeable, Tolerance: m.MergeTolerance}
	}
	return MergeParams{MaxTimeDistance: c.MaxTimeDistance, Rules: rules}
}

func (c Configuration) DeadMasks() map[ModuleKey]ChannelMask {
	masks := make(map[ModuleKey]ChannelMask, len(c.DeadChannels))
	for _, d := range c.DeadChannels {
		key := ModuleKey{ModuleType: d.ModuleType, ModuleIndex: d.ModuleIndex, Rpc: d.Rpc}
		masks[key] = masks[key].With(d.Channels...)
	}
	return masks
}

// ChannelMask is a bitset of dead strips. The nil mask has no dead strip.
type ChannelMask []uint64

func (m ChannelMask) With(channels ...int) ChannelMask {
	for _, ch := range channels {
		word := ch / 64
		for len(m) <= word {
			m = append(m, 0)
		}
		m[word] |= 1 << uint(ch%64)
	}
	return m
}

func (m ChannelMask) Dead(channel int) bool {
	word := channel / 64
	if channel < 0 || word >= len(m) {
		return false
	}
	return m[word]&(1<<uint(channel%64)) != 0
}
