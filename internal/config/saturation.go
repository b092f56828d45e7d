package config

// Chain policies select how property chains take part in propagation.
const (
	ChainPolicyDirect    = "direct"
	ChainPolicyToldSuper = "told_super"
)

// ValidChainPolicies lists accepted saturation.chain_policy values.
var ValidChainPolicies = []string{ChainPolicyDirect, ChainPolicyToldSuper}

// SaturationConfig configures the saturation engine.
type SaturationConfig struct {
	Workers          int    `yaml:"workers"`           // 0 = one per CPU
	Timeout          string `yaml:"timeout"`           // "0" disables the watchdog
	ChainPolicy      string `yaml:"chain_policy"`      // direct, told_super
	ProgressInterval string `yaml:"progress_interval"` // progress log cadence
}
