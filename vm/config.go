package vm

// Config tunes the runtime's pools and execution limits. Zero fields are
// replaced by DefaultConfig values when the runtime is created.
type Config struct {
	// Slots per pool block.
	PoolBlockSize int `toml:"pool-block-size"`
	// Blocks allocated per pool at start-up.
	InitialBlocks int `toml:"initial-blocks"`
	// Upper bound on blocks per pool; 0 means unbounded.
	MaxPoolBlocks int `toml:"max-pool-blocks"`
	// Live fraction above which a pool grows by one block after a sweep.
	GrowThreshold float64 `toml:"grow-threshold"`
	// Allocations between voluntary collections at loop back-edges; 0
	// disables the safe-point check.
	GCInterval int `toml:"gc-interval"`

	OpStackSize    int `toml:"op-stack-size"`
	MaxFrames      int `toml:"max-frames"`
	MaxMarks       int `toml:"max-marks"`
	MaxParentDepth int `toml:"max-parent-depth"`
	// Largest length a script may request for a vector in one step.
	MaxVectorLen   int `toml:"max-vector-len"`
}

// DefaultConfig returns the stock limits.
func DefaultConfig() Config {
	return Config{
		PoolBlockSize:  256,
		InitialBlocks:  1,
		MaxPoolBlocks:  0,
		GrowThreshold:  0.5,
		GCInterval:     0,
		OpStackSize:    8192,
		MaxFrames:      512,
		MaxMarks:       512,
		MaxParentDepth: 16,
		MaxVectorLen:   1 << 24,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PoolBlockSize <= 0 {
		c.PoolBlockSize = d.PoolBlockSize
	}
	if c.InitialBlocks <= 0 {
		c.InitialBlocks = d.InitialBlocks
	}
	if c.MaxPoolBlocks < 0 {
		c.MaxPoolBlocks = 0
	}
	if c.GrowThreshold <= 0 || c.GrowThreshold >= 1 {
		c.GrowThreshold = d.GrowThreshold
	}
	if c.GCInterval < 0 {
		c.GCInterval = 0
	}
	if c.OpStackSize <= 0 {
		c.OpStackSize = d.OpStackSize
	}
	if c.MaxFrames <= 0 {
		c.MaxFrames = d.MaxFrames
	}
	if c.MaxMarks <= 0 {
		c.MaxMarks = d.MaxMarks
	}
	if c.MaxParentDepth <= 0 {
		c.MaxParentDepth = d.MaxParentDepth
	}
	if c.MaxVectorLen <= 0 {
		c.MaxVectorLen = d.MaxVectorLen
	}
	return c
}
