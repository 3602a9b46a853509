package config

const (
	ProfileLocalnet = "localnet"
	ProfileDevnet   = "devnet"

	defaultCommitment         = "confirmed"
	defaultMinBalanceLamports = uint64(10_000_000) // 0.01 SOL
)

type networkProfile struct {
	rpcEndpoint   string
	wsEndpoint    string
	clusterOffset uint32
}

var networkProfiles = map[string]networkProfile{
	ProfileLocalnet: {
		rpcEndpoint: "http://127.0.0.1:8899",
		wsEndpoint:  "ws://127.0.0.1:8900",
	},
	ProfileDevnet: {
		rpcEndpoint:   "https://api.devnet.solana.com",
		wsEndpoint:    "wss://api.devnet.solana.com",
		clusterOffset: 1078779259,
	},
}

type NetworkConfig struct {
	// Options: "localnet", "devnet". Endpoints and cluster offset left empty
	// are taken from the profile.
	Profile       string `yaml:"profile"`
	RPCEndpoint   string `yaml:"rpcEndpoint"`
	WSEndpoint    string `yaml:"wsEndpoint"`
	ClusterOffset uint32 `yaml:"clusterOffset"`
	// Keeps a local profile record per payer and cluster, created on first
	// use and updated after each request.
	UseProfileRegistration bool   `yaml:"useProfileRegistration"`
	Commitment             string `yaml:"commitment"`
	SkipPreflight          *bool  `yaml:"skipPreflight"`
	MinBalanceLamports     uint64 `yaml:"minBalanceLamports"`
}

// WithDefaults returns a copy of the NetworkConfig with any missing fields set
// to their default values.
func (c NetworkConfig) WithDefaults() NetworkConfig {
	cpy := c
	if cpy.Profile == "" {
		cpy.Profile = ProfileLocalnet
	}

	profile, ok := networkProfiles[cpy.Profile]
	if ok {
		if cpy.RPCEndpoint == "" {
			cpy.RPCEndpoint = profile.rpcEndpoint
		}
		if cpy.WSEndpoint == "" {
			cpy.WSEndpoint = profile.wsEndpoint
		}
		if cpy.ClusterOffset == 0 {
			cpy.ClusterOffset = profile.clusterOffset
		}
	}

	if cpy.Commitment == "" {
		cpy.Commitment = defaultCommitment
	}
	if cpy.SkipPreflight == nil {
		skip := true
		cpy.SkipPreflight = &skip
	}
	if cpy.MinBalanceLamports == 0 {
		cpy.MinBalanceLamports = defaultMinBalanceLamports
	}
	return cpy
}

// KnownProfile reports whether the profile name has built-in endpoints.
func KnownProfile(name string) bool {
	_, ok := networkProfiles[name]
	return ok
}
