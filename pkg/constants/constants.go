package constants

const (
	AppName      = "CareLink"
	ServiceName  = "carelink_backend"
	ConfigName   = "config"
	ConfigFormat = "yaml"
	EnvPrefix    = "CARELINK"

	// Currency is the ISO code every order is recorded in.
	Currency = "gbp"

	MaxMessageLength = 2000
)
