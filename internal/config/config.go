package config

type Config interface {
	EnvConfig
	APIConfig
	SessionConfig
	NavigationConfig
}

type EnvConfig interface {
	GetAppName() string
	GetAPIURL() string
	GetDataFolder() string
	GetEnv() string
}

type mainConfig struct {
	EnvVars
	API
	Session
	Navigation
}

func New() Config {
	return mainConfig{}
}
