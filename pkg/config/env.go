package config

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// IsProductionLike reports whether env enforces production configuration rules.
func IsProductionLike(env string) bool {
	return env == EnvStaging || env == EnvProduction
}
