package config

// TokenConfig lists the oracle output tokens accepted for each category.
type TokenConfig struct {
	A []string `toml:"a"` // matched case-insensitively
	B []string `toml:"b"`
}
