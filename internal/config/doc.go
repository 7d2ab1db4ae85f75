// Package config provides centralized configuration management for the
// IntentChain runtime. Configuration is loaded from a JSON file while
// operator credentials are always sourced from the environment, so no key
// material ever lives inside the configuration tree.
package config
