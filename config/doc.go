// Package config loads the process configuration from a YAML file.
//
// Missing fields take their defaults, and a missing file yields Default().
// Command-line flags override individual values after loading.
package config
