// Package config loads YAML configuration for the price feed binaries.
//
// ${VAR} references are expanded from the environment before parsing, and
// an optional .env file can seed the environment first. Defaults fill any
// zero-valued field; Validate reports the first violated rule.
package config
