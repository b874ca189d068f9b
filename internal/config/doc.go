// Package config handles YAML configuration loading with environment variable substitution.
//
// A .env file next to the working directory is loaded first, then ${VAR}
// references in the YAML are expanded from the environment.
package config
