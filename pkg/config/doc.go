// Package config defines the configuration surface for the governance
// engine: YAML file loading, defaults, validation, environment variable
// overrides, and hot reload of threshold bounds.
//
// Configuration follows a layered model: file values are overlaid with
// defaults for anything unset, then AEGIS_* environment variables override
// both, and the result is validated as a whole. The constitutional hash is
// deliberately NOT part of this surface; it is read once from the
// environment at startup and verified against the compiled-in constant.
package config
