// Package config loads teststore configuration.
//
// A configuration file is either YAML (.yaml, .yml, .json) or CUE (.cue).
// CUE files are unified with a built-in schema before decoding, so unknown
// keys and badly typed values are reported with file positions. After the
// file is decoded, environment overrides are applied:
//
//	TESTSTORE_DB     database path
//	TESTSTORE_OWNER  default owner
//	LOG_LEVEL        telemetry log level
//
// The result is validated with go-playground/validator.
//
//	cfg, err := config.Load("teststore.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store, err := stores.Open(ctx, cfg.StoreConfig(tel))
package config
