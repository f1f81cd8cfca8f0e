// Package config loads zmapp settings.
//
// Values are layered: built-in defaults, then the YAML file, then ZMAPP_*
// environment variables. Validate reports every problem in one error so
// a misconfigured deployment fails once with the full list.
//
// The JWT secret should come from ZMAPP_JWT_SECRET (or a .env file loaded
// by the binary) rather than a committed file. Keep security.cookie.secure
// true outside local development.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	threshold := cfg.Security.Lockout.Threshold
package config
