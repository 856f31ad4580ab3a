// Package config provides the daemon configuration.
//
// The configuration is a YAML file, by default at
// $XDG_CONFIG_HOME/probewatch/config.yaml (or $HOME/.config/probewatch).
// Every field has a default, so a missing file or a partial one is valid.
//
// # Usage Example
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	creds := cfg.Credentials() // PROBEWATCH_PASSPHRASE wins over the file
//
//	cfg.Link.SSID = "lab"
//	if err := cfg.Save(""); err != nil {
//	    log.Fatal(err)
//	}
//
// # Security
//
// The file is written with mode 0600 inside a 0700 directory because it
// may contain the link passphrase. Set PROBEWATCH_PASSPHRASE to keep the
// secret out of the file entirely.
package config
