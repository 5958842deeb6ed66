// Package config provides loading and environment overlay for pagelog
// configuration. It exposes a Default() baseline that runtime.Open turns into
// a medium, a page cache and a log.
//
// Example:
//
//	cfg := config.Default()
//	if fileCfg, err := config.Load("/etc/pagelog.json"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//	rt, _ := runtime.Open(runtime.Options{Config: cfg})
//	defer rt.Close()
package config
