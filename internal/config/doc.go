// Package config provides configuration management for the anomaly simulator.
//
// Configuration is loaded from environment variables using the env package.
// Every value has a default, so the service starts with no environment at all
// and listens on 0.0.0.0:8080.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("HTTP server will listen on %s\n", cfg.GetHTTPAddr())
package config
