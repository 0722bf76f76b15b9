// Command bisubd runs the bisub daemon in the foreground. It is equivalent
// to `bisub daemon run` and suits service managers that expect a dedicated
// binary.
package main

import (
	"context"
	"flag"
	"log"

	"bisub/internal/config"
	"bisub/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "Configuration file path")
	logLevel := flag.String("log-level", "", "Override the log level")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: *logLevel}); err != nil {
		log.Fatalf("bisubd: %v", err)
	}
}
