package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sshcollectorpro/activerules/pkg/logger"
	"github.com/sshcollectorpro/activerules/simulate"
)

// 模拟 PAN-OS 防火墙，用于在没有真实设备时演练 activerules
// 配置文件路径取自 SIMDEVICE_CONFIG，默认 simulate/firewall.yaml
func main() {
	path := os.Getenv("SIMDEVICE_CONFIG")
	if path == "" {
		path = "simulate/firewall.yaml"
	}

	if err := logger.Init(logger.Config{Level: "debug", Format: "text", Output: "console"}); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := simulate.LoadConfig(path)
	if err != nil {
		fmt.Printf("Failed to load simulate config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid simulate config: %v\n", err)
		os.Exit(1)
	}

	srv, err := simulate.Start(cfg)
	if err != nil {
		fmt.Printf("Failed to start simulated firewall: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Simulated firewall %s listening on %s (user %s)\n", cfg.Hostname, srv.Addr(), cfg.Username)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	srv.Stop()
	logger.Infof("Simulated firewall stopped, %d commands received", len(srv.Received()))
}
