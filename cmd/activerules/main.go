package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sshcollectorpro/activerules/internal/config"
	"github.com/sshcollectorpro/activerules/internal/database"
	"github.com/sshcollectorpro/activerules/internal/metrics"
	"github.com/sshcollectorpro/activerules/internal/model"
	"github.com/sshcollectorpro/activerules/internal/prompt"
	"github.com/sshcollectorpro/activerules/internal/service"
	"github.com/sshcollectorpro/activerules/internal/sink"
	"github.com/sshcollectorpro/activerules/pkg/logger"
)

const banner = `
  ___       _   _           ___      _
 / _ \ ___ | |_(_)_ _____  | _ \_  _| |___ ___
| (_| / _|  _| \ V / -_)   |   / || | / -_|_-<
 \__,_\__|\__|_|\_/\___|   |_|_\\_,_|_\___/__/
  PAN-OS rules with active sessions
`

func main() {
	// 配置文件位置：ACTIVE_RULES_CONFIG 或 ./configs/config.yaml
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	code := run(cfg)
	if cfg.UI.PauseOnExit {
		fmt.Println("Press Enter to exit...")
		_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
	}
	os.Exit(code)
}

func run(cfg *config.Config) int {
	if cfg.UI.Banner {
		printBanner(os.Stdout)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts, err := service.OptionsFromConfig(cfg)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return 1
	}

	runner := &service.Runner{
		Gateway:  service.NewSSHGateway(cfg.SSH),
		Prompter: prompt.NewTerminal(cfg.SSH.Port),
		Sink:     sink.New(cfg),
		Options:  opts,
		Progress: func(msg string) {
			fmt.Println(msg)
			fmt.Println()
		},
	}

	var store *database.Store
	if cfg.History.Enabled {
		s, err := database.Open(cfg.History.Path)
		if err != nil {
			logger.Warnf("Run history disabled: %v", err)
		} else {
			defer s.Close()
			store = s
			runner.History = s
		}
	}
	if cfg.Metrics.Enabled {
		runner.Metrics = metrics.NewTextfileRecorder(cfg.Metrics.TextfilePath)
	}

	summary, err := runner.Run(ctx)
	if err != nil {
		if errors.Is(err, service.ErrNoCredentials) {
			fmt.Println("Error: no credentials entered")
		} else {
			fmt.Printf("Error: %v\n", err)
		}
		logger.WithField("run_id", summary.RunID).WithError(err).Error("run failed")
		return 1
	}

	fmt.Println("Script completed!")
	fmt.Printf("%d rules with active sessions saved:\n", len(summary.Rules))
	for _, obj := range summary.Objects {
		if obj.Mirror != "" {
			fmt.Printf("  %s (mirror %s)\n", obj.URI, obj.Mirror)
		} else {
			fmt.Printf("  %s\n", obj.URI)
		}
	}
	if n := len(summary.FailedCommands); n > 0 {
		fmt.Printf("%d follow-up commands failed and were skipped, see the log for details\n", n)
	}
	if store != nil {
		if err := compareWithPrevious(ctx, os.Stdout, store, summary); err != nil {
			logger.WithField("run_id", summary.RunID).Warnf("failed to compare with previous run: %v", err)
		}
	}
	logger.WithField("run_id", summary.RunID).Infof("run finished in %s", summary.Duration())
	return 0
}

func printBanner(w io.Writer) {
	fmt.Fprint(w, banner)
}

// ruleHistory 历史库的只读部分
type ruleHistory interface {
	LastSuccessful(ctx context.Context, host, excludeRunID string) (*model.Run, error)
	Rules(ctx context.Context, runID string) ([]string, error)
}

// compareWithPrevious 与同一主机上一次成功运行的规则列表对比并输出差异
func compareWithPrevious(ctx context.Context, w io.Writer, h ruleHistory, summary *service.RunSummary) error {
	prev, err := h.LastSuccessful(ctx, summary.Host, summary.RunID)
	if err != nil || prev == nil {
		return err
	}
	names, err := h.Rules(ctx, prev.ID)
	if err != nil {
		return err
	}
	added, removed := ruleChanges(names, summary.Rules)
	fmt.Fprintf(w, "Compared with the run of %s: %d new, %d no longer active\n",
		prev.StartTime.Local().Format("2006-01-02 15:04:05"), len(added), len(removed))
	for _, r := range added {
		fmt.Fprintf(w, "  + %s\n", r)
	}
	for _, r := range removed {
		fmt.Fprintf(w, "  - %s\n", r)
	}
	return nil
}

// ruleChanges 返回 cur 中新增与 prev 中消失的规则，各自保持原顺序
func ruleChanges(prev, cur []string) (added, removed []string) {
	inPrev := make(map[string]bool, len(prev))
	for _, r := range prev {
		inPrev[r] = true
	}
	inCur := make(map[string]bool, len(cur))
	for _, r := range cur {
		inCur[r] = true
		if !inPrev[r] {
			added = append(added, r)
		}
	}
	for _, r := range prev {
		if !inCur[r] {
			removed = append(removed, r)
		}
	}
	return added, removed
}
