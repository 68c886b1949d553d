package service

import (
	"fmt"
	"regexp"

	"github.com/sshcollectorpro/activerules/internal/config"
	"github.com/sshcollectorpro/activerules/internal/sink"
	"github.com/sshcollectorpro/activerules/internal/table"
)

// PipelineOptions 一次运行所需的全部参数，由配置显式传入各阶段
type PipelineOptions struct {
	SetupCommands  []string
	ListingCommand string
	Session        table.ParseOptions
	SessionExclude table.ExclusionSet
	Template       CommandTemplate
	// AbortOnCommandError 为 true 时任一追问命令失败即终止运行
	AbortOnCommandError bool
	Report              ReportOptions
	ReportName          string
	CommandsName        string
	// ReportFormats 最终报表的输出格式（默认 csv 与 tsv）
	ReportFormats []sink.Format
}

// OptionsFromConfig 由配置构造运行参数
func OptionsFromConfig(cfg *config.Config) (PipelineOptions, error) {
	patterns := make([]*regexp.Regexp, 0, len(cfg.Report.StripPatterns))
	for _, p := range cfg.Report.StripPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return PipelineOptions{}, fmt.Errorf("invalid strip pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}

	return PipelineOptions{
		SetupCommands:  append([]string(nil), cfg.Device.SetupCommands...),
		ListingCommand: cfg.Device.ListingCommand,
		Session: table.ParseOptions{
			SkipLines:  cfg.Pipeline.SessionSkipLines,
			Delimiter:  cfg.Pipeline.SessionDelimiter,
			MaxColumns: cfg.Pipeline.SessionMaxColumns,
		},
		SessionExclude:      table.ExclusionSet(cfg.Pipeline.SessionExclude),
		Template:            CommandTemplate{Prefix: cfg.Pipeline.CommandPrefix, Suffix: cfg.Pipeline.CommandSuffix},
		AbortOnCommandError: cfg.Pipeline.OnCommandError == config.OnCommandErrorAbort,
		Report: ReportOptions{
			Title:          cfg.Report.Title,
			Delimiter:      cfg.Report.Delimiter,
			Exclude:        table.ExclusionSet(cfg.Report.Exclude),
			LabelDelimiter: cfg.Report.LabelDelimiter,
			StripPatterns:  patterns,
		},
		ReportName:    cfg.Output.ReportName,
		CommandsName:  cfg.Output.CommandsName,
		ReportFormats: []sink.Format{sink.FormatCSV, sink.FormatTSV},
	}, nil
}
