package command

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/ncabridge-go/internal/cli/config"
	"github.com/yndnr/ncabridge-go/internal/cli/output"
	"github.com/yndnr/ncabridge-go/internal/infra/buildinfo"
	"github.com/yndnr/ncabridge-go/internal/telemetry/logger"
)

// AppName is the binary name.
const AppName = "ncasign"

const envKey = "env"

// Env is the per-invocation state built by the Before hook.
type Env struct {
	Config     *config.CLIConfig
	ConfigPath string
	Log        logger.Logger

	Format output.Format
	Wide   bool
	Quiet  bool

	BridgeURL   string
	BridgeToken string
}

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:                 AppName,
		Usage:                "Sign data with the NCALayer agent and work with the document portal",
		Version:              buildinfo.String(),
		Flags:                globalFlags(),
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			SignCommand(),
			LoginCommand(),
			LogoutCommand(),
			DocumentCommand(),
			PartnerCommand(),
			AgentCommand(),
			ConfigCommand(),
			ShellCommand(),
		},
		Before: setupEnv,
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "CLI config file",
			EnvVars: []string{"NCASIGN_CONFIG"},
			Value:   config.DefaultConfigPath(),
		},
		&cli.StringFlag{
			Name:  config.FlagPortal,
			Usage: "document portal base URL",
		},
		&cli.StringFlag{
			Name:  config.FlagAgent,
			Usage: "agent WebSocket endpoint",
		},
		&cli.StringFlag{
			Name:  config.FlagSignTimeout,
			Usage: "how long to wait for the agent (e.g. 2m, 90)",
		},
		&cli.StringFlag{
			Name:    "bridge",
			Aliases: []string{"b"},
			Usage:   "sign through a running ncabridge at this URL",
			EnvVars: []string{"NCASIGN_BRIDGE_URL"},
		},
		&cli.StringFlag{
			Name:    "bridge-token",
			Usage:   "bearer token for the bridge",
			EnvVars: []string{"NCASIGN_BRIDGE_TOKEN"},
		},
		&cli.BoolFlag{
			Name:  "insecure",
			Usage: "skip verification of the agent certificate",
		},
		&cli.StringFlag{
			Name:    config.FlagOutput,
			Aliases: []string{"o"},
			Usage:   "output format: table, json, yaml",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "show wide output (more columns)",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "no spinner or progress output",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "debug logging to stderr",
		},
	}
}

func setupEnv(c *cli.Context) error {
	path := c.String("config")
	fileCfg, err := config.Load(path)
	if err != nil {
		return err
	}

	cfg, err := config.Merge(fileCfg, config.EnvMap(), map[string]string{
		config.FlagPortal:      c.String(config.FlagPortal),
		config.FlagAgent:       c.String(config.FlagAgent),
		config.FlagOutput:      c.String(config.FlagOutput),
		config.FlagSignTimeout: c.String(config.FlagSignTimeout),
	})
	if err != nil {
		return err
	}
	if c.Bool("insecure") {
		cfg.Agent.InsecureSkipVerify = true
	}

	format, err := output.ParseFormat(cfg.Output)
	if err != nil {
		return err
	}

	level := "warn"
	if c.Bool("verbose") {
		level = "debug"
	}
	log, err := logger.New(logger.Config{
		Level:   level,
		Format:  logger.FormatText,
		Output:  errWriter(c),
		Service: AppName,
	})
	if err != nil {
		return err
	}

	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]any)
	}
	c.App.Metadata[envKey] = &Env{
		Config:      cfg,
		ConfigPath:  path,
		Log:         log,
		Format:      format,
		Wide:        c.Bool("wide"),
		Quiet:       c.Bool("quiet"),
		BridgeURL:   c.String("bridge"),
		BridgeToken: c.String("bridge-token"),
	}
	return nil
}

// GetEnv returns the state prepared by the Before hook.
func GetEnv(c *cli.Context) (*Env, error) {
	if env, ok := c.App.Metadata[envKey].(*Env); ok {
		return env, nil
	}
	return nil, fmt.Errorf("%s: environment not initialized", AppName)
}

// render writes data in the selected format.
func render(c *cli.Context, env *Env, data any) error {
	return output.NewFormatter(env.Format, env.Wide).Format(c.App.Writer, data)
}

func errWriter(c *cli.Context) io.Writer {
	if c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return io.Discard
}
