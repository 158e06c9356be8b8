package command

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/ncabridge-go/internal/cli/config"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Show or create the CLI configuration",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the effective configuration (file, env and flags merged)",
				Action: configShow,
			},
			{
				Name:   "path",
				Usage:  "Print the config file path",
				Action: configPath,
			},
			{
				Name:  "init",
				Usage: "Write a config file with the current settings",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "overwrite an existing file",
					},
				},
				Action: configInit,
			},
		},
	}
}

// configView flattens CLIConfig for display.
type configView struct {
	PortalURL        string   `json:"portal_url"`
	PortalTimeout    string   `json:"portal_timeout"`
	Output           string   `json:"output"`
	UserID           int64    `json:"user_id"`
	AgentEndpoint    string   `json:"agent_endpoint"`
	SignTimeout      string   `json:"sign_timeout"`
	HandshakeTimeout string   `json:"handshake_timeout"`
	CAFiles          []string `json:"ca_files,omitempty"`
	AgentPin         string   `json:"pin_sha256,omitempty"`
	InsecureAgent    bool     `json:"insecure_skip_verify"`
	Bridge           string   `json:"bridge,omitempty"`
}

func configShow(c *cli.Context) error {
	env, err := GetEnv(c)
	if err != nil {
		return err
	}
	cfg := env.Config
	return render(c, env, configView{
		PortalURL:        cfg.PortalURL,
		PortalTimeout:    cfg.PortalTimeout.String(),
		Output:           cfg.Output,
		UserID:           cfg.UserID,
		AgentEndpoint:    cfg.Agent.Endpoint,
		SignTimeout:      cfg.Agent.SignTimeout.String(),
		HandshakeTimeout: cfg.Agent.HandshakeTimeout.String(),
		CAFiles:          cfg.Agent.CAFiles,
		AgentPin:         cfg.Agent.PinSHA256,
		InsecureAgent:    cfg.Agent.InsecureSkipVerify,
		Bridge:           env.BridgeURL,
	})
}

func configPath(c *cli.Context) error {
	env, err := GetEnv(c)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, env.ConfigPath)
	return err
}

func configInit(c *cli.Context) error {
	env, err := GetEnv(c)
	if err != nil {
		return err
	}

	if _, err := os.Stat(env.ConfigPath); err == nil && !c.Bool("force") {
		return fmt.Errorf("%s already exists (use --force to overwrite)", env.ConfigPath)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := config.Save(env.Config, env.ConfigPath); err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.App.Writer, "wrote %s\n", env.ConfigPath)
	return err
}
