package command

import (
	"context"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/ncabridge-go/internal/cli/connection"
	"github.com/yndnr/ncabridge-go/internal/infra/buildinfo"
)

// AgentProbe is printed by "agent status".
type AgentProbe struct {
	Endpoint string `json:"endpoint"`
	Via      string `json:"via"`
	State    string `json:"state"`
	Pending  int    `json:"pending" table:"wide"`
	Latency  string `json:"latency,omitempty"`
	Error    string `json:"error,omitempty"`
}

// AgentCommand returns the agent subcommand group.
func AgentCommand() *cli.Command {
	return &cli.Command{
		Name:  "agent",
		Usage: "Inspect the signing agent",
		Subcommands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Check that the agent accepts connections",
				Action: agentStatus,
			},
		},
	}
}

func agentStatus(c *cli.Context) error {
	env, err := GetEnv(c)
	if err != nil {
		return err
	}

	var probe *AgentProbe
	if env.BridgeURL != "" {
		probe, err = probeViaBridge(c.Context, env)
	} else {
		probe, err = probeDirect(c.Context, env)
	}
	if probe != nil {
		if rerr := render(c, env, probe); rerr != nil {
			return rerr
		}
	}
	return err
}

func probeDirect(ctx context.Context, env *Env) (*AgentProbe, error) {
	mgr, err := newAgentManager(env)
	if err != nil {
		return nil, err
	}
	probe := &AgentProbe{Endpoint: mgr.Endpoint(), Via: "direct"}

	start := time.Now()
	if err := mgr.Connect(ctx); err != nil {
		probe.State = mgr.State().String()
		probe.Error = err.Error()
		return probe, err
	}
	probe.Latency = time.Since(start).Round(time.Millisecond).String()
	probe.State = mgr.State().String()
	mgr.Disconnect()
	return probe, nil
}

func probeViaBridge(ctx context.Context, env *Env) (*AgentProbe, error) {
	bc, err := connection.NewBridgeClient(connection.BridgeOptions{
		URL:       env.BridgeURL,
		Token:     env.BridgeToken,
		Timeout:   30 * time.Second,
		UserAgent: buildinfo.UserAgent(AppName),
	})
	if err != nil {
		return nil, err
	}
	probe := &AgentProbe{Via: bc.BaseURL()}

	start := time.Now()
	readyErr := bc.Ready(ctx)
	probe.Latency = time.Since(start).Round(time.Millisecond).String()

	st, err := bc.AgentStatus(ctx)
	if err != nil {
		probe.State = "unknown"
		probe.Error = err.Error()
		return probe, err
	}
	probe.Endpoint = st.Endpoint
	probe.State = st.State
	probe.Pending = st.Pending
	if readyErr != nil {
		probe.Error = readyErr.Error()
	}
	return probe, readyErr
}
