package command

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	agentconn "github.com/yndnr/ncabridge-go/internal/agent/connection"
	"github.com/yndnr/ncabridge-go/internal/agent/signer"
	"github.com/yndnr/ncabridge-go/internal/cli/config"
	"github.com/yndnr/ncabridge-go/internal/cli/connection"
	"github.com/yndnr/ncabridge-go/internal/core/domain"
	"github.com/yndnr/ncabridge-go/internal/core/service"
	"github.com/yndnr/ncabridge-go/internal/infra/buildinfo"
	"github.com/yndnr/ncabridge-go/internal/infra/tlsroots"
	"github.com/yndnr/ncabridge-go/internal/portal"
)

// newAgentManager builds an agent connection from the CLI config.
func newAgentManager(env *Env) (*agentconn.Manager, error) {
	tlsCfg, err := tlsroots.AgentTLSConfig(tlsroots.AgentOptions{
		CAFiles:            env.Config.Agent.CAFiles,
		ServerName:         env.Config.Agent.ServerName,
		PinSHA256:          env.Config.Agent.PinSHA256,
		InsecureSkipVerify: env.Config.Agent.InsecureSkipVerify,
	})
	if err != nil {
		return nil, fmt.Errorf("agent TLS: %w", err)
	}

	return agentconn.NewManager(agentconn.Options{
		Endpoint:         env.Config.Agent.Endpoint,
		TLSConfig:        tlsCfg,
		HandshakeTimeout: env.Config.Agent.HandshakeTimeout,
		Logger:           env.Log,
	}), nil
}

// newSigner signs through the bridge when one is configured and through
// a per-signature agent session otherwise.
func newSigner(env *Env) (service.Signer, error) {
	if env.BridgeURL != "" {
		bc, err := connection.NewBridgeClient(connection.BridgeOptions{
			URL:       env.BridgeURL,
			Token:     env.BridgeToken,
			Timeout:   env.Config.Agent.SignTimeout + 30*time.Second,
			UserAgent: buildinfo.UserAgent(AppName),
		})
		if err != nil {
			return nil, err
		}
		return bc, nil
	}

	mgr, err := newAgentManager(env)
	if err != nil {
		return nil, err
	}
	return &service.SessionSigner{
		Manager: mgr,
		Options: signer.Options{
			Timeout:      env.Config.Agent.SignTimeout,
			SingleFlight: true,
			Logger:       env.Log,
		},
	}, nil
}

// newPortal creates a portal client and restores the saved login.
func newPortal(env *Env) (*portal.Client, error) {
	pc, err := portal.NewClient(portal.Options{
		BaseURL:   env.Config.PortalURL,
		Timeout:   env.Config.PortalTimeout,
		UserAgent: buildinfo.UserAgent(AppName),
		Logger:    env.Log,
	})
	if err != nil {
		return nil, err
	}
	if env.Config.UserID > 0 {
		pc.SetUserID(env.Config.UserID)
	}
	return pc, nil
}

// requireLogin fails early when no portal session was saved.
func requireLogin(env *Env) error {
	if env.Config.UserID <= 0 {
		return domain.ErrUnauthorized.WithDetails("not logged in, run '" + AppName + " login' first")
	}
	return nil
}

// saveLogin records the portal user in the config file. Only the file's
// own values are written back, not env or flag overrides.
func saveLogin(env *Env, userID int64) error {
	fileCfg, err := config.Load(env.ConfigPath)
	if err != nil {
		return err
	}
	fileCfg.UserID = userID
	if err := config.Save(fileCfg, env.ConfigPath); err != nil {
		return err
	}
	env.Config.UserID = userID
	return nil
}

// documentService wires the signer and portal for the document commands.
func documentService(c *cli.Context, env *Env) (*service.DocumentService, error) {
	if err := requireLogin(env); err != nil {
		return nil, err
	}
	s, err := newSigner(env)
	if err != nil {
		return nil, err
	}
	pc, err := newPortal(env)
	if err != nil {
		return nil, err
	}
	return service.NewDocumentService(spinnerSigner{next: s, c: c, env: env, message: "Confirm the signature in the agent"}, pc), nil
}

// portalContext bounds a portal-only command.
func portalContext(c *cli.Context, env *Env) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Context, env.Config.PortalTimeout+5*time.Second)
}
