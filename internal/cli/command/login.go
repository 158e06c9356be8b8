package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/ncabridge-go/internal/core/service"
)

// LoginCommand returns the login command.
func LoginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Sign the portal challenge and remember the session",
		Action: func(c *cli.Context) error {
			env, err := GetEnv(c)
			if err != nil {
				return err
			}

			s, err := newSigner(env)
			if err != nil {
				return err
			}
			pc, err := newPortal(env)
			if err != nil {
				return err
			}

			auth := service.NewAuthService(spinnerSigner{next: s, c: c, env: env, message: "Sign the login challenge in the agent"}, pc)
			id, err := auth.Login(c.Context)
			if err != nil {
				return err
			}

			if err := saveLogin(env, id.UserID); err != nil {
				return err
			}
			return render(c, env, id)
		},
	}
}

// LogoutCommand returns the logout command.
func LogoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Forget the saved portal session",
		Action: func(c *cli.Context) error {
			env, err := GetEnv(c)
			if err != nil {
				return err
			}
			return saveLogin(env, 0)
		},
	}
}
