package command

import (
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/ncabridge-go/internal/core/domain"
	"github.com/yndnr/ncabridge-go/internal/core/service"
	"github.com/yndnr/ncabridge-go/internal/portal"
)

// PartnerCommand returns the partner subcommand group.
func PartnerCommand() *cli.Command {
	return &cli.Command{
		Name:  "partner",
		Usage: "Find portal users to invite as participants",
		Subcommands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "Search partners by name, IIN, BIN or email",
				ArgsUsage: "QUERY",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Value:   portal.MaxPartnerResults,
						Usage:   "maximum number of results",
					},
				},
				Action: partnerSearch,
			},
		},
	}
}

func partnerSearch(c *cli.Context) error {
	env, err := GetEnv(c)
	if err != nil {
		return err
	}
	query := strings.Join(c.Args().Slice(), " ")
	if len([]rune(strings.TrimSpace(query))) < service.MinPartnerQuery {
		return domain.ErrInvalidArgument.WithDetails("QUERY needs at least 2 characters")
	}
	if err := requireLogin(env); err != nil {
		return err
	}

	pc, err := newPortal(env)
	if err != nil {
		return err
	}
	// Searching never signs, so no signer is wired.
	svc := service.NewDocumentService(nil, pc)

	ctx, cancel := portalContext(c, env)
	defer cancel()
	partners, err := svc.SearchPartners(ctx, query, c.Int("limit"))
	if err != nil {
		return err
	}
	if partners == nil {
		partners = []portal.Partner{}
	}
	return render(c, env, partners)
}
