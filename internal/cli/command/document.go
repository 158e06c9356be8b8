package command

import (
	"path/filepath"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/ncabridge-go/internal/core/domain"
)

// DocumentCommand returns the document subcommand group.
func DocumentCommand() *cli.Command {
	return &cli.Command{
		Name:    "document",
		Aliases: []string{"doc"},
		Usage:   "Create, co-sign and list portal documents",
		Subcommands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Sign a file and submit it with its participants",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "title",
						Aliases: []string{"t"},
						Usage:   "document title",
					},
					&cli.Int64SliceFlag{
						Name:     "participant",
						Aliases:  []string{"p"},
						Usage:    "participant user ID (repeatable)",
						Required: true,
					},
				},
				Action: documentCreate,
			},
			{
				Name:      "cosign",
				Usage:     "Add your signature to a document",
				ArgsUsage: "DOCUMENT_ID",
				Action:    documentCoSign,
			},
			{
				Name:   "pending",
				Usage:  "List documents waiting for your signature",
				Action: documentPending,
			},
			{
				Name:   "signed",
				Usage:  "List documents you have signed",
				Action: documentSigned,
			},
		},
	}
}

func documentCreate(c *cli.Context) error {
	env, err := GetEnv(c)
	if err != nil {
		return err
	}
	path := c.Args().First()
	if path == "" {
		return domain.ErrMissingArgument.WithDetails("FILE is required")
	}

	svc, err := documentService(c, env)
	if err != nil {
		return err
	}
	content, err := readFile(c, env, path)
	if err != nil {
		return err
	}

	res, err := svc.Create(c.Context, &domain.Document{
		Title:          c.String("title"),
		FileName:       filepath.Base(path),
		Content:        content,
		ParticipantIDs: c.Int64Slice("participant"),
	})
	if err != nil {
		return err
	}
	return render(c, env, res)
}

func documentCoSign(c *cli.Context) error {
	env, err := GetEnv(c)
	if err != nil {
		return err
	}
	id, err := parseDocumentID(c.Args().First())
	if err != nil {
		return err
	}

	svc, err := documentService(c, env)
	if err != nil {
		return err
	}
	res, err := svc.CoSign(c.Context, id)
	if err != nil {
		return err
	}
	return render(c, env, res)
}

func documentPending(c *cli.Context) error {
	env, err := GetEnv(c)
	if err != nil {
		return err
	}
	svc, err := documentService(c, env)
	if err != nil {
		return err
	}

	ctx, cancel := portalContext(c, env)
	defer cancel()
	docs, err := svc.Pending(ctx)
	if err != nil {
		return err
	}
	return render(c, env, docs)
}

func documentSigned(c *cli.Context) error {
	env, err := GetEnv(c)
	if err != nil {
		return err
	}
	svc, err := documentService(c, env)
	if err != nil {
		return err
	}

	ctx, cancel := portalContext(c, env)
	defer cancel()
	docs, err := svc.Signed(ctx)
	if err != nil {
		return err
	}
	return render(c, env, docs)
}

func parseDocumentID(s string) (int64, error) {
	if s == "" {
		return 0, domain.ErrMissingArgument.WithDetails("DOCUMENT_ID is required")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidArgument.WithDetails("DOCUMENT_ID must be a positive integer")
	}
	return id, nil
}
