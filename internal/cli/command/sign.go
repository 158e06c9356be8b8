package command

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/ncabridge-go/internal/cli/output"
	"github.com/yndnr/ncabridge-go/internal/core/domain"
	"github.com/yndnr/ncabridge-go/internal/core/service"
)

// progressThreshold is the file size above which reads show progress.
const progressThreshold = 1 << 20

// SignResult is printed by the sign command.
type SignResult struct {
	Signature string `json:"signature"`
	Length    int    `json:"signature_len" table:"wide"`
}

// SignCommand returns the sign command.
func SignCommand() *cli.Command {
	return &cli.Command{
		Name:      "sign",
		Usage:     "Produce a CMS signature for base64 data",
		ArgsUsage: "[DATA]",
		Description: "DATA is base64. Without DATA the payload is read from --file or stdin.\n" +
			"With --base64 the input is raw bytes and is encoded before signing.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "read the payload from `PATH`",
			},
			&cli.BoolFlag{
				Name:  "base64",
				Usage: "base64-encode the input before signing",
			},
			&cli.StringFlag{
				Name:  "out",
				Usage: "write the signature to `PATH` instead of stdout",
			},
		},
		Action: signAction,
	}
}

func signAction(c *cli.Context) error {
	env, err := GetEnv(c)
	if err != nil {
		return err
	}

	raw, err := readPayload(c, env)
	if err != nil {
		return err
	}
	data, err := payloadData(raw, c.Bool("base64"))
	if err != nil {
		return err
	}

	s, err := newSigner(env)
	if err != nil {
		return err
	}

	signature, err := signWithSpinner(c.Context, c, env, s, data, "Waiting for the agent")
	if err != nil {
		return err
	}

	if out := c.String("out"); out != "" {
		if err := os.WriteFile(out, []byte(signature+"\n"), 0o644); err != nil {
			return fmt.Errorf("write signature: %w", err)
		}
		env.Log.Debug("signature written", "path", out, "signature_len", len(signature))
		return nil
	}

	if env.Format == output.FormatTable {
		_, err := fmt.Fprintln(c.App.Writer, signature)
		return err
	}
	return render(c, env, SignResult{Signature: signature, Length: len(signature)})
}

// readPayload returns the argument, the file or stdin, in that order.
func readPayload(c *cli.Context, env *Env) ([]byte, error) {
	if c.Args().Len() > 1 {
		return nil, domain.ErrInvalidArgument.WithDetails("expected at most one DATA argument")
	}
	if arg := c.Args().First(); arg != "" {
		if c.String("file") != "" {
			return nil, domain.ErrInvalidArgument.WithDetails("DATA and --file are mutually exclusive")
		}
		return []byte(arg), nil
	}
	if path := c.String("file"); path != "" {
		return readFile(c, env, path)
	}

	in := c.App.Reader
	if in == nil {
		in = os.Stdin
	}
	b, err := io.ReadAll(io.LimitReader(in, domain.MaxDocumentSize*2+1))
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return b, nil
}

// readFile reads a file, showing progress for large ones.
func readFile(c *cli.Context, env *Env, path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	var r io.Reader = f
	var bar *output.ProgressBar
	if !env.Quiet && info.Size() > progressThreshold {
		bar = output.NewProgressBar(errWriter(c), "reading "+filepath.Base(path), info.Size())
		r = output.NewProgressReader(f, bar)
	}

	var buf bytes.Buffer
	buf.Grow(int(info.Size()))
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if bar != nil {
		bar.Finish()
	}
	return buf.Bytes(), nil
}

// payloadData turns the input into the base64 string sent to the agent.
func payloadData(raw []byte, encode bool) (string, error) {
	if encode {
		if len(raw) == 0 {
			return "", domain.ErrMissingArgument.WithDetails("nothing to sign")
		}
		return base64.StdEncoding.EncodeToString(raw), nil
	}

	data := strings.Join(strings.Fields(string(raw)), "")
	if data == "" {
		return "", domain.ErrMissingArgument.WithDetails("nothing to sign")
	}
	if _, err := base64.StdEncoding.DecodeString(data); err != nil {
		return "", domain.ErrInvalidArgument.WithDetails("input is not base64, use --base64 to encode it")
	}
	return data, nil
}

// signWithSpinner runs one signature while a spinner runs on stderr.
func signWithSpinner(ctx context.Context, c *cli.Context, env *Env, s service.Signer, data, message string) (string, error) {
	if env.Quiet {
		return s.Sign(ctx, data)
	}

	sp := output.NewSpinner(errWriter(c), message)
	sp.Start()
	signature, err := s.Sign(ctx, data)
	if err != nil {
		sp.Fail("signing failed")
		return "", err
	}
	sp.Stop()
	return signature, nil
}

// spinnerSigner shows the spinner around every signature a flow asks for.
type spinnerSigner struct {
	next    service.Signer
	c       *cli.Context
	env     *Env
	message string
}

func (s spinnerSigner) Sign(ctx context.Context, data string) (string, error) {
	return signWithSpinner(ctx, s.c, s.env, s.next, data, s.message)
}
