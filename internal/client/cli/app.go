// Package cli implements the csvkeeper command-line client: one command per
// invocation against the file service.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/csvkeeper/internal/client/client"
	"github.com/dmitrijs2005/csvkeeper/internal/client/config"
	"github.com/dmitrijs2005/csvkeeper/internal/common"
	"github.com/dmitrijs2005/csvkeeper/internal/flagx"
)

// fileAPI is the subset of client.GRPCClient used by the commands.
type fileAPI interface {
	Upload(ctx context.Context, fileName, contentType string, data []byte) (*client.UploadResult, error)
	Download(ctx context.Context, id string) (*client.Download, error)
	List(ctx context.Context) ([]client.FileInfo, error)
	Ping(ctx context.Context) error
	Close() error
}

// newClient is a test seam.
var newClient = func(addr, token string) (fileAPI, error) {
	c, err := client.NewCSVKeeperClient(addr, token)
	if err != nil {
		return nil, err
	}
	return c, nil
}

const usage = `usage: csvkeeper-cli [-a addr] [-token T] [-t seconds] <command>

commands:
  upload <file> [-type content/type]   encrypt and store a CSV file
  download <id> [-o path]              fetch and decrypt a stored file
  list                                 show stored files
  ping                                 check the server
`

type App struct {
	config *config.Config
	out    io.Writer
	errOut io.Writer
}

func NewApp(c *config.Config) *App {
	return &App{config: c, out: os.Stdout, errOut: os.Stderr}
}

// Run executes the command found in args, usually os.Args[1:]. Global flags
// are skipped since LoadConfig has consumed them. Every command except ping
// needs an access token; without one the user is prompted.
func (a *App) Run(ctx context.Context, args []string) error {
	rest := flagx.RemainingArgs(args, config.Flags)
	if len(rest) == 0 {
		fmt.Fprint(a.errOut, usage)
		return errors.New("missing command")
	}

	cmd, cmdArgs := rest[0], rest[1:]
	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		fmt.Fprint(a.out, usage)
		return nil
	}

	token := a.config.AccessToken
	if token == "" && cmd != "ping" {
		t, err := GetToken(a.errOut)
		if err != nil {
			return err
		}
		token = t
	}

	api, err := newClient(a.config.ServerEndpointAddr, token)
	if err != nil {
		return err
	}
	defer api.Close()

	if a.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.RequestTimeout)
		defer cancel()
	}

	switch cmd {
	case "upload":
		return a.upload(ctx, api, cmdArgs)
	case "download":
		return a.download(ctx, api, cmdArgs)
	case "list":
		return a.list(ctx, api)
	case "ping":
		if err := api.Ping(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "OK")
		return nil
	default:
		fmt.Fprint(a.errOut, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func contentTypeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".csv" {
		return common.CSVContentType
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (a *App) upload(ctx context.Context, api fileAPI, args []string) error {
	opts := flagx.FilterArgs(args, []string{"-type"})
	pos := flagx.RemainingArgs(args, []string{"-type"})
	if len(pos) != 1 {
		return errors.New("usage: upload <file> [-type content/type]")
	}
	path := pos[0]

	contentType := contentTypeFor(path)
	if len(opts) == 2 {
		contentType = opts[1]
	} else if len(opts) == 1 && strings.HasPrefix(opts[0], "-type=") {
		contentType = strings.TrimPrefix(opts[0], "-type=")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	res, err := api.Upload(ctx, filepath.Base(path), contentType, data)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "uploaded %s as %s (id %s)\n", path, res.DisplayName, res.ID)
	return nil
}

func (a *App) download(ctx context.Context, api fileAPI, args []string) error {
	opts := flagx.FilterArgs(args, []string{"-o"})
	pos := flagx.RemainingArgs(args, []string{"-o"})
	if len(pos) != 1 {
		return errors.New("usage: download <id> [-o path]")
	}

	d, err := api.Download(ctx, pos[0])
	if err != nil {
		return err
	}

	// the stored name carries the encrypted suffix, the payload is plain CSV
	out := strings.TrimSuffix(filepath.Base(d.FileName), common.EncryptedSuffix)
	if len(opts) == 2 {
		out = opts[1]
	} else if len(opts) == 1 && strings.HasPrefix(opts[0], "-o=") {
		out = strings.TrimPrefix(opts[0], "-o=")
	}

	if out == "-" {
		_, err := a.out.Write(d.Data)
		return err
	}
	if err := os.WriteFile(out, d.Data, 0o600); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "saved %s (%d bytes)\n", out, len(d.Data))
	return nil
}

func (a *App) list(ctx context.Context, api fileAPI) error {
	items, err := api.List(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tOWNER\tCREATED")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", it.ID, it.DisplayName, it.OwnerID, it.CreatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}
