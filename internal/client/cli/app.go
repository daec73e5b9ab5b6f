package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/pdfsigner/internal/client/api"
	"github.com/dmitrijs2005/pdfsigner/internal/client/config"
)

// apiClient is the part of api.Client the commands use.
type apiClient interface {
	Register(ctx context.Context, email, password string) (*api.User, error)
	Login(ctx context.Context, email, password string) error
	SetToken(token string)
	Token() string
	Upload(ctx context.Context, name string, r io.Reader) (*api.Document, error)
	ListDocuments(ctx context.Context) ([]api.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	PublicLink(ctx context.Context, id string) (*api.PublicLink, error)
	CreateSignature(ctx context.Context, req api.SignatureRequest) (*api.Signature, error)
	ListSignatures(ctx context.Context, documentID string) ([]api.Signature, error)
	DeleteSignature(ctx context.Context, id string) error
	Finalize(ctx context.Context, documentID string) (*api.FinalizeResult, error)
	Download(ctx context.Context, rawURL string, w io.Writer) (int64, error)
}

type App struct {
	config *config.Config
	api    apiClient
	reader *bufio.Reader
	out    io.Writer
	email  string
}

func NewApp(c *config.Config) *App {
	return &App{
		config: c,
		api:    api.New(c.ServerURL, c.RequestTimeout),
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}
}

func (a *App) Run(ctx context.Context) {
	fmt.Fprintf(a.out, "pdfsigner CLI, server %s (type 'help' for commands)\n", a.config.ServerURL)
	runREPL(ctx, a, a.status, a.reader)
}

func (a *App) isLoggedIn() bool {
	return a.api.Token() != ""
}

func (a *App) status() string {
	if a.email == "" {
		return ""
	}
	return fmt.Sprintf("(%s)", a.email)
}

// fail reports err to the user and returns it.
func (a *App) fail(err error) error {
	fmt.Fprintf(a.out, "error: %v\n", err)
	return err
}
