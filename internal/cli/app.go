// Package cli implements the siictl command: an operator tool for
// managing the account certificate, running the SII authentication flow
// and sending invoices through the backend HTTP API.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/mfuentesc/siidte/internal/cli/config"
	"github.com/mfuentesc/siidte/internal/common"
)

const usage = `siictl - SII certificate and submission tool

Usage:
  siictl [flags] <command> [arguments]

Commands:
  cert-import <file.pfx>   import a PKCS#12 certificate container
  cert-info                show the stored certificate
  cert-delete              delete the stored certificate
  seed                     request a fresh authority seed
  token                    exchange the stored seed for a session token
  send <invoice-id>        sign and submit an invoice

Flags:
  -a <url>      base URL of the backend server
  -k <token>    API bearer token
  -t <seconds>  request timeout
  -c <file>     JSON config file
`

// App wires the API client to the command dispatch.
type App struct {
	config *config.Config
	api    *APIClient
	out    io.Writer
}

func NewApp(c *config.Config) *App {
	return &App{
		config: c,
		api:    NewAPIClient(c.ServerEndpointAddr, c.APIToken, c.RequestTimeout),
		out:    os.Stdout,
	}
}

// Run dispatches one command. args must already have the flags stripped,
// leaving the command name and its positional arguments.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.out, usage)
		return errors.New("no command given")
	}

	cmd, rest := args[0], args[1:]

	switch cmd {
	case "cert-import":
		return a.certImport(ctx, rest)
	case "cert-info":
		return a.certInfo(ctx)
	case "cert-delete":
		return a.certDelete(ctx)
	case "seed":
		return a.seed(ctx)
	case "token":
		return a.token(ctx)
	case "send":
		return a.send(ctx, rest)
	case "help":
		fmt.Fprint(a.out, usage)
		return nil
	default:
		fmt.Fprint(a.out, usage)
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func (a *App) certImport(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: siictl cert-import <file.pfx>")
	}

	container, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading container: %w", err)
	}

	password, err := GetPassword(a.out, "Certificate password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	info, err := a.api.ImportCertificate(ctx, container, string(password))
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Certificate imported")
	a.printCertificate(info)
	return nil
}

func (a *App) certInfo(ctx context.Context) error {
	info, err := a.api.GetCertificate(ctx)
	if err != nil {
		return err
	}
	a.printCertificate(info)
	return nil
}

func (a *App) printCertificate(info *CertificateInfo) {
	fmt.Fprintf(a.out, "Subject:    %s\n", info.Subject)
	fmt.Fprintf(a.out, "Issuer:     %s\n", info.Issuer)
	fmt.Fprintf(a.out, "Valid from: %s\n", info.ValidFrom.Format("2006-01-02"))
	fmt.Fprintf(a.out, "Valid to:   %s\n", info.ValidTo.Format("2006-01-02"))
	if info.RUT != "" {
		fmt.Fprintf(a.out, "RUT:        %s\n", info.RUT)
	}
}

func (a *App) certDelete(ctx context.Context) error {
	if err := a.api.DeleteCertificate(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Certificate deleted")
	return nil
}

func (a *App) seed(ctx context.Context) error {
	res, err := a.api.RequestSeed(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Seed: %s (issued %s)\n", res.Semilla, res.Timestamp.Format("15:04:05"))
	return nil
}

func (a *App) token(ctx context.Context) error {
	password, err := GetPassword(a.out, "Certificate password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	res, err := a.api.RequestToken(ctx, string(password))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Token: %s (issued %s)\n", res.Token, res.Timestamp.Format("15:04:05"))
	return nil
}

func (a *App) send(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: siictl send <invoice-id>")
	}

	invoiceID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid invoice id: %s", args[0])
	}

	password, err := GetPassword(a.out, "Certificate password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	res, err := a.api.SendInvoice(ctx, invoiceID, string(password))
	if err != nil {
		return err
	}

	if res.AlreadySent {
		fmt.Fprintf(a.out, "Invoice %d was already sent\n", res.InvoiceID)
		return nil
	}
	fmt.Fprintf(a.out, "Invoice %d sent, estado %s\n", res.InvoiceID, res.Estado)
	if res.Response != "" {
		fmt.Fprintf(a.out, "Authority response:\n%s\n", res.Response)
	}
	return nil
}
