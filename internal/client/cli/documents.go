package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

func (a *App) Upload(ctx context.Context, args []string) error {
	path, err := argOrPrompt(a.reader, args, "Path to PDF file", a.out)
	if err != nil {
		return a.fail(err)
	}
	f, err := os.Open(path)
	if err != nil {
		return a.fail(err)
	}
	defer f.Close()

	doc, err := a.api.Upload(ctx, path, f)
	if err != nil {
		return a.fail(err)
	}
	fmt.Fprintf(a.out, "Uploaded %s: id %s, %d page(s)\n", doc.FileName, doc.ID, doc.Metadata.Pages)
	return nil
}

func (a *App) List(ctx context.Context) error {
	docs, err := a.api.ListDocuments(ctx)
	if err != nil {
		return a.fail(err)
	}
	if len(docs) == 0 {
		fmt.Fprintln(a.out, "No documents")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPAGES\tSIGNATURES\tSTATUS\tUPLOADED")
	for _, d := range docs {
		status := "draft"
		if d.IsFinalized {
			status = "finalized"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
			d.ID, d.FileName, d.Metadata.Pages, d.SignatureCount, status, d.UploadedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func (a *App) Delete(ctx context.Context, args []string) error {
	id, err := argOrPrompt(a.reader, args, "Document ID", a.out)
	if err != nil {
		return a.fail(err)
	}
	if err := a.api.DeleteDocument(ctx, id); err != nil {
		return a.fail(err)
	}
	fmt.Fprintln(a.out, "Document deleted")
	return nil
}

func (a *App) Link(ctx context.Context, args []string) error {
	id, err := argOrPrompt(a.reader, args, "Document ID", a.out)
	if err != nil {
		return a.fail(err)
	}
	link, err := a.api.PublicLink(ctx, id)
	if err != nil {
		return a.fail(err)
	}
	fmt.Fprintf(a.out, "Public signing link (valid until %s):\n%s\n",
		link.ExpiresAt.Local().Format(time.DateTime), a.absolute(link.URL))
	return nil
}

func (a *App) absolute(u string) string {
	if strings.HasPrefix(u, "/") {
		return strings.TrimRight(a.config.ServerURL, "/") + u
	}
	return u
}
