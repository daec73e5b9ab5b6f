package cli

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/dmitrijs2005/pdfsigner/internal/client/api"
	"github.com/dmitrijs2005/pdfsigner/internal/coords"
)

// Sign places a signature. The position is asked in pixels of a page
// rendered at the configured view size, measured from its top-left corner.
func (a *App) Sign(ctx context.Context, args []string) error {
	docID, err := argOrPrompt(a.reader, args, "Document ID", a.out)
	if err != nil {
		return a.fail(err)
	}

	kind, err := GetSimpleText(a.reader, "Signature type: (t)yped or (i)mage [t]", a.out)
	if err != nil {
		return a.fail(err)
	}

	var (
		sigType string
		content any
	)
	switch strings.ToLower(kind) {
	case "", "t", "typed":
		text, err := GetSimpleText(a.reader, "Signature text", a.out)
		if err != nil {
			return a.fail(err)
		}
		sigType, content = "Typed", api.TypedContent{Text: text}
	case "i", "image":
		path, err := GetSimpleText(a.reader, "Path to PNG or JPEG image", a.out)
		if err != nil {
			return a.fail(err)
		}
		dataURL, err := imageDataURL(path)
		if err != nil {
			return a.fail(err)
		}
		sigType, content = "Image", api.ImageContent{Image: dataURL}
	default:
		return a.fail(fmt.Errorf("unknown signature type %q", kind))
	}

	page, err := GetNumber(a.reader, "Page", 1, a.out)
	if err != nil {
		return a.fail(err)
	}
	view := coords.View{Width: a.config.ViewWidth, Height: a.config.ViewHeight}
	px, err := GetNumber(a.reader, fmt.Sprintf("X in pixels (0-%g)", view.Width), view.Width/2, a.out)
	if err != nil {
		return a.fail(err)
	}
	py, err := GetNumber(a.reader, fmt.Sprintf("Y in pixels (0-%g)", view.Height), view.Height/2, a.out)
	if err != nil {
		return a.fail(err)
	}
	x, y := coords.Normalize(px, py, view, coords.DefaultPreviewOffset)

	raw, err := json.Marshal(content)
	if err != nil {
		return a.fail(err)
	}
	sig, err := a.api.CreateSignature(ctx, api.SignatureRequest{
		DocumentID: docID,
		Type:       sigType,
		Content:    raw,
		Page:       int(page),
		X:          x,
		Y:          y,
	})
	if err != nil {
		return a.fail(err)
	}
	fmt.Fprintf(a.out, "Signature %s placed on page %d at (%.3f, %.3f)\n", sig.ID, sig.Page, sig.X, sig.Y)
	return nil
}

func (a *App) Signatures(ctx context.Context, args []string) error {
	docID, err := argOrPrompt(a.reader, args, "Document ID", a.out)
	if err != nil {
		return a.fail(err)
	}
	sigs, err := a.api.ListSignatures(ctx, docID)
	if err != nil {
		return a.fail(err)
	}
	if len(sigs) == 0 {
		fmt.Fprintln(a.out, "No signatures")
		return nil
	}
	for _, s := range sigs {
		fmt.Fprintf(a.out, "%s  %-6s page %d  (%.3f, %.3f)  %s\n", s.ID, s.Type, s.Page, s.X, s.Y, s.Status)
	}
	return nil
}

func (a *App) Unsign(ctx context.Context, args []string) error {
	id, err := argOrPrompt(a.reader, args, "Signature ID", a.out)
	if err != nil {
		return a.fail(err)
	}
	if err := a.api.DeleteSignature(ctx, id); err != nil {
		return a.fail(err)
	}
	fmt.Fprintln(a.out, "Signature removed")
	return nil
}

// Finalize renders the signatures into the document and optionally saves
// the signed copy locally.
func (a *App) Finalize(ctx context.Context, args []string) error {
	docID, err := argOrPrompt(a.reader, args, "Document ID", a.out)
	if err != nil {
		return a.fail(err)
	}
	res, err := a.api.Finalize(ctx, docID)
	if err != nil {
		return a.fail(err)
	}
	fmt.Fprintf(a.out, "Finalized: %d signature(s), %d rendered, %d skipped\n%s\n",
		res.SignatureCount, res.Rendered, res.Skipped, a.absolute(res.URL))

	dest, err := GetSimpleText(a.reader, "Save signed copy to (empty to skip)", a.out)
	if err != nil || dest == "" {
		return nil
	}
	f, err := os.Create(dest)
	if err != nil {
		return a.fail(err)
	}
	n, err := a.api.Download(ctx, res.URL, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dest)
		return a.fail(err)
	}
	fmt.Fprintf(a.out, "Saved %d bytes to %s\n", n, dest)
	return nil
}

func imageDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	mime := http.DetectContentType(data)
	if mime != "image/png" && mime != "image/jpeg" {
		return "", errors.New("only PNG and JPEG images are supported")
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
