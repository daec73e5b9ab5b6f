// Package cli provides the interactive pdfsigner command-line client.
//
// It wires configuration, the REST API client and a small REPL. Typical
// flow: register or log in, upload a PDF, place signatures on its pages,
// then finalize and download the signed copy.
//
// Signature positions are entered as pixel coordinates inside a rendered
// page of the configured view size and converted to page fractions with
// the same rule the web viewer uses.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
