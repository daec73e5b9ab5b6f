package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Upload(ctx context.Context, args []string) error
	List(ctx context.Context) error
	Delete(ctx context.Context, args []string) error
	Sign(ctx context.Context, args []string) error
	Signatures(ctx context.Context, args []string) error
	Unsign(ctx context.Context, args []string) error
	Finalize(ctx context.Context, args []string) error
	Link(ctx context.Context, args []string) error
}

// runREPL reads commands line by line from reader and dispatches them to a.
// Arguments after the command name are passed through; commands prompt for
// anything missing. The loop exits on EOF or on "exit"/"quit".
//
// Errors returned by command handlers are ignored here; handlers report
// their own errors.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("pdfsigner%s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if !a.isLoggedIn() && needsSession(cmd) {
			printlnFn("Please login first")
			continue
		}

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: upload, (l)ist, delete, sign, signatures, unsign, finalize, link, logout, exit")
			} else {
				printlnFn("Available commands: register, login, exit")
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "upload":
			_ = a.Upload(ctx, args)

		case "l", "list":
			_ = a.List(ctx)

		case "delete":
			_ = a.Delete(ctx, args)

		case "sign":
			_ = a.Sign(ctx, args)

		case "signatures":
			_ = a.Signatures(ctx, args)

		case "unsign":
			_ = a.Unsign(ctx, args)

		case "finalize":
			_ = a.Finalize(ctx, args)

		case "link":
			_ = a.Link(ctx, args)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}

func needsSession(cmd string) bool {
	switch cmd {
	case "help", "register", "login", "exit", "quit":
		return false
	}
	return true
}
