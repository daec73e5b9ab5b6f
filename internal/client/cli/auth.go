package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/pdfsigner/internal/common"
)

func (a *App) readCredentials() (string, []byte, error) {
	email, err := GetSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return "", nil, err
	}
	if email == "" {
		return "", nil, errors.New("email is required")
	}
	password, err := GetPassword(a.out)
	if err != nil {
		return "", nil, err
	}
	return email, password, nil
}

func (a *App) Register(ctx context.Context) error {
	email, password, err := a.readCredentials()
	if err != nil {
		return a.fail(err)
	}
	defer common.WipeByteArray(password)

	u, err := a.api.Register(ctx, email, string(password))
	if err != nil {
		return a.fail(err)
	}
	fmt.Fprintf(a.out, "Registered %s, you can login now\n", u.Email)
	return nil
}

func (a *App) Login(ctx context.Context) error {
	email, password, err := a.readCredentials()
	if err != nil {
		return a.fail(err)
	}
	defer common.WipeByteArray(password)

	if err := a.api.Login(ctx, email, string(password)); err != nil {
		return a.fail(fmt.Errorf("login unsuccessful: %w", err))
	}
	a.email = email
	fmt.Fprintln(a.out, "Login successful")
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	a.api.SetToken("")
	a.email = ""
	fmt.Fprintln(a.out, "Logged out")
	return nil
}
