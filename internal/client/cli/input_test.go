package cli

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func rdr(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("hello world\n"), "Name?", &out)
	if err != nil || got != "hello world" {
		t.Fatalf("got %q, err=%v", got, err)
	}
	require.Equal(t, "Name?\n> ", out.String())
}

func TestGetSimpleTextEOF(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("lastline"), "Name?", &out)
	if err != nil || got != "lastline" {
		t.Fatalf("got %q, err=%v", got, err)
	}

	_, err = GetSimpleText(rdr(""), "Name?", &out)
	require.Error(t, err)
}

func TestGetPassword(t *testing.T) {
	old := readPassword
	t.Cleanup(func() { readPassword = old })

	readPassword = func(int) ([]byte, error) { return []byte("pw"), nil }
	var out bytes.Buffer
	pw, err := GetPassword(&out)
	require.NoError(t, err)
	require.Equal(t, "pw", string(pw))

	readPassword = func(int) ([]byte, error) { return nil, errors.New("boom") }
	_, err = GetPassword(&out)
	require.Error(t, err)
}

func TestGetNumber(t *testing.T) {
	var out bytes.Buffer

	v, err := GetNumber(rdr("\n"), "Page", 1, &out)
	require.NoError(t, err)
	require.Equal(t, 1.0, v)

	v, err = GetNumber(rdr("2.5\n"), "X", 0, &out)
	require.NoError(t, err)
	require.Equal(t, 2.5, v)

	_, err = GetNumber(rdr("abc\n"), "X", 0, &out)
	require.ErrorContains(t, err, "not a number")
}

func TestArgOrPrompt(t *testing.T) {
	var out bytes.Buffer

	v, err := argOrPrompt(rdr(""), []string{"d1"}, "ID", &out)
	require.NoError(t, err)
	require.Equal(t, "d1", v)
	require.Empty(t, out.String())

	v, err = argOrPrompt(rdr("d2\n"), nil, "ID", &out)
	require.NoError(t, err)
	require.Equal(t, "d2", v)

	_, err = argOrPrompt(rdr("\n"), nil, "ID", &out)
	require.Error(t, err)
}
