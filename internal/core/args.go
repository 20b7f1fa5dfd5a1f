package core

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/cloudfs/mountfs/internal/model"
)

// TokenResult tells whether a token could be read from a line.
type TokenResult int

const (
	// TokenOK means a token was extracted.
	TokenOK TokenResult = iota
	// TokenNone means the line held nothing more; callers show usage.
	TokenNone
	// TokenMalformed means the line could not be split, e.g. an open quote.
	TokenMalformed
)

// ErrUsage is returned when a command line cannot be turned into a request.
var ErrUsage = fmt.Errorf("invalid command line")

// NextToken splits off the first whitespace-delimited token of line.
// Both the token and the remainder are trimmed.
func NextToken(line string) (string, string, TokenResult) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", "", TokenNone
	}
	end := strings.IndexFunc(line, unicode.IsSpace)
	if end < 0 {
		return line, "", TokenOK
	}
	return line[:end], strings.TrimSpace(line[end:]), TokenOK
}

// NextPathToken is NextToken for paths: a token that starts with a double
// quote runs to the closing quote, which may enclose spaces. One layer of
// quotes is removed.
func NextPathToken(line string) (string, string, TokenResult) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, `"`) {
		return NextToken(line)
	}

	end := strings.IndexByte(line[1:], '"')
	if end < 0 {
		return "", line, TokenMalformed
	}
	token := strings.TrimSpace(line[1 : end+1])
	rest := strings.TrimSpace(line[end+2:])
	if token == "" {
		return "", rest, TokenNone
	}
	return token, rest, TokenOK
}

// ParseRequest turns "<command> <path> [<args>]" into a request.
func ParseRequest(line string) (model.Request, error) {
	cmd, rest, res := NextToken(line)
	if res != TokenOK {
		return model.Request{}, ErrUsage
	}
	path, rest, res := NextPathToken(rest)
	if res != TokenOK {
		return model.Request{}, ErrUsage
	}
	return model.NewRequest(cmd, path, rest), nil
}

// parseCount reads a leading unsigned decimal from args, ignoring anything
// after the digits. A single leading '+' is allowed. It fails when args
// does not start with a digit.
func parseCount(args string) (uint32, bool) {
	args = strings.TrimPrefix(strings.TrimSpace(args), "+")
	end := strings.IndexFunc(args, func(r rune) bool { return r < '0' || r > '9' })
	if end < 0 {
		end = len(args)
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.ParseUint(args[:end], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}
