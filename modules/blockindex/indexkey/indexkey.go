// Package indexkey builds the store keys of the block index families.
//
// Keys are plain strings so they stay readable in the store:
//
//	<tx hash>                          -> height
//	<account>                          -> {heights}
//	<account>:<height>                 -> [tx index, ...]
//	<account>:<height>:<asset>         -> [tx index, ...]
//
// Account and asset tokens are escaped (`\` -> `\\`, `:` -> `\:`) so a token
// that contains the separator can't collide with another key. Tokens without
// those characters are written unchanged.
package indexkey

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/ledger-indexer/common/errs"
)

const (
	Separator = ':'
	escape    = '\\'
)

var tokenEscaper = strings.NewReplacer(`\`, `\\`, `:`, `\:`)

// TxHash returns the key of the hash -> height entry. The hash is the key.
func TxHash(hash string) string {
	return hash
}

// Account returns the key of the set of heights the account has transactions in.
func Account(account string) string {
	return EscapeToken(account)
}

// AccountHeight returns the key of the list of tx indexes created by account at height.
func AccountHeight(account string, height uint64) string {
	token := EscapeToken(account)
	var sb strings.Builder
	sb.Grow(len(token) + 21)
	sb.WriteString(token)
	sb.WriteByte(Separator)
	sb.WriteString(strconv.FormatUint(height, 10))
	return sb.String()
}

// AccountHeightAsset returns the key of the list of tx indexes created by account at height
// that transfer asset to or from the account.
func AccountHeightAsset(account string, height uint64, asset string) string {
	prefix := AccountHeight(account, height)
	token := EscapeToken(asset)
	var sb strings.Builder
	sb.Grow(len(prefix) + 1 + len(token))
	sb.WriteString(prefix)
	sb.WriteByte(Separator)
	sb.WriteString(token)
	return sb.String()
}

// EscapeToken escapes the separator and the escape character in an account or asset token.
func EscapeToken(token string) string {
	if !strings.ContainsAny(token, `\:`) {
		return token
	}
	return tokenEscaper.Replace(token)
}

// UnescapeToken reverses EscapeToken. It returns errs.InvalidArgument if token
// contains an unescaped separator or a dangling escape.
func UnescapeToken(token string) (string, error) {
	if !strings.ContainsAny(token, `\:`) {
		return token, nil
	}
	var sb strings.Builder
	sb.Grow(len(token))
	for i := 0; i < len(token); i++ {
		switch c := token[i]; c {
		case escape:
			if i+1 >= len(token) {
				return "", errors.Wrapf(errs.InvalidArgument, "dangling escape in token %q", token)
			}
			next := token[i+1]
			if next != escape && next != Separator {
				return "", errors.Wrapf(errs.InvalidArgument, "invalid escape sequence in token %q", token)
			}
			sb.WriteByte(next)
			i++
		case Separator:
			return "", errors.Wrapf(errs.InvalidArgument, "unescaped separator in token %q", token)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), nil
}

// ParseAccountHeight parses a key built by AccountHeight.
func ParseAccountHeight(key string) (account string, height uint64, err error) {
	parts := split(key)
	if len(parts) != 2 {
		return "", 0, errors.Wrapf(errs.InvalidArgument, "%q is not an account:height key", key)
	}
	return parseAccountAndHeight(parts[0], parts[1])
}

// ParseAccountHeightAsset parses a key built by AccountHeightAsset.
func ParseAccountHeightAsset(key string) (account string, height uint64, asset string, err error) {
	parts := split(key)
	if len(parts) != 3 {
		return "", 0, "", errors.Wrapf(errs.InvalidArgument, "%q is not an account:height:asset key", key)
	}
	account, height, err = parseAccountAndHeight(parts[0], parts[1])
	if err != nil {
		return "", 0, "", err
	}
	asset, err = UnescapeToken(parts[2])
	if err != nil {
		return "", 0, "", err
	}
	return account, height, asset, nil
}

func parseAccountAndHeight(accountToken, heightToken string) (string, uint64, error) {
	account, err := UnescapeToken(accountToken)
	if err != nil {
		return "", 0, err
	}
	height, err := strconv.ParseUint(heightToken, 10, 64)
	if err != nil {
		return "", 0, errors.Wrapf(errs.InvalidArgument, "invalid height %q", heightToken)
	}
	return account, height, nil
}

// split cuts key at every unescaped separator, keeping escape sequences intact.
func split(key string) []string {
	parts := make([]string, 0, 3)
	start := 0
	for i := 0; i < len(key); i++ {
		switch key[i] {
		case escape:
			i++
		case Separator:
			parts = append(parts, key[start:i])
			start = i + 1
		}
	}
	return append(parts, key[start:])
}
