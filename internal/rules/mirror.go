package rules

import (
	"fmt"
	"strings"
	"unicode"
)

// MirrorFEN flips the board vertically and swaps the colours of every
// piece, the side to move, castling rights and the en passant square.
func MirrorFEN(fen string) (string, error) {
	fields := strings.Fields(fen)
	if len(fields) < 4 {
		return "", fmt.Errorf("mirror fen %q: expected at least 4 fields", fen)
	}

	ranks := strings.Split(fields[0], "/")
	if len(ranks) != 8 {
		return "", fmt.Errorf("mirror fen %q: expected 8 ranks", fen)
	}
	flipped := make([]string, 8)
	for i, r := range ranks {
		flipped[7-i] = swapCase(r)
	}
	out := []string{strings.Join(flipped, "/")}

	switch fields[1] {
	case "w":
		out = append(out, "b")
	case "b":
		out = append(out, "w")
	default:
		return "", fmt.Errorf("mirror fen %q: bad side to move", fen)
	}

	castling := "-"
	if fields[2] != "-" {
		var sb strings.Builder
		swapped := swapCase(fields[2])
		for _, c := range "KQkq" {
			if strings.ContainsRune(swapped, c) {
				sb.WriteRune(c)
			}
		}
		castling = sb.String()
	}
	out = append(out, castling)

	ep := fields[3]
	if ep != "-" {
		if len(ep) != 2 || ep[1] < '1' || ep[1] > '8' {
			return "", fmt.Errorf("mirror fen %q: bad en passant square", fen)
		}
		ep = string([]byte{ep[0], '1' + ('8' - ep[1])})
	}
	out = append(out, ep)
	out = append(out, fields[4:]...)
	return strings.Join(out, " "), nil
}

func swapCase(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsUpper(r):
			return unicode.ToLower(r)
		case unicode.IsLower(r):
			return unicode.ToUpper(r)
		}
		return r
	}, s)
}
