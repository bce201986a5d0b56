// Package wallets reads the list of addresses to score.
package wallets

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rewired-gh/walletrisk/internal/etherscan"
	"github.com/rewired-gh/walletrisk/internal/logger"
)

// Read parses addresses from the first column of a CSV or one-per-line file.
// A non-address first row is treated as a header. Blank lines and lines starting
// with '#' are skipped, and duplicates (compared case-insensitively) keep their
// first position. Malformed addresses are kept so they are reported as no_data.
// A leading UTF-8 byte order mark, as written by spreadsheet exports, is dropped.
func Read(r io.Reader) ([]string, error) {
	cr := csv.NewReader(skipBOM(r))
	cr.FieldsPerRecord = -1
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	var out []string
	seen := make(map[string]struct{})
	row := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read wallet list: %w", err)
		}
		row++

		if len(rec) == 0 {
			continue
		}
		addr := strings.TrimSpace(rec[0])
		if addr == "" {
			continue
		}
		if row == 1 && !etherscan.IsValidAddress(addr) && !strings.HasPrefix(strings.ToLower(addr), "0x") {
			logger.Debug("Skipping header row %q", addr)
			continue
		}

		key := strings.ToLower(addr)
		if _, dup := seen[key]; dup {
			logger.Warn("Duplicate wallet %s ignored", addr)
			continue
		}
		seen[key] = struct{}{}
		out = append(out, addr)
	}

	return out, nil
}

func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if ch, _, err := br.ReadRune(); err == nil && ch != '\ufeff' {
		_ = br.UnreadRune()
	}
	return br
}

// ReadFile opens path and calls Read. "-" reads standard input.
func ReadFile(path string) ([]string, error) {
	if path == "-" {
		return Read(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wallet list: %w", err)
	}
	defer f.Close()
	return Read(f)
}
