package batch

import (
	"bufio"
	"errors"
	"log/slog"
	"os"
	"strings"
)

var (
	ErrNoNames = errors.New("no names loaded")
)

// LoadNames reads one game name per line, skipping blanks and #
// comment lines.
func LoadNames(path string) ([]string, error) {
	slog.Info("loading names", "path", path)
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var names []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(names) == 0 {
		return nil, ErrNoNames
	}

	slog.Info("loaded names", "count", len(names))
	return names, nil
}
