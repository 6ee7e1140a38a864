package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/devraulu/rjmeta/pkg/match"
)

// terminalPicker drives selection prompts on the controlling terminal.
// Prompts go to stderr so stdout stays clean for -json output.
type terminalPicker struct {
	in  *bufio.Reader
	out io.Writer
}

func (p *terminalPicker) PickWork(query string, options []match.Scored, research func(string) []match.Scored) (match.Scored, bool) {
	for {
		if len(options) == 0 {
			fmt.Fprintf(p.out, "no results for %q\n", query)
		} else {
			fmt.Fprintf(p.out, "results for %q:\n", query)
			for i, opt := range options {
				fmt.Fprintf(p.out, "  %2d) %-50s %.2f\n", i+1, opt.Title, opt.Score)
			}
		}
		fmt.Fprint(p.out, "pick a number, type a new search, or press enter to skip: ")

		line, err := p.in.ReadString('\n')
		if err != nil {
			return match.Scored{}, false
		}
		line = strings.TrimSpace(line)

		if line == "" {
			return match.Scored{}, false
		}
		if n, err := strconv.Atoi(line); err == nil {
			if n >= 1 && n <= len(options) {
				return options[n-1], true
			}
			fmt.Fprintf(p.out, "no option %d\n", n)
			continue
		}

		query = line
		options = research(line)
	}
}

func (p *terminalPicker) PickImage(urls []string) (string, bool) {
	if len(urls) == 1 {
		return urls[0], true
	}

	fmt.Fprintln(p.out, "images:")
	for i, u := range urls {
		fmt.Fprintf(p.out, "  %2d) %s\n", i+1, u)
	}
	fmt.Fprint(p.out, "pick a number or press enter for the first: ")

	line, err := p.in.ReadString('\n')
	if err != nil {
		return "", false
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return urls[0], true
	}

	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(urls) {
		return urls[0], true
	}
	return urls[n-1], true
}
