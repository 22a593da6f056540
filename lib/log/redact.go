// Copyright 2024 The execore Authors
// This file is part of execore.

package log

import (
	"regexp"
	"strings"
)

// Precompiled regexes for redaction.
var (
	reHTTP    = regexp.MustCompile(`(?i)http://\S+`)
	reHTTPS   = regexp.MustCompile(`(?i)https://\S+`)
	reDatadir = regexp.MustCompile(`(-{1,2}datadir[=\s]+)\S+`)
)

// RedactArgs redacts HTTP(S) URLs and datadir paths from command line
// arguments before they are logged.
func RedactArgs(args []string) string {
	if len(args) == 0 {
		return ""
	}
	redacted := make([]string, len(args))
	copy(redacted, args)
	redacted[0] = "execore"
	return RedactString(strings.Join(redacted, " "))
}

// RedactString redacts sensitive substrings in the provided string.
func RedactString(s string) string {
	s = reHTTP.ReplaceAllString(s, "http://<redacted>")
	s = reHTTPS.ReplaceAllString(s, "https://<redacted>")
	s = reDatadir.ReplaceAllString(s, "${1}<redacted-dir>")
	return s
}
