package main

import (
	"path/filepath"
	"strings"
)

// exportPath returns path unchanged for a single run; with several runs the
// ticker is inserted before the extension: trades.csv -> trades-FN.csv.
func exportPath(path, ticker string, multi bool) string {
	if !multi {
		return path
	}
	ext := filepath.Ext(path)
	safe := strings.NewReplacer("^", "", "/", "_", "\\", "_").Replace(ticker)
	return strings.TrimSuffix(path, ext) + "-" + safe + ext
}
