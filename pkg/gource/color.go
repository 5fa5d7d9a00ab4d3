package gource

import (
	"hash/fnv"
	"path/filepath"
	"strings"

	"github.com/src-d/enry/v2"
)

// languagePalette holds the colours assigned to detected languages.
// Saturated values render well against Gource's dark background.
var languagePalette = []string{
	"1F77B4", "FF7F0E", "2CA02C", "D62728", "9467BD",
	"8C564B", "E377C2", "7F7F7F", "BCBD22", "17BECF",
	"AEC7E8", "FFBB78", "98DF8A", "FF9896", "C5B0D5",
	"C49C94", "F7B6D2", "C7C7C7", "DBDB8D", "9EDAE5",
}

// fallbackColor is used when neither a language nor an extension is
// available for a path.
const fallbackColor = "AAAAAA"

// LanguageColor returns a stable hex colour for a file path, derived from
// the language enry identifies by filename. Files of the same language
// always share a colour; unknown languages fall back to the extension.
func LanguageColor(path string) string {
	key := enry.GetLanguage(filepath.Base(path), nil)
	if key == "" {
		key = strings.ToLower(filepath.Ext(path))
	}

	if key == "" {
		return fallbackColor
	}

	hash := fnv.New32a()
	_, _ = hash.Write([]byte(key))

	return languagePalette[int(hash.Sum32())%len(languagePalette)]
}
