package storage

import (
	"path"
	"path/filepath"
	"strings"
	"time"
)

// maxNameLen caps the filename part of an object key.
const maxNameLen = 100

// ObjectKey builds "<prefix>/<yyyy>/<mm>/<dd>/<id>-<filename>".
func ObjectKey(prefix string, now time.Time, id, filename string) string {
	name := id + "-" + SanitizeFilename(filename)
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return path.Join(now.UTC().Format("2006/01/02"), name)
	}
	return path.Join(prefix, now.UTC().Format("2006/01/02"), name)
}

// SanitizeFilename reduces a client-supplied filename to letters, digits,
// dots, dashes and underscores. Directory parts are dropped.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	ext := strings.ToLower(filepath.Ext(name))
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if ext == "." {
		ext = ""
	}

	var b strings.Builder
	dash := false
	for _, r := range stem {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}

	clean := strings.TrimRight(b.String(), "-")
	if clean == "" {
		clean = "attachment"
	}
	if len(clean) > maxNameLen {
		clean = clean[:maxNameLen]
	}

	for _, r := range ext[min(1, len(ext)):] {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return clean
		}
	}
	return clean + ext
}
