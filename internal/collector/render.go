package collector

import (
	"path"
	"strings"

	"github.com/starford/backlinks/internal/models"
)

// entrySeparator sits between two entries, never after the last one.
const entrySeparator = "---\n\n"

// Render compiles entries into the backlinks document:
//
//	[[A]]\n\n<A context 1>\n\n<A context 2>\n\n---\n\n[[B]]\n\n<B context>\n\n
func Render(entries []models.BacklinkEntry) string {
	var b strings.Builder
	for i, e := range entries {
		b.WriteString("[[")
		b.WriteString(e.Name)
		b.WriteString("]]\n\n")
		for _, c := range e.Contexts {
			b.WriteString(c)
			b.WriteString("\n\n")
		}
		if i < len(entries)-1 {
			b.WriteString(entrySeparator)
		}
	}
	return b.String()
}

// OutputName returns the note name of the document generated for target.
func OutputName(target string) string {
	return target + OutputSuffix
}

// OutputPath returns the vault path of the document generated for target,
// placed under folder when one is configured.
func OutputPath(folder, target string) string {
	file := OutputName(target) + models.NoteExt
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return file
	}
	return path.Join(folder, file)
}
