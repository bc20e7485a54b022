package registry

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.Und)

// TitleLabel derives a display label from a field name: "prova_carico" -> "Prova Carico".
func TitleLabel(name string) string {
	return titleCaser.String(strings.ReplaceAll(name, "_", " "))
}
