package resources

import "strings"

// RenderTemplate substitutes every $KEY occurrence in one pass. Keys are
// chosen so none is a prefix of another, which keeps the replacement order
// independent.
func RenderTemplate(template string, values map[string]string) string {
	pairs := make([]string, 0, 2*len(values))
	for k, v := range values {
		pairs = append(pairs, k, v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
