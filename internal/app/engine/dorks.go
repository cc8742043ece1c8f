// Package engine implements the investigation scan pipeline: dork
// generation, candidate extraction, classification, and orchestration.
package engine

import "fmt"

// Dorks returns the fixed-order code search query catalog for a domain.
// Templates target the places leaked credentials most often surface:
// dotenv files, config files, and compose manifests.
func Dorks(domain string) []string {
	return []string{
		fmt.Sprintf(`filename:.env "%s"`, domain),
		fmt.Sprintf(`"%s" password`, domain),
		fmt.Sprintf(`"%s" api_key`, domain),
		fmt.Sprintf(`"%s" secret`, domain),
		fmt.Sprintf(`filename:config.json "%s"`, domain),
		fmt.Sprintf(`filename:docker-compose.yml "%s"`, domain),
		fmt.Sprintf(`"%s" database_url`, domain),
		fmt.Sprintf(`"%s" DB_PASSWORD`, domain),
		fmt.Sprintf(`"%s" SECRET_KEY`, domain),
		fmt.Sprintf(`filename:.yml "%s" password`, domain),
	}
}
