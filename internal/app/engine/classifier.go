package engine

import (
	"regexp"
	"strings"
)

// Classification categories.
const (
	CategoryVersionControlTokens = "Version Control Tokens"
	CategoryCloudCredentials     = "Cloud Credentials"
	CategoryAPIKeysSecrets       = "API Keys & Secrets"
	CategoryAuthSecrets          = "Authentication Secrets"
	CategoryDatabaseCredentials  = "Database Credentials"
	CategoryPasswords            = "Credentials & Passwords"
	CategoryConfigFiles          = "Configuration Files"
	CategoryDomainReferences     = "Domain References"
)

// Rule matches one secret shape and assigns its category and base score.
type Rule struct {
	Name      string
	Category  string
	BaseScore float64
	re        *regexp.Regexp
}

// Classification is the deterministic output of classifying a candidate.
type Classification struct {
	Rule     string
	Category string
	Score    float64
}

// rules is ordered by severity; the first match wins.
var rules = []Rule{
	{
		Name:      "github_token",
		Category:  CategoryVersionControlTokens,
		BaseScore: 9.8,
		re:        regexp.MustCompile(`gh[ps]_[a-zA-Z0-9]{36}`),
	},
	{
		Name:      "aws_key",
		Category:  CategoryCloudCredentials,
		BaseScore: 9.5,
		re:        regexp.MustCompile(`(?i)(aws[_-]?access[_-]?key|AKIA[0-9A-Z]{16})`),
	},
	{
		Name:      "secret_key",
		Category:  CategoryAPIKeysSecrets,
		BaseScore: 9.2,
		re:        regexp.MustCompile(`(?i)(secret[_-]?key|secretkey)\s*[=:]\s*["']?([a-zA-Z0-9_-]{20,})["']?`),
	},
	{
		Name:      "api_key",
		Category:  CategoryAPIKeysSecrets,
		BaseScore: 9.0,
		re:        regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[=:]\s*["']?([a-zA-Z0-9_-]{20,})["']?`),
	},
	{
		Name:      "jwt_secret",
		Category:  CategoryAuthSecrets,
		BaseScore: 8.8,
		re:        regexp.MustCompile(`(?i)(jwt[_-]?secret|token[_-]?secret)\s*[=:]\s*["']?([a-zA-Z0-9_-]{10,})["']?`),
	},
	{
		Name:      "database_url",
		Category:  CategoryDatabaseCredentials,
		BaseScore: 8.5,
		re:        regexp.MustCompile(`(?i)(database[_-]?url|db[_-]?url)\s*[=:]\s*["']?([^\s"']+)["']?`),
	},
	{
		Name:      "password",
		Category:  CategoryPasswords,
		BaseScore: 7.5,
		re:        regexp.MustCompile(`(?i)(password|passwd|pwd)\s*[=:]\s*["']?([^\s"']{3,})["']?`),
	},
}

// Score modifiers.
var (
	productionKeywords = []string{"prod", "production", "live", "main"}
	testKeywords       = []string{"test", "dev", "example", "demo", "sample"}
)

const (
	productionBonus     = 1.0
	testPenalty         = 2.0
	sensitiveFileBonus  = 0.5
	configFallbackScore = 5.0
	domainRefScore      = 3.0
)

// Classifier assigns each candidate a category and risk score. Output
// depends only on the candidate text, file path, and domain.
type Classifier struct {
	sensitiveExtensions []string
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithSensitiveExtensions overrides the file extensions that raise the
// score of findings in configuration-like files.
func WithSensitiveExtensions(extensions []string) ClassifierOption {
	return func(c *Classifier) { c.sensitiveExtensions = extensions }
}

// NewClassifier creates a Classifier with the default sensitive
// extension list.
func NewClassifier(opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		sensitiveExtensions: []string{
			".env", ".config", ".yml", ".yaml", ".json", ".ini", ".properties",
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify runs the ordered rule table over a candidate's matched text.
// Candidates matching no rule fall back to a bare domain reference when
// the domain appears in the text, otherwise to a generic configuration
// finding.
func (c *Classifier) Classify(cand Candidate, domain string) Classification {
	name, category, score := c.match(cand.Matched, domain)
	score = c.applyModifiers(score, cand.Matched, cand.FilePath)
	return Classification{
		Rule:     name,
		Category: category,
		Score:    clamp(score),
	}
}

func (c *Classifier) match(text, domain string) (string, string, float64) {
	for _, rule := range rules {
		if rule.re.MatchString(text) {
			return rule.Name, rule.Category, rule.BaseScore
		}
	}
	if domain != "" && strings.Contains(strings.ToLower(text), strings.ToLower(domain)) {
		return "domain_reference", CategoryDomainReferences, domainRefScore
	}
	return "config", CategoryConfigFiles, configFallbackScore
}

func (c *Classifier) applyModifiers(score float64, text, filePath string) float64 {
	// Context keywords count wherever they appear, in the matched text
	// or in the file path.
	textLower := strings.ToLower(text)
	pathLower := strings.ToLower(filePath)
	if containsAny(textLower, productionKeywords) || containsAny(pathLower, productionKeywords) {
		score += productionBonus
	}
	if containsAny(textLower, testKeywords) || containsAny(pathLower, testKeywords) {
		score -= testPenalty
	}
	for _, ext := range c.sensitiveExtensions {
		if strings.Contains(filePath, ext) {
			score += sensitiveFileBonus
			break
		}
	}
	return score
}

func containsAny(s string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(s, keyword) {
			return true
		}
	}
	return false
}

func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}
