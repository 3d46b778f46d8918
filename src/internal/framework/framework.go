// Package framework guesses which development tool opened a port by
// matching process metadata against an ordered pattern table.
package framework

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bemindlab/portscope/src/internal/types"
)

// Rule pairs a regular expression with the descriptor it produces.
// Patterns are matched case-insensitively against the combined
// "processName commandLine" string.
type Rule struct {
	Pattern string              `yaml:"pattern"`
	Info    types.FrameworkInfo `yaml:",inline"`
}

// builtinRules is checked in declaration order; the first match wins, so
// more specific tools must precede the generic runtimes that host them
// (next-server before node, uvicorn before python, spring before java).
var builtinRules = []Rule{
	{Pattern: `next-server|next dev|next start`, Info: types.FrameworkInfo{Name: "nextjs", DisplayName: "Next.js", Icon: "▲", Color: "#000000"}},
	{Pattern: `nuxt`, Info: types.FrameworkInfo{Name: "nuxt", DisplayName: "Nuxt", Icon: "⛰", Color: "#00dc82"}},
	{Pattern: `astro\b`, Info: types.FrameworkInfo{Name: "astro", DisplayName: "Astro", Icon: "🚀", Color: "#ff5d01"}},
	{Pattern: `remix`, Info: types.FrameworkInfo{Name: "remix", DisplayName: "Remix", Icon: "💿", Color: "#3992ff"}},
	{Pattern: `vite`, Info: types.FrameworkInfo{Name: "vite", DisplayName: "Vite", Icon: "⚡", Color: "#646cff"}},
	{Pattern: `ng serve|angular`, Info: types.FrameworkInfo{Name: "angular", DisplayName: "Angular", Icon: "🅰", Color: "#dd0031"}},
	{Pattern: `react-scripts`, Info: types.FrameworkInfo{Name: "react", DisplayName: "React", Icon: "⚛", Color: "#61dafb"}},
	{Pattern: `nest start|nestjs`, Info: types.FrameworkInfo{Name: "nestjs", DisplayName: "NestJS", Icon: "🐈", Color: "#e0234e"}},
	{Pattern: `webpack-dev-server|webpack serve`, Info: types.FrameworkInfo{Name: "webpack", DisplayName: "webpack Dev Server", Color: "#8dd6f9"}},
	{Pattern: `storybook`, Info: types.FrameworkInfo{Name: "storybook", DisplayName: "Storybook", Color: "#ff4785"}},
	{Pattern: `deno\b`, Info: types.FrameworkInfo{Name: "deno", DisplayName: "Deno", Icon: "🦕", Color: "#000000"}},
	{Pattern: `\bbun\b`, Info: types.FrameworkInfo{Name: "bun", DisplayName: "Bun", Icon: "🥟", Color: "#fbf0df"}},
	{Pattern: `node|npm|pnpm|yarn`, Info: types.FrameworkInfo{Name: "node", DisplayName: "Node.js", Icon: "⬢", Color: "#339933"}},

	{Pattern: `manage\.py runserver|django`, Info: types.FrameworkInfo{Name: "django", DisplayName: "Django", Icon: "🎸", Color: "#092e20"}},
	{Pattern: `uvicorn|fastapi`, Info: types.FrameworkInfo{Name: "fastapi", DisplayName: "FastAPI", Icon: "⚡", Color: "#009688"}},
	{Pattern: `gunicorn`, Info: types.FrameworkInfo{Name: "gunicorn", DisplayName: "Gunicorn", Color: "#499848"}},
	{Pattern: `flask`, Info: types.FrameworkInfo{Name: "flask", DisplayName: "Flask", Icon: "🌶", Color: "#000000"}},
	{Pattern: `streamlit`, Info: types.FrameworkInfo{Name: "streamlit", DisplayName: "Streamlit", Color: "#ff4b4b"}},
	{Pattern: `jupyter`, Info: types.FrameworkInfo{Name: "jupyter", DisplayName: "Jupyter", Icon: "📓", Color: "#f37626"}},
	{Pattern: `python`, Info: types.FrameworkInfo{Name: "python", DisplayName: "Python", Icon: "🐍", Color: "#3776ab"}},

	{Pattern: `spring-boot|springframework|bootRun`, Info: types.FrameworkInfo{Name: "spring", DisplayName: "Spring Boot", Icon: "🍃", Color: "#6db33f"}},
	{Pattern: `gradle`, Info: types.FrameworkInfo{Name: "gradle", DisplayName: "Gradle", Icon: "🐘", Color: "#02303a"}},
	{Pattern: `\bjava\b`, Info: types.FrameworkInfo{Name: "java", DisplayName: "Java", Icon: "☕", Color: "#007396"}},

	{Pattern: `dotnet|aspnet|kestrel`, Info: types.FrameworkInfo{Name: "dotnet", DisplayName: ".NET", Color: "#512bd4"}},
	{Pattern: `rails|puma|unicorn`, Info: types.FrameworkInfo{Name: "rails", DisplayName: "Ruby on Rails", Icon: "🛤", Color: "#cc0000"}},
	{Pattern: `artisan serve|laravel`, Info: types.FrameworkInfo{Name: "laravel", DisplayName: "Laravel", Color: "#ff2d20"}},
	{Pattern: `php`, Info: types.FrameworkInfo{Name: "php", DisplayName: "PHP", Icon: "🐘", Color: "#777bb4"}},
	{Pattern: `cargo run|cargo watch`, Info: types.FrameworkInfo{Name: "rust", DisplayName: "Rust (cargo)", Icon: "🦀", Color: "#dea584"}},
	{Pattern: `\bair\b|__debug_bin|go run|go-build`, Info: types.FrameworkInfo{Name: "go", DisplayName: "Go", Icon: "🐹", Color: "#00add8"}},

	{Pattern: `docker-proxy|com\.docker`, Info: types.FrameworkInfo{Name: "docker", DisplayName: "Docker", Icon: "🐳", Color: "#2496ed"}},
	{Pattern: `postgres`, Info: types.FrameworkInfo{Name: "postgres", DisplayName: "PostgreSQL", Icon: "🐘", Color: "#336791"}},
	{Pattern: `mysqld|mariadb`, Info: types.FrameworkInfo{Name: "mysql", DisplayName: "MySQL", Icon: "🐬", Color: "#4479a1"}},
	{Pattern: `redis-server`, Info: types.FrameworkInfo{Name: "redis", DisplayName: "Redis", Color: "#dc382d"}},
	{Pattern: `mongod`, Info: types.FrameworkInfo{Name: "mongodb", DisplayName: "MongoDB", Icon: "🍃", Color: "#47a248"}},
	{Pattern: `minio`, Info: types.FrameworkInfo{Name: "minio", DisplayName: "MinIO", Color: "#c72e49"}},
}

type compiledRule struct {
	re   *regexp.Regexp
	info types.FrameworkInfo
}

// Detector matches port entries against an ordered rule table.
// It is stateless after construction and safe for concurrent use.
type Detector struct {
	rules []compiledRule
}

// NewDetector compiles the builtin table, with any extra rules checked
// first so user-configured patterns can override the defaults.
func NewDetector(extra ...Rule) (*Detector, error) {
	rules := make([]compiledRule, 0, len(extra)+len(builtinRules))

	for _, rule := range append(append([]Rule{}, extra...), builtinRules...) {
		re, err := regexp.Compile(`(?i)` + rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid framework pattern %q: %w", rule.Pattern, err)
		}
		rules = append(rules, compiledRule{re: re, info: rule.Info})
	}

	return &Detector{rules: rules}, nil
}

// Detect returns the descriptor of the first matching rule, or nil when no
// rule matches. A nil result means "unknown", not an error.
func (d *Detector) Detect(info types.PortInfo) *types.FrameworkInfo {
	haystack := strings.ToLower(info.ProcessName + " " + info.CommandLine)
	if strings.TrimSpace(haystack) == "" {
		return nil
	}

	for _, rule := range d.rules {
		if rule.re.MatchString(haystack) {
			found := rule.info
			return &found
		}
	}
	return nil
}

// Enrich returns a copy of entries with the Framework field populated
// where a rule matches. Enrichment happens at the boundary layer, never
// inside the monitor.
func (d *Detector) Enrich(entries []types.PortInfo) []types.PortInfo {
	enriched := make([]types.PortInfo, len(entries))
	for i, entry := range entries {
		entry.Framework = d.Detect(entry)
		enriched[i] = entry
	}
	return enriched
}

var defaultDetector *Detector

func init() {
	// The builtin table is static; a compile failure is a programming
	// error caught by the package tests.
	defaultDetector, _ = NewDetector()
}

// Detect matches against the builtin table only.
func Detect(info types.PortInfo) *types.FrameworkInfo {
	return defaultDetector.Detect(info)
}
