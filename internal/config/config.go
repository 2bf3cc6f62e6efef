package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Selectors are the CSS selectors used to read the host's pages. They are
// configurable so a layout change does not need a rebuild.
type Selectors struct {
	SearchResult string `yaml:"search_result"`
	IssueLink    string `yaml:"issue_link"`
	Genre        string `yaml:"genre"`
	Synopsis     string `yaml:"synopsis"`
	PageImage    string `yaml:"page_image"`
}

type Config struct {
	Root       string `yaml:"root"`
	BaseURL    string `yaml:"base_url"`
	SearchPath string `yaml:"search_path"`

	ImageWorkers int           `yaml:"image_workers"`
	IssueWorkers int           `yaml:"issue_workers"`
	Retries      int           `yaml:"retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	Timeout      time.Duration `yaml:"timeout"`
	Debug        bool          `yaml:"debug"`
	AllowExt     []string      `yaml:"allow_ext"`

	Cookie           string `yaml:"cookie"`
	CookieFile       string `yaml:"cookie_file"`
	UserAgent        string `yaml:"user_agent"`
	CloudflareBypass bool   `yaml:"cloudflare_bypass"`

	Selectors Selectors `yaml:"selectors"`
}

type Options struct {
	IgnoreConfig     bool
	Debug            bool
	Root             string
	BaseURL          string
	ImageWorkers     int
	IssueWorkers     int
	Retries          int
	Cookie           string
	CookieFile       string
	UserAgent        string
	CloudflareBypass bool
}

func DefaultSelectors() Selectors {
	return Selectors{
		SearchResult: ".egb-serie",
		IssueLink:    ".ch-name",
		Genre:        ".anime-genres a",
		Synopsis:     ".detail-desc-content p",
		PageImage:    ".chapter_img, .scan-page",
	}
}

func DefaultConfig() *Config {
	return &Config{
		Root:         defaultRoot(),
		BaseURL:      "https://www.readcomics.io",
		SearchPath:   "/comic-search",
		ImageWorkers: 4,
		IssueWorkers: 1,
		Retries:      3,
		RetryBackoff: time.Second,
		Timeout:      30 * time.Second,
		AllowExt:     []string{"jpg", "jpeg", "png", "webp", "gif"},
		Selectors:    DefaultSelectors(),
	}
}

func defaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, "Downloads", "Comics")
}

func SaveYAML(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func loadYAML(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c := DefaultConfig()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}

	return c, nil
}

func LoadMerged(opts Options) (*Config, string, error) {
	if opts.IgnoreConfig {
		cfg := DefaultConfig()
		mergeConfig(cfg, opts)
		normalizeDefaults(cfg)
		return cfg, "(ignored config)", nil
	}

	activePath, err := ActiveConfigPath()
	if err == ErrNoConfig || activePath == "" {
		cfg := DefaultConfig()
		mergeConfig(cfg, opts)
		normalizeDefaults(cfg)
		return cfg, "", nil
	}
	if err != nil {
		return nil, "", err
	}

	cfg, err := loadYAML(activePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config %s: %w", activePath, err)
	}

	mergeConfig(cfg, opts)
	normalizeDefaults(cfg)

	return cfg, activePath, nil
}

func mergeConfig(c *Config, o Options) {
	if o.Root != "" {
		c.Root = o.Root
	}
	if o.BaseURL != "" {
		c.BaseURL = o.BaseURL
	}
	if o.ImageWorkers != 0 {
		c.ImageWorkers = o.ImageWorkers
	}
	if o.IssueWorkers != 0 {
		c.IssueWorkers = o.IssueWorkers
	}
	if o.Retries != 0 {
		c.Retries = o.Retries
	}
	if o.Debug {
		c.Debug = true
	}
	if o.Cookie != "" {
		c.Cookie = o.Cookie
	}
	if o.CookieFile != "" {
		c.CookieFile = o.CookieFile
	}
	if o.UserAgent != "" {
		c.UserAgent = o.UserAgent
	}
	if o.CloudflareBypass {
		c.CloudflareBypass = true
	}
}

func normalizeDefaults(c *Config) {
	def := DefaultConfig()

	if c.Root == "" {
		c.Root = def.Root
	}
	if c.BaseURL == "" {
		c.BaseURL = def.BaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.SearchPath == "" {
		c.SearchPath = def.SearchPath
	}
	if c.ImageWorkers < 1 {
		c.ImageWorkers = def.ImageWorkers
	}
	if c.IssueWorkers < 1 {
		c.IssueWorkers = def.IssueWorkers
	}
	if c.Retries < 1 {
		c.Retries = def.Retries
	}
	if c.RetryBackoff < 0 {
		c.RetryBackoff = 0
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if len(c.AllowExt) == 0 {
		c.AllowExt = def.AllowExt
	}
	c.AllowExt = normalizeExtList(c.AllowExt)

	s := &c.Selectors
	if s.SearchResult == "" {
		s.SearchResult = def.Selectors.SearchResult
	}
	if s.IssueLink == "" {
		s.IssueLink = def.Selectors.IssueLink
	}
	if s.Genre == "" {
		s.Genre = def.Selectors.Genre
	}
	if s.Synopsis == "" {
		s.Synopsis = def.Selectors.Synopsis
	}
	if s.PageImage == "" {
		s.PageImage = def.Selectors.PageImage
	}
}

func normalizeExtList(list []string) []string {
	out := []string{}
	for _, ext := range list {
		ext = strings.ToLower(strings.TrimSpace(ext))
		ext = strings.TrimPrefix(ext, ".")
		if ext != "" {
			out = append(out, ext)
		}
	}

	return out
}

// SearchURL is the search endpoint without the query.
func (c *Config) SearchURL() string {
	return c.BaseURL + "/" + strings.TrimLeft(c.SearchPath, "/")
}

// Print lists the effective settings, one per line.
func (c *Config) Print(w io.Writer) {
	_, _ = fmt.Fprintf(w, " -root: %s\n", c.Root)
	_, _ = fmt.Fprintf(w, " -base_url: %s\n", c.BaseURL)
	_, _ = fmt.Fprintf(w, " -image_workers: %d\n", c.ImageWorkers)
	_, _ = fmt.Fprintf(w, " -issue_workers: %d\n", c.IssueWorkers)
	_, _ = fmt.Fprintf(w, " -retries: %d (backoff %s)\n", c.Retries, c.RetryBackoff)
	_, _ = fmt.Fprintf(w, " -timeout: %s\n", c.Timeout)
	if c.Debug {
		_, _ = fmt.Fprintf(w, " -debug: %t\n", c.Debug)
	}
	if c.CookieFile != "" {
		_, _ = fmt.Fprintf(w, " -cookie_file: %s\n", c.CookieFile)
	}
	if c.UserAgent != "" {
		_, _ = fmt.Fprintf(w, " -user_agent: %s\n", c.UserAgent)
	}
	if c.CloudflareBypass {
		_, _ = fmt.Fprintf(w, " -cloudflare_bypass: %t\n", c.CloudflareBypass)
	}
	if len(c.AllowExt) > 0 {
		_, _ = fmt.Fprintf(w, " -allow_ext: %s\n", strings.Join(c.AllowExt, ", "))
	}
}
