package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingParameter marks a required setting that is not configured.
var ErrMissingParameter = errors.New("missing required parameter")

const DefaultPath = "docmeta.yaml"

type Config struct {
	GitHub struct {
		Owner      string `yaml:"owner"`
		Repo       string `yaml:"repo"`
		Token      string `yaml:"token"`
		BaseURL    string `yaml:"base_url"`
		BaseBranch string `yaml:"base_branch"`
		HeadBranch string `yaml:"head_branch"`
	} `yaml:"github"`
	AI struct {
		Provider    string  `yaml:"provider"` // azure, openai or gemini
		Model       string  `yaml:"model"`    // model, or deployment name on azure
		APIKey      string  `yaml:"api_key"`
		Endpoint    string  `yaml:"endpoint"`
		APIVersion  string  `yaml:"api_version"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float32 `yaml:"temperature"`
	} `yaml:"ai"`
	Pages struct {
		Dir     string   `yaml:"dir"`
		Include []string `yaml:"include"`
		Exclude []string `yaml:"exclude"`
	} `yaml:"pages"`
	Pipeline struct {
		FetchFile     string `yaml:"fetch_file"`
		GeneratedFile string `yaml:"generated_file"`
		SkipUnchanged bool   `yaml:"skip_unchanged"`
	} `yaml:"pipeline"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Deploy struct {
		AdminURL   string `yaml:"admin_url"`
		Org        string `yaml:"org"`
		Env        string `yaml:"env"`
		Branch     string `yaml:"branch"`
		PathPrefix string `yaml:"path_prefix"`
		Token      string `yaml:"token"`
	} `yaml:"deploy"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default returns a config with every optional setting filled in.
func Default() *Config {
	var cfg Config
	cfg.GitHub.Owner = "AdobeDocs"
	cfg.GitHub.BaseBranch = "main"
	cfg.GitHub.HeadBranch = "ai-metadata"
	cfg.AI.Provider = "azure"
	cfg.AI.APIVersion = "2024-02-15-preview"
	cfg.AI.MaxTokens = 800
	cfg.AI.Temperature = 1
	cfg.Pages.Dir = "src/pages/"
	cfg.Pipeline.FetchFile = "changed_files_content.txt"
	cfg.Pipeline.GeneratedFile = "ai_content.txt"
	cfg.Pipeline.SkipUnchanged = true
	cfg.Storage.Path = ".docmeta/ledger.db"
	cfg.Deploy.AdminURL = "https://admin.hlx.page"
	cfg.Deploy.Org = "adobedocs"
	cfg.Log.Level = "info"
	cfg.Log.Format = "console"
	return &cfg
}

// LoadConfig reads .env, then the YAML file at path over the defaults,
// then environment overrides. A missing file is an error unless
// optional is set.
func LoadConfig(path string, optional bool) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := Default()

	// 2. Load YAML config
	if path != "" {
		file, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(file, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case optional && errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// 3. Override with Environment Variables if present
	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}

	setString(&cfg.GitHub.Token, "DOCMETA_GITHUB_TOKEN", "GITHUB_TOKEN")
	setString(&cfg.GitHub.Owner, "DOCMETA_GITHUB_OWNER", "GITHUB_OWNER")
	setString(&cfg.GitHub.Repo, "DOCMETA_GITHUB_REPO", "GITHUB_REPO")
	setString(&cfg.GitHub.BaseURL, "DOCMETA_GITHUB_API_URL", "GITHUB_API_URL")
	setString(&cfg.AI.Provider, "DOCMETA_AI_PROVIDER")
	setString(&cfg.AI.Model, "DOCMETA_AI_MODEL")
	setString(&cfg.AI.APIKey, "DOCMETA_AI_API_KEY", "AZURE_OPENAI_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY")
	setString(&cfg.AI.Endpoint, "DOCMETA_AI_ENDPOINT", "AZURE_OPENAI_ENDPOINT")
	setString(&cfg.Deploy.Env, "DOCMETA_DEPLOY_ENV")
	setString(&cfg.Deploy.Branch, "DOCMETA_DEPLOY_BRANCH")
	setString(&cfg.Deploy.PathPrefix, "DOCMETA_PATH_PREFIX")
	setString(&cfg.Deploy.Token, "DOCMETA_DEPLOY_TOKEN")
	setString(&cfg.Storage.Path, "DOCMETA_DB_PATH")
	setString(&cfg.Log.Level, "DOCMETA_LOG_LEVEL")

	if v := os.Getenv("DOCMETA_SKIP_UNCHANGED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Pipeline.SkipUnchanged = b
		}
	}
}

// Stage names a pipeline step for validation.
type Stage string

const (
	StageFetchRemote Stage = "fetch"
	StageFetchLocal  Stage = "fetch-local"
	StageGenerate    Stage = "generate"
	StageCreatePR    Stage = "create-pr"
	StageReview      Stage = "review"
	StageDeploy      Stage = "deploy"
	StageSummarize   Stage = "summarize"
)

// Validate reports every setting stage needs that is missing. Each
// error wraps ErrMissingParameter.
func (c *Config) Validate(stage Stage) error {
	var errs []error
	require := func(v, name string) {
		if strings.TrimSpace(v) == "" {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingParameter, name))
		}
	}

	switch stage {
	case StageFetchRemote, StageCreatePR, StageReview:
		require(c.GitHub.Owner, "github.owner")
		require(c.GitHub.Repo, "github.repo")
		require(c.GitHub.Token, "github.token (GITHUB_TOKEN)")
	case StageGenerate:
		c.requireAI(require)
	case StageDeploy:
		require(c.Deploy.Env, "deploy.env")
	case StageSummarize:
		c.requireAI(require)
		require(c.Deploy.Env, "deploy.env")
		require(c.Deploy.Branch, "deploy.branch")
	}
	return errors.Join(errs...)
}

func (c *Config) requireAI(require func(v, name string)) {
	require(c.AI.APIKey, "ai.api_key")
	require(c.AI.Model, "ai.model")
	if strings.EqualFold(c.AI.Provider, "azure") || c.AI.Provider == "" {
		require(c.AI.Endpoint, "ai.endpoint (AZURE_OPENAI_ENDPOINT)")
	}
}
