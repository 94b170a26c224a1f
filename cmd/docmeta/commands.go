package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"docmeta/internal/batch"
	"docmeta/internal/config"
	"docmeta/internal/deploy"
	"docmeta/internal/git"
	"docmeta/internal/llm"
	"docmeta/internal/logging"
	"docmeta/internal/pipeline"
	"docmeta/internal/storage"

	"github.com/spf13/cobra"
)

var (
	fetchSource  string
	fetchFiles   []string
	fetchPR      int
	fetchRef     string
	fetchRoot    string
	fetchBaseRef string
	fetchOutput  string

	generateInput  string
	generateOutput string

	publishInput string
	prBase       string
	prHead       string
	reviewPR     int

	deployOperation string
	deployEnv       string
	deployBranch    string
	deployPrefix    string
	deployChanges   []string
	deployDeletions []string
	deployBaseRef   string
	deployRoot      string

	summarizeInput   string
	summarizeChanges []string
	summarizeEnv     string
	summarizeBranch  string
	summarizePrefix  string
	summarizeBaseRef string
	summarizeRoot    string

	historyLimit int
	historyRun   string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Collect documentation pages into a batch file",
	RunE: func(cmd *cobra.Command, args []string) error {
		source := pipeline.Source(fetchSource)
		stage := config.StageFetchRemote
		if source == pipeline.SourceLocal {
			stage = config.StageFetchLocal
		}
		cfg, logger, err := setup(cmd, stage)
		if err != nil {
			return err
		}
		defer logger.Sync()

		filter, err := newFilter(cfg)
		if err != nil {
			return err
		}
		files, err := changedFiles(fetchFiles)
		if err != nil {
			return err
		}
		output := firstNonEmpty(fetchOutput, cfg.Pipeline.FetchFile)

		var hosting pipeline.Hosting
		if source != pipeline.SourceLocal {
			hosting = newHosting(cfg)
		}
		fetcher := pipeline.NewFetcher(hosting, filter, logger)

		fmt.Printf("🔎 Fetching pages (%s)...\n", source)
		b, runErr := fetcher.Run(cmd.Context(), pipeline.FetchRequest{
			Source:    source,
			Paths:     files,
			PRNumber:  fetchPR,
			Ref:       fetchRef,
			LocalRoot: fetchRoot,
			BaseRef:   fetchBaseRef,
		})
		if runErr != nil && !errors.Is(runErr, batch.ErrEmptyBatch) {
			return runErr
		}
		if err := batch.WriteFile(output, b, fetcher.Notice(source)); err != nil {
			return err
		}
		if runErr != nil {
			return runErr
		}
		fmt.Printf("✅ Wrote %d documents to %s\n", len(b), output)
		return nil
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate frontmatter for every document of a batch file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd, config.StageGenerate)
		if err != nil {
			return err
		}
		defer logger.Sync()

		in, err := readBatch(firstNonEmpty(generateInput, cfg.Pipeline.FetchFile))
		if err != nil {
			return err
		}

		completer, err := llm.NewCompleter(cmd.Context(), llm.CompleterOptions{
			Provider:   cfg.AI.Provider,
			APIKey:     cfg.AI.APIKey,
			Model:      cfg.AI.Model,
			BaseURL:    cfg.AI.Endpoint,
			APIVersion: cfg.AI.APIVersion,
		})
		if err != nil {
			return fmt.Errorf("failed to create completer: %w", err)
		}

		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		var ledger storage.Ledger
		if store != nil {
			defer store.Close()
			ledger = store
		}

		prompts := &llm.PromptBuilder{MaxTokens: cfg.AI.MaxTokens, Temperature: cfg.AI.Temperature}
		generator := pipeline.NewGenerator(completer, prompts, ledger, logger)
		generator.SkipUnchanged = cfg.Pipeline.SkipUnchanged

		fmt.Printf("🤖 Generating metadata for %d documents...\n", len(in))
		start := time.Now()
		res, runErr := generator.Run(cmd.Context(), in)
		if runErr != nil && !errors.Is(runErr, batch.ErrEmptyBatch) {
			return runErr
		}

		output := firstNonEmpty(generateOutput, cfg.Pipeline.GeneratedFile)
		if err := batch.WriteFile(output, res.Output, "No metadata generated"); err != nil {
			return err
		}
		if runErr != nil {
			return runErr
		}
		fmt.Printf("✅ Generated %d, reused %d, skipped %d in %v. Output: %s\n",
			res.Generated, res.Reused, res.Skipped, time.Since(start).Round(time.Millisecond), output)
		return nil
	},
}

var createPRCmd = &cobra.Command{
	Use:   "create-pr",
	Short: "Commit generated metadata to a branch and open a pull request",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd, config.StageCreatePR)
		if err != nil {
			return err
		}
		defer logger.Sync()

		generated, err := readBatch(firstNonEmpty(publishInput, cfg.Pipeline.GeneratedFile))
		if err != nil {
			return err
		}

		creator := pipeline.NewPRCreator(newHosting(cfg),
			firstNonEmpty(prBase, cfg.GitHub.BaseBranch),
			firstNonEmpty(prHead, cfg.GitHub.HeadBranch),
			logger)
		res, err := creator.Run(cmd.Context(), generated)
		if err != nil {
			return err
		}
		if res.PullRequest.Number == 0 {
			fmt.Printf("🔁 Updated %s with %d files; its pull request is already open\n", res.Branch, len(res.Files))
			return nil
		}
		fmt.Printf("🎉 PR #%d created: %s\n", res.PullRequest.Number, res.PullRequest.HTMLURL)
		return nil
	},
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Post generated metadata as suggestions on a pull request",
	RunE: func(cmd *cobra.Command, args []string) error {
		if reviewPR <= 0 {
			return fmt.Errorf("%w: --pr", config.ErrMissingParameter)
		}
		cfg, logger, err := setup(cmd, config.StageReview)
		if err != nil {
			return err
		}
		defer logger.Sync()

		generated, err := readBatch(firstNonEmpty(publishInput, cfg.Pipeline.GeneratedFile))
		if err != nil {
			return err
		}

		out, err := pipeline.NewReviewer(newHosting(cfg), logger).Run(cmd.Context(), reviewPR, generated)
		if err != nil {
			return err
		}
		fmt.Printf("💬 Review %d posted with %d suggestions: %s\n", out.Review.ID, len(out.Comments), out.Review.HTMLURL)
		return nil
	},
}

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Preview, publish or purge pages on the edge publishing service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if deployEnv != "" {
			cfg.Deploy.Env = deployEnv
		}
		if deployBranch != "" {
			cfg.Deploy.Branch = deployBranch
		}
		if cmd.Flags().Changed("path-prefix") {
			cfg.Deploy.PathPrefix = deployPrefix
		}
		if err := cfg.Validate(config.StageDeploy); err != nil {
			return err
		}
		op, err := deploy.ParseOperation(deployOperation)
		if err != nil {
			return err
		}
		logger, err := setupLogger(cfg)
		if err != nil {
			return err
		}
		defer logger.Sync()
		cmd.SetContext(logging.WithLogger(cmd.Context(), logger))
		filter, err := newFilter(cfg)
		if err != nil {
			return err
		}

		changes, deletions := deployChanges, deployDeletions
		if deployBaseRef != "" {
			repo, err := git.Open(firstNonEmpty(deployRoot, "."))
			if err != nil {
				return err
			}
			files, err := repo.ChangedFiles(deployBaseRef)
			if err != nil {
				return err
			}
			present, removed := git.Split(files)
			changes = append(changes, present...)
			deletions = append(deletions, removed...)

			if cfg.Deploy.Branch == "" {
				if branch, _, err := repo.Head(); err == nil {
					cfg.Deploy.Branch = branch
				}
			}
		}
		if len(changes)+len(deletions) == 0 {
			return fmt.Errorf("no files to %s: %w", op, batch.ErrEmptyBatch)
		}

		deployer, err := deploy.NewDeployer(deploy.NewHTTPPublisher(cfg.Deploy.Token), deploy.Options{
			AdminURL:      cfg.Deploy.AdminURL,
			Org:           cfg.Deploy.Org,
			Env:           cfg.Deploy.Env,
			ContentBranch: cfg.Deploy.Branch,
			PathPrefix:    cfg.Deploy.PathPrefix,
			PagesDir:      filter.PagesDir(),
		}, logger)
		if err != nil {
			return err
		}

		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		var ledger pipeline.DeployLedger
		if store != nil {
			defer store.Close()
			ledger = store
		}

		fmt.Printf("🚀 Running %s on %d files (%s)...\n", op, len(changes)+len(deletions), cfg.Deploy.Env)
		summary, err := pipeline.NewDeploy(deployer, ledger, logger).Run(cmd.Context(), op, changes, deletions)
		if err != nil {
			return err
		}
		fmt.Println()
		if err := summary.WriteTable(os.Stdout, op); err != nil {
			return err
		}
		if n := summary.Count(deploy.StatusError); n > 0 {
			return fmt.Errorf("%s failed for %d files", op, n)
		}
		return nil
	},
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Ask the model for a bulleted summary of each changed page preview",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if summarizeEnv != "" {
			cfg.Deploy.Env = summarizeEnv
		}
		if summarizeBranch != "" {
			cfg.Deploy.Branch = summarizeBranch
		}
		if cmd.Flags().Changed("path-prefix") {
			cfg.Deploy.PathPrefix = summarizePrefix
		}

		files := summarizeChanges
		if summarizeInput != "" {
			b, err := readBatch(summarizeInput)
			if err != nil {
				return err
			}
			files = append(files, b.Paths()...)
		}
		if summarizeBaseRef != "" {
			repo, err := git.Open(firstNonEmpty(summarizeRoot, "."))
			if err != nil {
				return err
			}
			changed, err := repo.ChangedFiles(summarizeBaseRef)
			if err != nil {
				return err
			}
			present, _ := git.Split(changed)
			files = append(files, present...)
			if cfg.Deploy.Branch == "" {
				if branch, _, err := repo.Head(); err == nil {
					cfg.Deploy.Branch = branch
				}
			}
		}

		if err := cfg.Validate(config.StageSummarize); err != nil {
			return err
		}
		logger, err := setupLogger(cfg)
		if err != nil {
			return err
		}
		defer logger.Sync()
		cmd.SetContext(logging.WithLogger(cmd.Context(), logger))
		filter, err := newFilter(cfg)
		if err != nil {
			return err
		}

		completer, err := llm.NewCompleter(cmd.Context(), llm.CompleterOptions{
			Provider:   cfg.AI.Provider,
			APIKey:     cfg.AI.APIKey,
			Model:      cfg.AI.Model,
			BaseURL:    cfg.AI.Endpoint,
			APIVersion: cfg.AI.APIVersion,
		})
		if err != nil {
			return fmt.Errorf("failed to create completer: %w", err)
		}

		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		var ledger pipeline.RunLedger
		if store != nil {
			defer store.Close()
			ledger = store
		}

		prompts := &llm.PromptBuilder{MaxTokens: cfg.AI.MaxTokens, Temperature: cfg.AI.Temperature}
		summarizer, err := pipeline.NewSummarizer(completer, prompts, pipeline.SummarizeOptions{
			Org:           cfg.Deploy.Org,
			Env:           cfg.Deploy.Env,
			ContentBranch: cfg.Deploy.Branch,
			PathPrefix:    cfg.Deploy.PathPrefix,
			PagesDir:      filter.PagesDir(),
		}, ledger, logger)
		if err != nil {
			return err
		}

		fmt.Printf("📝 Summarizing %d pages (%s)...\n", len(files), cfg.Deploy.Env)
		results, err := summarizer.Run(cmd.Context(), files)
		for _, r := range results {
			if r.Err != nil {
				fmt.Printf("\n⚠️  %s: %v\n", r.Path, r.Err)
				continue
			}
			fmt.Printf("\n📄 %s\n%s\n", r.URL, r.Summary)
		}
		return err
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent pipeline runs from the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		if store == nil {
			return fmt.Errorf("%w: storage.path", config.ErrMissingParameter)
		}
		defer store.Close()

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		if historyRun != "" {
			records, err := store.DeployResults(cmd.Context(), historyRun)
			if err != nil {
				return err
			}
			fmt.Fprintln(tw, "PATH\tOPERATION\tMETHOD\tSTATUS\tHTTP\tNOTE")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", r.Path, r.Operation, r.Method, r.Status, r.HTTPStatus, r.Note)
			}
			return tw.Flush()
		}

		runs, err := store.RecentRuns(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "RUN\tSTAGE\tSTATUS\tSTARTED\tOK\tSKIPPED\tFAILED")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
				r.ID, r.Stage, r.Status, r.StartedAt.Format(time.RFC3339), r.Processed, r.Skipped, r.Failed)
		}
		return tw.Flush()
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchSource, "source", string(pipeline.SourceChanged), "Page source: changed, pr, all or local")
	fetchCmd.Flags().StringSliceVar(&fetchFiles, "files", nil, "Changed file paths (comma separated or a JSON array); defaults to $CHANGED_FILES")
	fetchCmd.Flags().IntVar(&fetchPR, "pr", 0, "Pull request number for --source pr")
	fetchCmd.Flags().StringVar(&fetchRef, "ref", "", "Branch, tag or sha to read remote content at")
	fetchCmd.Flags().StringVar(&fetchRoot, "root", ".", "Local checkout for --source local")
	fetchCmd.Flags().StringVar(&fetchBaseRef, "base", "", "With --source local, only pages changed since this revision")
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "Batch file to write")

	generateCmd.Flags().StringVarP(&generateInput, "input", "i", "", "Batch file to read")
	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", "", "Generated batch file to write")

	for _, c := range []*cobra.Command{createPRCmd, reviewCmd} {
		c.Flags().StringVarP(&publishInput, "input", "i", "", "Generated batch file to read")
	}
	createPRCmd.Flags().StringVar(&prBase, "base", "", "Base branch of the pull request")
	createPRCmd.Flags().StringVar(&prHead, "head", "", "Branch to commit generated metadata to")
	reviewCmd.Flags().IntVar(&reviewPR, "pr", 0, "Pull request number to review")

	deployCmd.Flags().StringVar(&deployOperation, "operation", string(deploy.Preview), "preview, live or cache")
	deployCmd.Flags().StringVar(&deployEnv, "env", "", "Site environment: stage or prod")
	deployCmd.Flags().StringVar(&deployBranch, "branch", "", "Content branch sent to stage previews and purges")
	deployCmd.Flags().StringVar(&deployPrefix, "path-prefix", "", "Site path prefix of the pages")
	deployCmd.Flags().StringSliceVar(&deployChanges, "changes", nil, "Changed files to deploy")
	deployCmd.Flags().StringSliceVar(&deployDeletions, "deletions", nil, "Deleted files to remove")
	deployCmd.Flags().StringVar(&deployBaseRef, "base", "", "Derive changes and deletions from a local git diff against this revision")
	deployCmd.Flags().StringVar(&deployRoot, "root", ".", "Local checkout for --base")

	summarizeCmd.Flags().StringVarP(&summarizeInput, "input", "i", "", "Batch file whose document paths are summarized")
	summarizeCmd.Flags().StringSliceVar(&summarizeChanges, "changes", nil, "Changed files to summarize")
	summarizeCmd.Flags().StringVar(&summarizeBaseRef, "base", "", "Summarize pages changed in a local git diff against this revision")
	summarizeCmd.Flags().StringVar(&summarizeRoot, "root", ".", "Local checkout for --base")
	summarizeCmd.Flags().StringVar(&summarizeEnv, "env", "", "Site environment: stage or prod")
	summarizeCmd.Flags().StringVar(&summarizeBranch, "branch", "", "Content branch the pages are previewed from")
	summarizeCmd.Flags().StringVar(&summarizePrefix, "path-prefix", "", "Site path prefix of the pages")

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to list")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "Show the per-file results of a deploy run")
}

// changedFiles returns flag values, or the JSON array in $CHANGED_FILES
// when the flag is unset. A single flag value holding a JSON array is
// decoded too.
func changedFiles(flag []string) ([]string, error) {
	raw := ""
	switch {
	case len(flag) == 1 && strings.HasPrefix(strings.TrimSpace(flag[0]), "["):
		raw = flag[0]
	case len(flag) > 0:
		return flag, nil
	default:
		raw = os.Getenv("CHANGED_FILES")
	}
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var files []string
	if err := json.Unmarshal([]byte(raw), &files); err != nil {
		return nil, fmt.Errorf("failed to parse changed files %q: %w", raw, err)
	}
	return files, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
