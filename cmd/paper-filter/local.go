package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"paper-filter/analyzer"
	"paper-filter/config"
	"paper-filter/csvio"
	"paper-filter/dynamodb"
	"paper-filter/filter"
	"paper-filter/logger"
	"paper-filter/processor"
	"paper-filter/review"
	"paper-filter/store/sqlite"
)

type options struct {
	configPath string
	input      string
	include    string
	exclude    string
	all        bool
	minWords   int
	maxWords   int
	remove     string
	top        int
	review     bool
	sessionID  string
	sessions   bool
	out        string
	keptOut    string
	push       bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("paper-filter", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&opts.input, "input", "", "CSV or TSV paper export to load")
	fs.StringVar(&opts.include, "include", "", "comma separated keywords a title must contain")
	fs.StringVar(&opts.exclude, "exclude", "", "comma separated keywords that drop a title")
	fs.BoolVar(&opts.all, "all", false, "require every include keyword instead of any")
	fs.IntVar(&opts.minWords, "min-words", -1, "minimum title word count")
	fs.IntVar(&opts.maxWords, "max-words", -1, "maximum title word count")
	fs.StringVar(&opts.remove, "remove", "", "comma separated record ids to exclude by hand")
	fs.IntVar(&opts.top, "top", 0, "number of frequent title words to print")
	fs.BoolVar(&opts.review, "review", false, "review the filtered papers one at a time")
	fs.StringVar(&opts.sessionID, "session", "", "resume a stored review session for this input file")
	fs.BoolVar(&opts.sessions, "sessions", false, "list review sessions in the sqlite store and exit")
	fs.StringVar(&opts.out, "out", "", "write the filtered papers to this CSV file")
	fs.StringVar(&opts.keptOut, "kept-out", "", "write the papers kept in review to this CSV file")
	fs.BoolVar(&opts.push, "push", false, "push review decisions to DynamoDB")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.input == "" && !opts.sessions {
		return opts, errors.New("-input is required")
	}
	return opts, nil
}

// criteria starts from the configured filter and lets flags override it
func (o options) criteria(base filter.Criteria) filter.Criteria {
	c := base
	if o.include != "" {
		c.Include = filter.ParseKeywords(o.include)
	}
	if o.exclude != "" {
		c.Exclude = filter.ParseKeywords(o.exclude)
	}
	if o.all {
		c.Mode = filter.MatchAll
	}
	if o.minWords >= 0 {
		c.MinWords = filter.Bound(o.minWords)
	}
	if o.maxWords >= 0 {
		c.MaxWords = filter.Bound(o.maxWords)
	}
	return c
}

func parseIDs(text string) ([]int, error) {
	var ids []int
	for _, part := range filter.ParseKeywords(text) {
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid record id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// openStore returns the configured decision store and a function releasing it
func openStore(ctx context.Context, cfg *config.Config) (review.DecisionStore, func(), error) {
	switch cfg.Review.Store {
	case config.StoreSQLite:
		store, err := sqlite.Open(ctx, cfg.Review.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case config.StoreDynamoDB:
		return dynamodb.NewWriter(cfg.AWS.DynamoDB.DecisionsTable, cfg.AWS.Region), func() {}, nil
	default:
		return review.NewMemoryStore(), func() {}, nil
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}

	cfg, err := config.NewManagerWithClient(nil).LoadFromFile(opts.configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	log := logger.NewWithWriter("paper-filter", stderr, logger.ParseLevel(cfg.Logging.Level))

	if err := runLocal(ctx, opts, cfg, log, stdin, stdout); err != nil {
		log.Error("Local run failed", err)
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func runLocal(ctx context.Context, opts options, cfg *config.Config, log *logger.Logger, stdin io.Reader, stdout io.Writer) error {
	if opts.sessions {
		return listSessions(ctx, cfg, stdout)
	}

	loader := csvio.NewLoaderWithLogger(log.Named("csvio"))
	loader.TitleColumn = cfg.Input.TitleColumn
	loader.AbstractColumn = cfg.Input.AbstractColumn
	table, err := loader.LoadFile(opts.input)
	if err != nil {
		return err
	}

	store, release, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer release()

	ws := processor.NewWorkspace(processor.WorkspaceOptions{
		Dedup:        cfg.DedupOptions(),
		Analyzer:     cfg.AnalyzerOptions(),
		RetainPolicy: cfg.RetainPolicy(),
		Cumulative:   cfg.Workspace.CumulativeFilters,
		Store:        store,
		SessionID:    opts.sessionID,
		Logger:       log,
	})
	ws.Load(table)

	if c := opts.criteria(cfg.Filter); !c.IsZero() {
		if _, err := ws.ApplyFilter(c); err != nil {
			return err
		}
	}
	if opts.remove != "" {
		ids, err := parseIDs(opts.remove)
		if err != nil {
			return logger.NewAppError(logger.ErrorTypeValidation, "invalid -remove list", err)
		}
		if _, err := ws.RemoveRecords(ids...); err != nil {
			return err
		}
	}

	top := opts.top
	if top <= 0 {
		top = cfg.Analysis.TopN
	}
	printSummary(stdout, ws.Summary(), ws.WordFrequencies(top))

	if opts.out != "" {
		filtered, err := ws.Filtered()
		if err != nil {
			return err
		}
		if err := csvio.WriteFile(opts.out, filtered); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Wrote %d papers to %s\n", filtered.Len(), opts.out)
	}

	if opts.review {
		if err := runReview(ctx, ws, stdin, stdout); err != nil {
			return err
		}
	}

	if opts.keptOut != "" {
		kept, err := ws.KeptTable(ctx)
		if err != nil {
			return err
		}
		if err := csvio.WriteFile(opts.keptOut, kept); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Wrote %d kept papers to %s\n", kept.Len(), opts.keptOut)
	}

	if opts.push {
		return pushDecisions(ctx, ws, cfg, stdout)
	}
	return nil
}

func printSummary(w io.Writer, summary processor.Summary, terms []analyzer.TermCount) {
	fmt.Fprintf(w, "Title column: %s\n", summary.TitleColumn)
	fmt.Fprintf(w, "Loaded %d papers (%d duplicates removed)\n", summary.Dedup.OriginalCount, summary.Dedup.DuplicateCount)
	fmt.Fprintf(w, "Filtered: %d kept, %d removed\n", summary.FilteredRecords, summary.RemovedRecords)
	if summary.RemovedRecords > 0 {
		fmt.Fprintf(w, "  missing include: %d, matched exclude: %d, length: %d, manual: %d\n",
			summary.Filter.MissingInclude, summary.Filter.MatchedExclude,
			summary.Filter.OutOfLengthBand, summary.Filter.ManualExcluded)
	}
	if len(terms) == 0 {
		return
	}

	fmt.Fprintln(w, "Frequent title words:")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, term := range terms {
		fmt.Fprintf(tw, "  %s\t%d\n", term.Term, term.Count)
	}
	tw.Flush()
}

func listSessions(ctx context.Context, cfg *config.Config, w io.Writer) error {
	if cfg.Review.Store != config.StoreSQLite {
		return logger.NewAppError(logger.ErrorTypeConfig, "-sessions needs review.store: sqlite", nil)
	}
	store, err := sqlite.Open(ctx, cfg.Review.SQLitePath)
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.Sessions(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No stored review sessions")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tDECIDED\tKEPT\tLAST DECIDED")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", s.SessionID, s.Decided, s.Kept, s.LastDecided.Format(time.RFC3339))
	}
	return tw.Flush()
}

// pushDecisions uploads every kept and rejected record of the session
func pushDecisions(ctx context.Context, ws *processor.Workspace, cfg *config.Config, w io.Writer) error {
	sessionID, err := ws.SessionID(ctx)
	if err != nil {
		return err
	}
	kept, err := ws.KeptTable(ctx)
	if err != nil && !logger.IsErrorCode(err, logger.CodeNoData) {
		return err
	}
	rejected, err := ws.RejectedTable(ctx)
	if err != nil && !logger.IsErrorCode(err, logger.CodeNoData) {
		return err
	}

	items := dynamodb.ItemsFromTables(sessionID, kept, rejected, time.Now())
	if len(items) == 0 {
		fmt.Fprintln(w, "No decisions to push")
		return nil
	}

	writer := dynamodb.NewWriter(cfg.AWS.DynamoDB.DecisionsTable, cfg.AWS.Region)
	stats, err := writer.BatchUpsertWithStats(ctx, items)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Pushed %d of %d decisions to %s\n", stats.SuccessItems, stats.TotalItems, cfg.AWS.DynamoDB.DecisionsTable)
	if stats.FailedItems > 0 {
		return logger.NewAppError(logger.ErrorTypeDynamoDB, fmt.Sprintf("%d decisions failed to push", stats.FailedItems), nil)
	}
	return nil
}
