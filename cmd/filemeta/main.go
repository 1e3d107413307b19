package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/flaneur2020/filemeta/filemeta"
	"github.com/flaneur2020/filemeta/filemeta/chunk"
	"github.com/flaneur2020/filemeta/filemeta/config"
	"github.com/flaneur2020/filemeta/filemeta/formats"
	"github.com/flaneur2020/filemeta/filemeta/logger"
	"github.com/flaneur2020/filemeta/filemeta/storage"
)

var (
	logLevel   string
	envFile    string
	output     string
	format     string
	workers    int
	noProgress bool
	groups     []string
	dialect    string

	cfg *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:               "filemeta",
		Short:             "Extract descriptive metadata from image and document files",
		PersistentPreRunE: loadConfig,
		SilenceUsage:      true,
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: silent, error, warn, info or debug")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load settings from this file instead of .env")

	// extract command
	extractCmd := &cobra.Command{
		Use:   "extract <PATH>...",
		Short: "Print the metadata of files. Directories are walked recursively",
		Args:  cobra.MinimumNArgs(1),
		Run:   runExtract,
	}
	addExtractFlags(extractCmd.Flags())

	// chunks command
	chunksCmd := &cobra.Command{
		Use:   "chunks <FILE>",
		Short: "List the chunks of a PNG, GIF, JPEG or EXR file",
		Args:  cobra.ExactArgs(1),
		Run:   runChunks,
	}
	chunksCmd.Flags().StringVar(&dialect, "dialect", "", "Container dialect: png, gif, jpeg or exr (sniffed by default)")

	// comment command
	commentCmd := &cobra.Command{
		Use:   "comment <FILE> <TEXT>",
		Short: "Replace the comment of a JPEG file or the image name of an SGI file. Empty text clears it",
		Args:  cobra.ExactArgs(2),
		Run:   runComment,
	}
	commentCmd.Flags().StringVar(&format, "format", "", "Force an extractor instead of sniffing (see 'filemeta formats')")

	// formats command
	formatsCmd := &cobra.Command{
		Use:   "formats",
		Short: "List the supported formats",
		Args:  cobra.NoArgs,
		Run:   runFormats,
	}

	rootCmd.AddCommand(extractCmd, chunksCmd, commentCmd, formatsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addExtractFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&output, "output", "o", "", "Output format: text, json or yaml")
	fs.StringVar(&format, "format", "", "Force an extractor instead of sniffing (see 'filemeta formats')")
	fs.IntVarP(&workers, "workers", "w", 0, "Files extracted in parallel")
	fs.BoolVar(&noProgress, "no-progress", false, "Disable the progress bar (shown by default on a terminal)")
	fs.StringSliceVarP(&groups, "group", "g", nil, "Only print these groups (repeatable)")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(envFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		level, err := logger.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}
	logger.SetLogLevel(cfg.LogLevel)
	formats.SetMaxTextHeader(cfg.MaxHeader)
	return nil
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func runExtract(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	out := cfg.Output
	if output != "" {
		out = strings.ToLower(output)
		if err := config.ValidateOutput(out); err != nil {
			fail(err)
		}
	}
	n := cfg.Workers
	if workers > 0 {
		n = workers
	}

	extractor, err := filemeta.NewExtractor(
		filemeta.WithFormat(format),
		filemeta.WithCacheSize(cfg.CacheSize),
	)
	if err != nil {
		fail(err)
	}

	st := storage.NewLocalStorage(args...)
	descs, err := st.List(ctx)
	if err != nil {
		fail(err)
	}
	names := make([]string, 0, len(descs))
	for _, d := range descs {
		names = append(names, d.Name)
	}
	if len(names) == 0 {
		fail(fmt.Errorf("no files found"))
	}

	// Progress bar is shown when stderr is a terminal and more than one file is extracted
	showProgress := !noProgress && len(names) > 1 && term.IsTerminal(int(os.Stderr.Fd()))

	var progress filemeta.ProgressCallback
	var bar *progressbar.ProgressBar
	if showProgress {
		bar = progressbar.NewOptions(len(names),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription(fmt.Sprintf("Extracting %d files", len(names))),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		progress = func(done, total int) {
			bar.Set(done)
		}
	}

	results, extractErr := extractor.ExtractAll(ctx, st, names, n, progress)
	if bar != nil {
		bar.Finish()
	}

	if len(groups) > 0 {
		for i := range results {
			if results[i].Info != nil {
				results[i].Info = results[i].Info.Filter(groups...)
			}
		}
	}
	if err := render(os.Stdout, out, results); err != nil {
		fail(err)
	}

	if extractErr != nil {
		fail(extractErr)
	}
}

func render(w io.Writer, out string, results []filemeta.Result) error {
	switch out {
	case "json":
		return filemeta.RenderJSON(w, results)
	case "yaml":
		return filemeta.RenderYAML(w, results)
	default:
		return filemeta.RenderText(w, results)
	}
}

func runChunks(cmd *cobra.Command, args []string) {
	blob, err := storage.NewLocalStorage().Open(context.Background(), args[0])
	if err != nil {
		fail(err)
	}
	d, err := pickDialect(blob)
	blob.Close()
	if err != nil {
		fail(err)
	}

	s, err := chunk.Open(args[0], d)
	if err != nil {
		fail(err)
	}
	defer s.Close()

	fmt.Printf("Chunks in %s (%s):\n", args[0], d.Name())
	fmt.Printf("%-14s %-12s %10s %10s\n", "TAG", "TYPE", "OFFSET", "LENGTH")
	for s.Scan() {
		printChunk(s.Chunk())
	}
	if err := s.Err(); err != nil {
		fail(err)
	}
	if c, ok := s.Terminal(); ok {
		printChunk(c)
	}
}

// pickDialect returns the --dialect choice or the dialect of the sniffed format.
func pickDialect(blob storage.Blob) (chunk.Dialect, error) {
	name := dialect
	if name == "" {
		head := make([]byte, min(blob.Size(), formats.SniffLen))
		if _, err := blob.ReadAt(head, 0); err != nil && err != io.EOF {
			return nil, err
		}
		e, ok := formats.Sniff(blob.Name(), head)
		if !ok {
			return nil, fmt.Errorf("cannot detect the format of %s, use --dialect", blob.Name())
		}
		name = e.Name()
	}
	d, ok := chunk.Dialects[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%s has no chunk dialect (want png, gif, jpeg or exr)", name)
	}
	return d, nil
}

func printChunk(c chunk.Chunk) {
	fmt.Printf("%-14s %-12s %10d %10d\n", printableTag(c.Tag), c.Type, c.Offset, c.Length)
}

// printableTag shows binary marker tags as hex.
func printableTag(tag string) string {
	for i := 0; i < len(tag); i++ {
		if tag[i] < 0x20 || tag[i] > 0x7e {
			return fmt.Sprintf("0x%x", tag)
		}
	}
	return tag
}

func runComment(cmd *cobra.Command, args []string) {
	extractor, err := filemeta.NewExtractor(
		filemeta.WithFormat(format),
		filemeta.WithCacheSize(0),
	)
	if err != nil {
		fail(err)
	}
	if err := extractor.SetComment(context.Background(), args[0], args[1]); err != nil {
		fail(err)
	}
}

func runFormats(cmd *cobra.Command, args []string) {
	fmt.Printf("%-6s %-32s %s\n", "NAME", "EXTENSIONS", "MIME TYPES")
	for _, e := range formats.All() {
		fmt.Printf("%-6s %-32s %s\n", e.Name(), strings.Join(e.Extensions(), ","), strings.Join(e.MimeTypes(), ", "))
	}
}
