// ikup displays images in Kitty-graphics-protocol terminals via the Unicode
// placeholder extension: it assigns a stable id to an image, uploads its
// encoded bytes at most once per terminal, and emits the placeholder cells
// that reference it.
//
// Usage:
//
//	ikup <command> [flags] [args] [: <command> [flags] [args] ...]
//
// Commands:
//
//	display <path>       assign an id, upload if needed, draw the placeholder
//	upload <path>        assign an id and upload, without drawing anything
//	get-id <path>        assign an id and print it, without uploading
//	placeholder <path>   draw the placeholder for an already-uploaded id
//	list                 print known instances, one per --format line
//	fix <path>...        reconcile stored state against what's on disk
//	reupload <path>      force a re-upload even if the terminal already has it
//	dirty <id>...        mark ids so the next upload can't take the no-op path
//	forget <id>...        drop ids from the database and cache entirely
//	cache convert|check|list|remove|purge|status|cleanup
//	status               summarize the id database and transcode cache
//	dump-config          print the effective configuration as TOML
//	cleanup              purge aged/excess id database rows and their cache entries
//
// Multiple commands in one invocation are separated by a bare ":" argument
// and share one id database handle.
//
// Flags:
//
//	-config string    path to a TOML configuration file
//	-verbose          enable debug logging
//	-version          print version and exit
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/disintegration/imaging"

	"gitlab.com/tinyland/lab/ikup/pkg/config"
	"gitlab.com/tinyland/lab/ikup/pkg/coordinator"
	"gitlab.com/tinyland/lab/ikup/pkg/formula"
	"gitlab.com/tinyland/lab/ikup/pkg/idspace"
	"gitlab.com/tinyland/lab/ikup/pkg/placeholder"
	"gitlab.com/tinyland/lab/ikup/pkg/terminal"
	"gitlab.com/tinyland/lab/ikup/pkg/transcode"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to configuration file")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		showVer    = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVer {
		fmt.Printf("ikup %s (%s) built %s\n", version, commit, date)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(2)
	}

	groups := splitCommands(flag.Args())
	if len(groups) == 0 || (len(groups) == 1 && len(groups[0]) == 0) {
		fmt.Fprintln(os.Stderr, "usage: ikup <command> [flags] [args] [: <command> ...]")
		os.Exit(2)
	}

	c, err := coordinator.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ikup: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	for _, group := range groups {
		if len(group) == 0 {
			continue
		}
		if err := dispatch(c, cfg, group[0], group[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "ikup %s: %v\n", group[0], err)
			os.Exit(exitCodeFor(err))
		}
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// splitCommands breaks args into command groups on a bare ":" token, the
// same separator kitty's own icat/kitten tooling uses for chaining several
// graphics commands in one invocation.
func splitCommands(args []string) [][]string {
	var groups [][]string
	cur := []string{}
	for _, a := range args {
		if a == ":" {
			groups = append(groups, cur)
			cur = []string{}
			continue
		}
		cur = append(cur, a)
	}
	groups = append(groups, cur)
	return groups
}

func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, coordinator.ErrInvalidArg),
		errors.Is(err, coordinator.ErrTransportUnsupported):
		return 2
	default:
		return 1
	}
}

func dispatch(c *coordinator.Coordinator, cfg *config.Config, cmd string, args []string) error {
	switch cmd {
	case "display":
		return runDisplay(c, cfg, args)
	case "upload":
		return runUpload(c, cfg, args)
	case "get-id":
		return runGetID(c, cfg, args)
	case "placeholder":
		return runPlaceholder(c, cfg, args)
	case "list":
		return runList(c, args)
	case "fix":
		return runFix(c, cfg, args)
	case "reupload":
		return runReupload(c, cfg, args)
	case "dirty":
		return runDirty(c, args)
	case "forget":
		return runForget(c, args)
	case "cache":
		return runCache(c, args)
	case "status":
		return runStatus(c, args)
	case "dump-config":
		return runDumpConfig(cfg, args)
	case "cleanup":
		return runCleanup(c, args)
	default:
		return fmt.Errorf("%w: unknown command %q", coordinator.ErrInvalidArg, cmd)
	}
}

// imageFlags are the `--force-id`, `--force-upload`, ... flags shared by
// every command that resolves an id for a path.
type imageFlags struct {
	forceID       string
	forceUpload   bool
	noUpload      bool
	idSpace       string
	idSubspace    string
	scale         float64
	maxCols       int
	maxRows       int
	box           string
	pos           string
	restoreCursor string
	markUploaded  bool
	outCommand    bool
	useLineFeeds  bool
}

func registerImageFlags(fs *flag.FlagSet, cfg *config.Config) *imageFlags {
	fl := &imageFlags{}
	fs.StringVar(&fl.forceID, "force-id", "", "assign this exact id, stealing it from any other instance")
	fs.BoolVar(&fl.forceUpload, "force-upload", false, "upload even if the terminal already has a matching copy")
	fs.BoolVar(&fl.noUpload, "no-upload", false, "assign an id and render a placeholder without uploading")
	fs.StringVar(&fl.idSpace, "id-space", cfg.IDDatabase.IDSpace, "id space: 8bit, 8bit_diacritic, 16bit, 24bit, 32bit")
	fs.StringVar(&fl.idSubspace, "id-subspace", cfg.IDDatabase.IDSubspace, "id subspace \"begin:end\" partitioning the high byte")
	fs.Float64Var(&fl.scale, "scale", cfg.Display.Scale, "scale factor applied to the image's natural cell size")
	fs.IntVar(&fl.maxCols, "max-cols", cfg.Display.MaxCols, "cap the placeholder grid's column count (0 = no cap)")
	fs.IntVar(&fl.maxRows, "max-rows", cfg.Display.MaxRows, "cap the placeholder grid's row count (0 = no cap)")
	fs.StringVar(&fl.box, "box", "", "exact grid size \"COLSxROWS\", overriding --scale/--max-cols/--max-rows")
	fs.StringVar(&fl.pos, "pos", "", "formula expression for absolute cursor placement before drawing")
	fs.StringVar(&fl.restoreCursor, "restore-cursor", cfg.Display.RestoreCursor, "true, false, or auto")
	fs.BoolVar(&fl.markUploaded, "mark-uploaded", false, "record the instance as uploaded for this terminal (with --no-upload, without transmitting it)")
	fs.BoolVar(&fl.outCommand, "out-command", false, "print a shell command that reproduces the output instead of writing it directly")
	fs.BoolVar(&fl.useLineFeeds, "use-line-feeds", cfg.Display.UseLineFeeds, "advance rows with newlines instead of cursor moves")
	return fl
}

func (fl *imageFlags) assignOptions(path string) (coordinator.AssignIDOptions, int, int, error) {
	cols, rows, err := fl.resolveGrid(path)
	if err != nil {
		return coordinator.AssignIDOptions{}, 0, 0, err
	}

	opts := coordinator.AssignIDOptions{Path: path, Cols: cols, Rows: rows, Format: "png"}

	if fl.forceID != "" {
		n, err := strconv.ParseUint(fl.forceID, 10, 32)
		if err != nil {
			return coordinator.AssignIDOptions{}, 0, 0, fmt.Errorf("%w: --force-id %q: %v", coordinator.ErrInvalidArg, fl.forceID, err)
		}
		v := uint32(n)
		opts.ForceID = &v
	}
	if fl.idSpace != "" {
		sp, err := idspace.ParseSpace(fl.idSpace)
		if err != nil {
			return coordinator.AssignIDOptions{}, 0, 0, fmt.Errorf("%w: %v", coordinator.ErrInvalidArg, err)
		}
		opts.Space = &sp
	}
	if fl.idSubspace != "" {
		sub, err := idspace.ParseSubspace(fl.idSubspace)
		if err != nil {
			return coordinator.AssignIDOptions{}, 0, 0, fmt.Errorf("%w: %v", coordinator.ErrInvalidArg, err)
		}
		opts.Subspace = &sub
	}
	return opts, cols, rows, nil
}

// resolveGrid computes the placeholder grid size: --box wins outright,
// otherwise the image's natural size is scaled to cells and capped by
// --max-cols/--max-rows.
func (fl *imageFlags) resolveGrid(path string) (cols, rows int, err error) {
	if fl.box != "" {
		if n, _ := fmt.Sscanf(fl.box, "%dx%d", &cols, &rows); n != 2 || cols <= 0 || rows <= 0 {
			return 0, 0, fmt.Errorf("%w: --box %q, want \"COLSxROWS\"", coordinator.ErrInvalidArg, fl.box)
		}
		return cols, rows, nil
	}

	img, err := imaging.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: decode %s: %v", coordinator.ErrIO, path, err)
	}
	bounds := img.Bounds()

	size := terminal.GetSize()
	cellW, cellH := size.CellW, size.CellH
	if cellW <= 0 {
		cellW = 10
	}
	if cellH <= 0 {
		cellH = 20
	}

	scale := fl.scale
	if scale <= 0 {
		scale = 1.0
	}
	cols = int(math.Ceil(float64(bounds.Dx()) * scale / float64(cellW)))
	rows = int(math.Ceil(float64(bounds.Dy()) * scale / float64(cellH)))
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	if fl.maxCols > 0 && cols > fl.maxCols {
		cols = fl.maxCols
	}
	if fl.maxRows > 0 && rows > fl.maxRows {
		rows = fl.maxRows
	}
	return cols, rows, nil
}

func (fl *imageFlags) cursorMode() placeholder.CursorMode {
	switch fl.restoreCursor {
	case "true":
		return placeholder.CursorSave
	case "false":
		return placeholder.CursorNoSave
	default:
		return placeholder.CursorAuto
	}
}

func (fl *imageFlags) advance() placeholder.Advance {
	if fl.useLineFeeds {
		return placeholder.AdvanceNewline
	}
	return placeholder.AdvanceCursorMove
}

// writeOutput writes buf to stdout, or, when --out-command was given,
// prints a `printf` command line a caller can run (or embed in another
// command's output) to reproduce the same bytes — useful when the escape
// sequence has to cross something that would otherwise mangle raw control
// bytes, like command substitution.
func writeOutput(fl *imageFlags, buf string) error {
	if !fl.outCommand {
		_, err := io.WriteString(os.Stdout, buf)
		return err
	}
	var sb strings.Builder
	sb.WriteString("printf '")
	for _, b := range []byte(buf) {
		fmt.Fprintf(&sb, "\\%03o", b)
	}
	sb.WriteString("'\n")
	_, err := io.WriteString(os.Stdout, sb.String())
	return err
}

func runDisplay(c *coordinator.Coordinator, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("display", flag.ContinueOnError)
	fl := registerImageFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", coordinator.ErrInvalidArg, err)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: display takes exactly one path", coordinator.ErrInvalidArg)
	}
	path := fs.Arg(0)

	assignOpts, cols, rows, err := fl.assignOptions(path)
	if err != nil {
		return err
	}
	size := terminal.GetSize()

	var buf strings.Builder
	inst, err := c.Display(&buf, coordinator.DisplayOptions{
		UploadOptions: coordinator.UploadOptions{
			AssignIDOptions: assignOpts,
			ForceUpload:     fl.forceUpload,
			NoUpload:        fl.noUpload,
		},
		Cursor:   fl.cursorMode(),
		Advance:  fl.advance(),
		Position: fl.pos,
		Vars: formula.Vars{
			TR: float64(size.Rows), TC: float64(size.Cols),
			EC: float64(cols), ER: float64(rows),
		},
	})
	if err != nil {
		return err
	}
	if fl.markUploaded {
		if err := c.MarkUploaded(inst.ID, inst.Fingerprint, assignOpts.Space); err != nil {
			return err
		}
	}
	return writeOutput(fl, buf.String())
}

func runUpload(c *coordinator.Coordinator, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	fl := registerImageFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", coordinator.ErrInvalidArg, err)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: upload takes exactly one path", coordinator.ErrInvalidArg)
	}
	path := fs.Arg(0)

	assignOpts, _, _, err := fl.assignOptions(path)
	if err != nil {
		return err
	}

	var buf strings.Builder
	inst, err := c.Upload(&buf, coordinator.UploadOptions{
		AssignIDOptions: assignOpts,
		ForceUpload:     fl.forceUpload,
	})
	if err != nil {
		return err
	}
	if fl.markUploaded {
		if err := c.MarkUploaded(inst.ID, inst.Fingerprint, assignOpts.Space); err != nil {
			return err
		}
	}
	return writeOutput(fl, buf.String())
}

func runGetID(c *coordinator.Coordinator, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("get-id", flag.ContinueOnError)
	fl := registerImageFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", coordinator.ErrInvalidArg, err)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: get-id takes exactly one path", coordinator.ErrInvalidArg)
	}

	assignOpts, _, _, err := fl.assignOptions(fs.Arg(0))
	if err != nil {
		return err
	}
	inst, err := c.AssignID(assignOpts)
	if err != nil {
		return err
	}
	fmt.Println(inst.ID)
	return nil
}

func runPlaceholder(c *coordinator.Coordinator, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("placeholder", flag.ContinueOnError)
	fl := registerImageFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", coordinator.ErrInvalidArg, err)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: placeholder takes exactly one path", coordinator.ErrInvalidArg)
	}
	path := fs.Arg(0)

	assignOpts, cols, rows, err := fl.assignOptions(path)
	if err != nil {
		return err
	}
	size := terminal.GetSize()

	var buf strings.Builder
	_, err = c.Display(&buf, coordinator.DisplayOptions{
		UploadOptions: coordinator.UploadOptions{
			AssignIDOptions: assignOpts,
			NoUpload:        true,
		},
		Cursor:   fl.cursorMode(),
		Advance:  fl.advance(),
		Position: fl.pos,
		Vars: formula.Vars{
			TR: float64(size.Rows), TC: float64(size.Cols),
			EC: float64(cols), ER: float64(rows),
		},
	})
	if err != nil {
		return err
	}
	return writeOutput(fl, buf.String())
}

func runList(c *coordinator.Coordinator, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	format := fs.String("format", "", "printf-like format string (%i %c %r %p %P %m %a %D %x)")
	last := fs.Int("last", 0, "list only the N most-recently-accessed instances")
	ids := fs.String("ids", "", "comma-separated ids to list, instead of every known instance")
	paths := fs.String("paths", "", "comma-separated source paths to list, instead of every known instance")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", coordinator.ErrInvalidArg, err)
	}

	var query coordinator.ListQuery
	switch {
	case *ids != "":
		parsed, err := parseIDs(strings.Split(*ids, ","))
		if err != nil {
			return err
		}
		query.IDs = parsed
	case *paths != "":
		query.Paths = strings.Split(*paths, ",")
	case *last > 0:
		query.Last = *last
	default:
		query.All = true
	}

	out, err := c.List(coordinator.ListOptions{Format: *format, Query: query})
	if err != nil {
		return err
	}
	_, err = io.WriteString(os.Stdout, out)
	return err
}

func runFix(c *coordinator.Coordinator, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("fix", flag.ContinueOnError)
	fl := registerImageFlags(fs, cfg)
	id := fs.Uint("id", 0, "known id to reconcile, used when the path may no longer exist")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", coordinator.ErrInvalidArg, err)
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%w: fix takes one or more paths", coordinator.ErrInvalidArg)
	}

	var queries []coordinator.FixQuery
	for _, path := range fs.Args() {
		assignOpts, _, _, err := fl.assignOptions(path)
		if err != nil {
			assignOpts = coordinator.AssignIDOptions{Path: path}
		}
		queries = append(queries, coordinator.FixQuery{ID: uint32(*id), AssignIDOptions: assignOpts})
	}

	var buf strings.Builder
	results := c.Fix(&buf, queries)
	var firstErr error
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "fix %s: %v\n", r.Query.Path, r.Err)
			if firstErr == nil {
				firstErr = r.Err
			}
			continue
		}
		status := "ok"
		if r.Uploaded {
			status = "uploaded"
		}
		fmt.Printf("%s\tid=%d\t%s\n", r.Query.Path, r.Instance.ID, status)
	}
	if err := writeOutput(fl, buf.String()); err != nil {
		return err
	}
	return firstErr
}

func runReupload(c *coordinator.Coordinator, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("reupload", flag.ContinueOnError)
	fl := registerImageFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", coordinator.ErrInvalidArg, err)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: reupload takes exactly one path", coordinator.ErrInvalidArg)
	}

	assignOpts, _, _, err := fl.assignOptions(fs.Arg(0))
	if err != nil {
		return err
	}
	var buf strings.Builder
	if _, err := c.Reupload(&buf, coordinator.UploadOptions{AssignIDOptions: assignOpts}); err != nil {
		return err
	}
	return writeOutput(fl, buf.String())
}

func parseIDs(args []string) ([]uint32, error) {
	ids := make([]uint32, 0, len(args))
	for _, a := range args {
		n, err := strconv.ParseUint(a, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid id %q", coordinator.ErrInvalidArg, a)
		}
		ids = append(ids, uint32(n))
	}
	return ids, nil
}

func runDirty(c *coordinator.Coordinator, args []string) error {
	fs := flag.NewFlagSet("dirty", flag.ContinueOnError)
	all := fs.Bool("all", false, "mark every known id in the resolved space")
	reason := fs.String("reason", "", "recorded reason for the dirty marking")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", coordinator.ErrInvalidArg, err)
	}
	ids, err := parseIDs(fs.Args())
	if err != nil {
		return err
	}
	return c.Dirty(coordinator.IDSelector{IDs: ids, All: *all}, *reason)
}

func runForget(c *coordinator.Coordinator, args []string) error {
	fs := flag.NewFlagSet("forget", flag.ContinueOnError)
	all := fs.Bool("all", false, "forget every known id in the resolved space")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", coordinator.ErrInvalidArg, err)
	}
	ids, err := parseIDs(fs.Args())
	if err != nil {
		return err
	}
	return c.Forget(coordinator.IDSelector{IDs: ids, All: *all})
}

func runStatus(c *coordinator.Coordinator, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", coordinator.ErrInvalidArg, err)
	}
	st, err := c.Status()
	if err != nil {
		return err
	}
	fmt.Println(st.String())
	return nil
}

func runDumpConfig(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("dump-config", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", coordinator.ErrInvalidArg, err)
	}
	return toml.NewEncoder(os.Stdout).Encode(cfg)
}

func runCleanup(c *coordinator.Coordinator, args []string) error {
	fs := flag.NewFlagSet("cleanup", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", coordinator.ErrInvalidArg, err)
	}
	removed, err := c.Cleanup(time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("removed %d instance(s)\n", len(removed))
	return nil
}

func runCache(c *coordinator.Coordinator, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: cache requires a subcommand", coordinator.ErrInvalidArg)
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "convert":
		return runCacheConvert(c, rest)
	case "check":
		return runCacheCheck(c, rest)
	case "list":
		return runCacheList(c, rest)
	case "remove":
		return runCacheRemove(c, rest)
	case "purge":
		return runCachePurge(c, rest)
	case "status":
		return runCacheStatus(c, rest)
	case "cleanup":
		return runCleanup(c, rest)
	default:
		return fmt.Errorf("%w: unknown cache subcommand %q", coordinator.ErrInvalidArg, sub)
	}
}

func registerTranscodeFlags(fs *flag.FlagSet) (format *string, cols, rows, quality *int, maxBytes *int64, fingerprint *string) {
	format = fs.String("format", "png", "cached transcode format")
	cols = fs.Int("cols", 0, "cell box columns")
	rows = fs.Int("rows", 0, "cell box rows")
	quality = fs.Int("quality", 0, "lossy quality, 0 = encoder default")
	maxBytes = fs.Int64("max-bytes", 0, "byte size cap, 0 = no cap")
	fingerprint = fs.String("fingerprint", "", "content+parameter fingerprint hex string")
	return
}

func runCacheConvert(c *coordinator.Coordinator, args []string) error {
	fs := flag.NewFlagSet("cache convert", flag.ContinueOnError)
	format, cols, rows, _, maxBytes, _ := registerTranscodeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", coordinator.ErrInvalidArg, err)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: cache convert takes exactly one path", coordinator.ErrInvalidArg)
	}
	if *cols <= 0 || *rows <= 0 {
		return fmt.Errorf("%w: cache convert requires --cols and --rows", coordinator.ErrInvalidArg)
	}

	img, err := imaging.Open(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("%w: decode %s: %v", coordinator.ErrIO, fs.Arg(0), err)
	}
	size := terminal.GetSize()
	cellW, cellH := size.CellW, size.CellH
	if cellW <= 0 {
		cellW = 10
	}
	if cellH <= 0 {
		cellH = 20
	}

	entry, err := c.CacheConvert(img, transcode.ConvertOptions{
		Format: *format, Cols: *cols, Rows: *rows,
		CellW: cellW, CellH: cellH, MaxBytes: *maxBytes,
	})
	if err != nil {
		return err
	}
	fmt.Printf("cached %dx%d %s, %d bytes, quality=%d", entry.Key.Cols, entry.Key.Rows, entry.Key.Format, entry.ByteSize, entry.Key.Quality)
	if entry.Impossible {
		fmt.Print(" (impossible: even the smallest rendering exceeds --max-bytes)")
	}
	fmt.Println()
	return nil
}

func runCacheCheck(c *coordinator.Coordinator, args []string) error {
	fs := flag.NewFlagSet("cache check", flag.ContinueOnError)
	format, cols, rows, quality, maxBytes, fp := registerTranscodeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", coordinator.ErrInvalidArg, err)
	}
	if *fp == "" {
		return fmt.Errorf("%w: cache check requires --fingerprint", coordinator.ErrInvalidArg)
	}

	key := transcode.Key{Fingerprint: *fp, Format: *format, Cols: *cols, Rows: *rows, Quality: *quality}
	entry, matches, err := c.CacheCheck(key, transcode.CheckOptions{Format: *format, Cols: *cols, Rows: *rows, MaxBytes: *maxBytes})
	switch {
	case errors.Is(err, transcode.ErrCacheMiss):
		fmt.Println("no entry")
		return nil
	case errors.Is(err, transcode.ErrMissing):
		return fmt.Errorf("%w: cached file missing on disk, reconvert needed", coordinator.ErrIO)
	case errors.Is(err, transcode.ErrCorrupt):
		return fmt.Errorf("%w: cached file corrupt: %v", coordinator.ErrIO, err)
	case err != nil:
		return err
	}
	if !matches {
		fmt.Println("no entry")
		return nil
	}
	fmt.Printf("%dx%d %s, %d bytes", entry.Key.Cols, entry.Key.Rows, entry.Key.Format, entry.ByteSize)
	if entry.Impossible {
		fmt.Print(" (impossible: even the smallest rendering exceeds --max-bytes)")
	}
	fmt.Println()
	return nil
}

func runCacheList(c *coordinator.Coordinator, args []string) error {
	fs := flag.NewFlagSet("cache list", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", coordinator.ErrInvalidArg, err)
	}
	for _, e := range c.CacheList() {
		fmt.Printf("%s\t%dx%d\t%s\t%d bytes\tquality=%d\n", e.Key.Fingerprint, e.Key.Cols, e.Key.Rows, e.Key.Format, e.ByteSize, e.Key.Quality)
	}
	return nil
}

func runCacheRemove(c *coordinator.Coordinator, args []string) error {
	fs := flag.NewFlagSet("cache remove", flag.ContinueOnError)
	format, cols, rows, quality, _, fp := registerTranscodeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", coordinator.ErrInvalidArg, err)
	}
	if *fp == "" {
		return fmt.Errorf("%w: cache remove requires --fingerprint", coordinator.ErrInvalidArg)
	}
	key := transcode.Key{Fingerprint: *fp, Format: *format, Cols: *cols, Rows: *rows, Quality: *quality}
	return c.CacheRemove(key)
}

func runCachePurge(c *coordinator.Coordinator, args []string) error {
	fs := flag.NewFlagSet("cache purge", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", coordinator.ErrInvalidArg, err)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: cache purge takes exactly one fingerprint", coordinator.ErrInvalidArg)
	}
	n := c.CachePurge(fs.Arg(0))
	fmt.Printf("purged %d entries\n", n)
	return nil
}

func runCacheStatus(c *coordinator.Coordinator, args []string) error {
	fs := flag.NewFlagSet("cache status", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", coordinator.ErrInvalidArg, err)
	}
	entries, total := c.CacheStatus()
	fmt.Printf("%d entries, %d bytes\n", entries, total)
	return nil
}
