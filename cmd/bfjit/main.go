// Completion: 100% - CLI interface complete, all flags working
package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/xyproto/bfjit/internal/cache"
	"github.com/xyproto/bfjit/internal/config"
	"github.com/xyproto/bfjit/internal/diag"
	"github.com/xyproto/bfjit/internal/engine"
	"github.com/xyproto/bfjit/internal/interp"
	"github.com/xyproto/bfjit/internal/jit"
)

// A Brainfuck JIT compiler for aarch64 on Linux and macOS

const versionString = "bfjit " + jit.Version

var log = commonlog.GetLogger("bfjit")

// debugCells is how many tape cells the debug trace prints after a run.
const debugCells = 16

func usage(fs *flag.FlagSet) func() {
	return func() {
		out := fs.Output()
		fmt.Fprintf(out, "Usage: %s [flags] source.bf\n\n", fs.Name())
		fmt.Fprintln(out, "Compiles Brainfuck to aarch64 machine code and runs it, or writes a static")
		fmt.Fprintln(out, "linux/arm64 executable with -c.")
		fmt.Fprintln(out)
		fs.PrintDefaults()
	}
}

type options struct {
	debug      bool
	output     string
	configPath string
	tape       int
	cacheDir   string
	interpret  bool
	version    bool
}

func parseFlags(args []string, stderr io.Writer) (*options, []string, bool, error) {
	fs := flag.NewFlagSet("bfjit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = usage(fs)
	o := &options{}
	fs.BoolVar(&o.debug, "d", false, "debug trace: loop ids, loop pairs, timings and the first tape cells")
	fs.StringVar(&o.output, "c", "", "write a standalone linux/arm64 executable to this path instead of running")
	fs.StringVar(&o.configPath, "config", "", "TOML configuration file (default: "+config.DefaultFile+" if present)")
	fs.IntVar(&o.tape, "tape", 0, "tape size in bytes (overrides config)")
	fs.StringVar(&o.cacheDir, "cache", "", "directory of the compile cache (overrides config)")
	fs.BoolVar(&o.interpret, "interpret", false, "run with the reference interpreter instead of generating code")
	fs.BoolVar(&o.version, "version", false, "print version information and exit")
	fs.BoolVar(&o.version, "V", false, "print version information and exit")
	if err := fs.Parse(args); err != nil {
		return nil, nil, false, err
	}
	tapeSet := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "tape" {
			tapeSet = true
		}
	})
	return o, fs.Args(), tapeSet, nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run is main without the process exit, returning the exit status.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	o, rest, tapeSet, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return diag.ExitOK
	}
	if err != nil {
		return diag.ExitUsage
	}
	if o.version {
		fmt.Fprintln(stdout, versionString)
		return diag.ExitOK
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return report(stderr, isTerminal(stderr), diag.Error{Kind: diag.KindUsage, Message: "invalid configuration", Err: err})
	}
	if o.debug {
		cfg.Debug = true
	}
	if tapeSet {
		cfg.TapeSize = o.tape
	}
	if o.cacheDir != "" {
		cfg.CacheDir = o.cacheDir
	}
	useColor := cfg.Color && isTerminal(stderr)
	if err := cfg.Validate(); err != nil {
		return report(stderr, useColor, diag.Error{Kind: diag.KindUsage, Message: "invalid configuration", Err: err})
	}
	if len(rest) != 1 {
		return report(stderr, useColor, diag.Error{Kind: diag.KindUsage, Message: "expected exactly one Brainfuck source file"})
	}
	path := rest[0]

	verbosity := 0
	if cfg.Debug {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)

	src, err := os.ReadFile(path)
	if err != nil {
		return report(stderr, useColor, diag.SourceOpen(path, err))
	}

	if o.interpret {
		return report(stderr, useColor, diag.WithPath(interpret(src, cfg, stdin, stdout), path))
	}

	var store *cache.Store
	if cfg.CacheDir != "" {
		store, err = cache.Open(cfg.CacheDir)
		if err != nil {
			return report(stderr, useColor, diag.Error{Kind: diag.KindCache, Message: "could not open cache", Path: cfg.CacheDir, Err: err})
		}
		defer store.Close()
	}
	e := jit.New(jit.Options{CodeSize: cfg.CodeSize, TapeSize: uint32(cfg.TapeSize), Cache: store})

	if o.output != "" {
		log.Infof("compiling %s to %s", path, o.output)
		return report(stderr, useColor, diag.WithPath(e.WriteExecutable(src, o.output), path))
	}
	return report(stderr, useColor, diag.WithPath(execute(e, src, cfg), path))
}

func interpret(src []byte, cfg config.Config, stdin io.Reader, stdout io.Writer) error {
	start := time.Now()
	m, err := interp.Run(bytes.NewReader(src), cfg.TapeSize, stdin, stdout)
	if err != nil {
		return err
	}
	log.Debugf("interpreted in %s", time.Since(start))
	traceTape(m.Tape)
	return nil
}

// execute compiles for the host, seals, runs and releases.
func execute(e *jit.Engine, src []byte, cfg config.Config) error {
	host := engine.Host()
	log.Info("compiling...")
	start := time.Now()
	img, err := e.Compile(src, host)
	if err != nil {
		return err
	}
	defer img.Release()
	stats := img.Stats()
	log.Debugf("compilation took %s: %d instructions, %d loops, depth %d, cached %t",
		time.Since(start), stats.Instructions, stats.Loops, stats.MaxDepth, stats.Cached)

	if err := img.Seal(); err != nil {
		return err
	}
	tape := make([]byte, cfg.TapeSize)
	log.Info("running...")
	start = time.Now()
	if _, err := img.Run(tape); err != nil {
		return err
	}
	log.Debugf("the program took %s to execute", time.Since(start))
	traceTape(tape)
	return nil
}

func traceTape(tape []byte) {
	if !log.AllowLevel(commonlog.Debug) {
		return
	}
	n := min(debugCells, len(tape))
	for i := 0; i < n; i++ {
		log.Debugf("cell %d: %d", i, tape[i])
	}
}

// report prints err and returns its exit status
func report(stderr io.Writer, useColor bool, err error) int {
	if err == nil {
		return diag.ExitOK
	}
	fmt.Fprint(stderr, diag.Report(err, useColor))
	return diag.ExitCode(err)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
