// Completion: 100% - JIT pipeline complete
package jit

import (
	"bytes"
	"fmt"
	"time"

	"github.com/tliron/commonlog"

	"github.com/xyproto/bfjit/internal/cache"
	"github.com/xyproto/bfjit/internal/codebuf"
	"github.com/xyproto/bfjit/internal/compiler"
	"github.com/xyproto/bfjit/internal/diag"
	"github.com/xyproto/bfjit/internal/elfimage"
	"github.com/xyproto/bfjit/internal/engine"
	"github.com/xyproto/bfjit/internal/execmem"
)

// Version is mixed into cache keys so that a new code generator never
// reuses code from an old one.
const Version = "1.0.0"

// DefaultCodeSize is the initial executable region size.
const DefaultCodeSize = 4 << 20

var log = commonlog.GetLogger("bfjit.jit")

// Options configure an Engine.
type Options struct {
	CodeSize int          // initial region size, grown on demand
	TapeSize uint32       // tape size baked into written executables
	Cache    *cache.Store // optional
}

// Engine compiles Brainfuck into executable memory.
type Engine struct {
	opts Options
}

// New returns an Engine.
func New(opts Options) *Engine {
	if opts.CodeSize <= 0 {
		opts.CodeSize = DefaultCodeSize
	}
	return &Engine{opts: opts}
}

// Compile generates code for p into a fresh writable region. The returned
// Image must be released.
func (e *Engine) Compile(src []byte, p engine.Platform) (*Image, error) {
	if !p.Targetable() {
		return nil, diag.Error{Kind: diag.KindUnsupportedHost, Message: fmt.Sprintf("cannot generate code for %s", p)}
	}
	start := time.Now()
	var key cache.Key
	if e.opts.Cache != nil {
		key = cache.NewKey(Version, p.String(), src)
		entry, ok, err := e.opts.Cache.Get(key)
		if err != nil {
			return nil, diag.Error{Kind: diag.KindCache, Message: "cache lookup failed", Err: err}
		}
		if ok {
			img, err := e.load(entry, p)
			if err != nil {
				return nil, err
			}
			log.Debugf("loaded %d instructions from cache in %s", img.stats.Instructions, time.Since(start))
			return img, nil
		}
	}

	region, err := execmem.Allocate(e.opts.CodeSize)
	if err != nil {
		return nil, diag.Resource(err)
	}
	buf := codebuf.New("jit", region)
	prog, err := compiler.Compile(bytes.NewReader(src), buf, compiler.Options{Platform: p})
	if err != nil {
		region.Release()
		return nil, err
	}
	buf.Commit()
	img := &Image{
		region:   region,
		size:     buf.Size(),
		platform: p,
		loops:    prog.Loops,
		stats: Stats{
			Instructions: prog.Instructions,
			Loops:        len(prog.Loops),
			MaxDepth:     prog.MaxDepth,
		},
	}
	log.Debugf("compiled %d instructions, %d loops in %s", prog.Instructions, len(prog.Loops), time.Since(start))

	if e.opts.Cache != nil {
		entry := &cache.Entry{
			Version:      Version,
			Platform:     p.String(),
			Code:         img.Code(),
			Instructions: prog.Instructions,
			Loops:        len(prog.Loops),
			MaxDepth:     prog.MaxDepth,
			Pairs:        make([]cache.Pair, len(prog.Loops)),
		}
		for i, pair := range prog.Loops {
			entry.Pairs[i] = cache.Pair{ID: pair.ID, Start: pair.Start, End: pair.End}
		}
		if err := e.opts.Cache.Put(key, entry); err != nil {
			img.Release()
			return nil, diag.Error{Kind: diag.KindCache, Message: "cache store failed", Err: err}
		}
	}
	return img, nil
}

// load copies cached code into a fresh region.
func (e *Engine) load(entry *cache.Entry, p engine.Platform) (*Image, error) {
	if len(entry.Code) == 0 || len(entry.Code)%codebuf.InstrSize != 0 {
		return nil, diag.Error{Kind: diag.KindCache, Message: fmt.Sprintf("cached code has invalid size %d", len(entry.Code))}
	}
	if ep, err := engine.ParsePlatform(entry.Platform); err != nil || ep != p {
		return nil, diag.Error{Kind: diag.KindCache, Message: fmt.Sprintf("cached code is for %q, not %s", entry.Platform, p)}
	}
	var pairs []compiler.LoopPair
	if len(entry.Pairs) > 0 {
		pairs = make([]compiler.LoopPair, len(entry.Pairs))
		for i, pair := range entry.Pairs {
			pairs[i] = compiler.LoopPair{ID: pair.ID, Start: pair.Start, End: pair.End}
		}
		log.Debug("loops from cache")
		compiler.TraceLoops(log, pairs)
	}
	region, err := execmem.Allocate(len(entry.Code))
	if err != nil {
		return nil, diag.Resource(err)
	}
	copy(region.Bytes(), entry.Code)
	return &Image{
		region:   region,
		size:     len(entry.Code),
		platform: p,
		loops:    pairs,
		stats: Stats{
			Instructions: entry.Instructions,
			Loops:        entry.Loops,
			MaxDepth:     entry.MaxDepth,
			Cached:       true,
		},
	}, nil
}

// WriteExecutable compiles src for linux/arm64 and writes a standalone
// executable to path. It works on any host.
func (e *Engine) WriteExecutable(src []byte, path string) error {
	img, err := e.Compile(src, engine.LinuxARM64)
	if err != nil {
		return err
	}
	defer img.Release()
	code := img.Code()
	if err := elfimage.WriteFile(path, code, elfimage.Options{TapeSize: e.opts.TapeSize}); err != nil {
		return err
	}
	log.Debugf("wrote %s: %d bytes of code", path, len(code))
	return nil
}
