// nasal CLI - runs scripts, evaluates expressions and hosts a REPL
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/nasal/compiler"
	"github.com/chazu/nasal/lib"
	"github.com/chazu/nasal/manifest"
	"github.com/chazu/nasal/vm"
)

var log = commonlog.GetLogger("nasal.cli")

// verbosity is a repeatable -v flag.
type verbosity int

func (v *verbosity) String() string   { return strconv.Itoa(int(*v)) }
func (v *verbosity) IsBoolFlag() bool { return true }
func (v *verbosity) Set(s string) error {
	if s == "true" {
		*v++
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*v = verbosity(n)
	return nil
}

func main() {
	var verbose verbosity
	flag.Var(&verbose, "v", "Verbose logging (repeat for more)")
	expr := flag.String("e", "", "Evaluate an expression and print the result")
	disasm := flag.Bool("d", false, "Disassemble instead of running")
	interactive := flag.Bool("i", false, "Start interactive REPL after running scripts")
	configPath := flag.String("config", "", "Path to nasal.toml (or its directory)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: nasal [options] [script.nas [args...]]\n\n")
		fmt.Fprintf(os.Stderr, "Runs a script, the project entry from nasal.toml, or a REPL.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  nasal                       # Run the nasal.toml entry, or start a REPL\n")
		fmt.Fprintf(os.Stderr, "  nasal hello.nas a b         # Run hello.nas with arg = [\"a\", \"b\"]\n")
		fmt.Fprintf(os.Stderr, "  nasal -e '1 + 2 * 3'        # Evaluate an expression\n")
		fmt.Fprintf(os.Stderr, "  nasal -d hello.nas          # Show bytecode\n")
	}
	flag.Parse()

	commonlog.Configure(int(verbose), nil)

	m, found, err := loadManifest(*configPath)
	if err != nil {
		fail(err)
	}
	if found {
		log.Infof("project %s (%s)", m.Project.Name, m.Dir)
	}

	rt := vm.NewRuntime(m.Runtime)
	ctx := rt.NewContext()
	ns := ctx.NewHash()
	rt.Save(ns)
	lib.Register(ctx, ns)
	log.Infof("runtime %s ready", rt.ID)

	s := &session{rt: rt, ctx: ctx, ns: ns, disasm: *disasm}

	for _, p := range m.IncludePaths() {
		if err := s.runFile(p, nil); err != nil {
			fail(err)
		}
	}

	args := flag.Args()
	switch {
	case *expr != "":
		v, err := s.run([]byte(*expr), "<expr>", nil)
		if err != nil {
			fail(err)
		}
		if !*disasm {
			fmt.Println(ctx.Format(v))
		}
	case len(args) > 0:
		if err := s.runFile(args[0], args[1:]); err != nil {
			fail(err)
		}
	case found && !*interactive:
		if err := s.runFile(m.EntryPath(), nil); err != nil {
			fail(err)
		}
	default:
		*interactive = true
	}

	if *interactive {
		if err := s.repl(); err != nil {
			fail(err)
		}
	}
	log.Debugf("stats: %+v", rt.Stats())
}

// loadManifest reads -config, or searches upward from the working
// directory. found is false when the defaults are in use.
func loadManifest(path string) (*manifest.Manifest, bool, error) {
	if path != "" {
		dir := path
		if filepath.Base(path) == manifest.FileName {
			dir = filepath.Dir(path)
		}
		m, err := manifest.Load(dir)
		return m, err == nil, err
	}
	m, err := manifest.FindAndLoad(".")
	if err != nil {
		return nil, false, err
	}
	if m == nil {
		wd, _ := os.Getwd()
		return manifest.Default(wd), false, nil
	}
	return m, true, nil
}

// session is one runtime with the shared top-level namespace every
// script and REPL line runs in.
type session struct {
	rt     *vm.Runtime
	ctx    *vm.Context
	ns     vm.Value
	disasm bool
}

func (s *session) runFile(path string, args []string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read script: %w", err)
	}
	log.Debugf("running %s", path)
	_, err = s.run(src, path, args)
	return err
}

// run compiles src and calls it with ns as its locals, so top-level
// definitions persist across scripts and REPL lines.
func (s *session) run(src []byte, file string, args []string) (vm.Value, error) {
	code, err := compiler.Compile(s.ctx, src, file)
	if err != nil {
		return vm.Nil, err
	}
	if s.disasm {
		fmt.Print(disassemble(s.rt, code, file))
		return vm.Nil, nil
	}
	fn := s.ctx.Bind(code, s.ns)

	var argv []vm.Value
	for _, a := range args {
		argv = append(argv, s.ctx.NewString(a))
	}
	return s.ctx.Call(fn, argv, vm.Nil, s.ns)
}

// disassemble lists code and every function literal nested in it.
func disassemble(rt *vm.Runtime, code vm.Value, name string) string {
	var sb strings.Builder
	c := rt.Code(code)
	if c.Name != "" {
		name = c.Name
	}
	fmt.Fprintf(&sb, "== %s ==\n%s\n", name, vm.Disassemble(c.Bytecode))
	for i, k := range c.Constants {
		if k.IsCode() {
			sb.WriteString(disassemble(rt, k, fmt.Sprintf("%s/const %d", name, i)))
		}
	}
	return sb.String()
}

var (
	errColor   = color.New(color.FgRed, color.Bold)
	traceColor = color.New(color.FgYellow)
)

// report prints err, with a coloured stack trace for runtime errors.
func report(err error) {
	var re *vm.RuntimeError
	if errors.As(err, &re) {
		errColor.Fprintf(os.Stderr, "error: %s\n", re.Message)
		for _, f := range re.Trace {
			traceColor.Fprintf(os.Stderr, "  %s\n", f)
		}
		return
	}
	errColor.Fprintf(os.Stderr, "error: %v\n", err)
}

func fail(err error) {
	report(err)
	os.Exit(1)
}
