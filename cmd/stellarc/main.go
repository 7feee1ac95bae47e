package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/kamihama-railway/stellar"
	"github.com/kamihama-railway/stellar/bytecode"
	"github.com/kamihama-railway/stellar/types"
	"github.com/kamihama-railway/stellar/vm"
	"github.com/peterh/liner"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

const (
	appName     = "stellarc"
	historyFile = ".stellarc_history"
	prompt      = "eq> "
	helpText    = `
REPL commands:
  :help               Show this help
  :quit / :exit       Exit the REPL
  :set <name> <val>   Bind a variable for evaluation
  :obj <i> <prop> <v> Bind a property of object p[i]
  :vars               List bound values
  :dis                Toggle disassembly of each equation
Anything else is compiled, registered and evaluated.
`
)

var color = term.IsTerminal(int(os.Stdout.Fd()))

func paint(code, s string) string {
	if !color {
		return s
	}
	return "\x1b[" + code + "m" + s + "\x1b[0m"
}

func red(s string) string   { return paint("31", s) }
func green(s string) string { return paint("32", s) }
func blue(s string) string  { return paint("94", s) }

func main() {
	log.SetFlags(0)
	log.SetPrefix(appName + ": ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch cmd := os.Args[1]; cmd {
	case "compile":
		os.Exit(cmdCompile(os.Args[2:]))
	case "eval":
		os.Exit(cmdEval(os.Args[2:]))
	case "abi":
		os.Exit(cmdABI(os.Args[2:]))
	case "repl":
		os.Exit(cmdRepl(os.Args[2:]))
	case "-h", "--help", "help":
		usage()
	default:
		log.Printf("unknown command %q", cmd)
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Printf(`Usage:
  %s compile [-config f] [-format text|yaml] <equation>   Show postfix and bytecode per channel.
  %s eval [-config f] [-var name=v ...] <equation>        Register and evaluate an equation.
  %s abi [-config f] [-format glsl|yaml]                  Print the kernel ABI.
  %s repl [-config f]                                     Interactive session.

`, appName, appName, appName, appName)
}

// common flags ---------------------------------------------------------------

type commonFlags struct {
	config  string
	verbose bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.config, "config", "", "YAML options file")
	fs.BoolVar(&c.verbose, "v", false, "log registry activity to stderr")
}

func (c *commonFlags) engine() (*stellar.Engine, error) {
	opts := stellar.DefaultOptions()
	if c.config != "" {
		var err error
		if opts, err = stellar.LoadOptions(c.config); err != nil {
			return nil, err
		}
	}
	if c.verbose {
		opts.Logger = log.New(os.Stderr, appName+": ", 0)
	}
	return stellar.NewEngine(opts)
}

type bindings map[string]float64

func (b bindings) String() string { return fmt.Sprint(map[string]float64(b)) }

func (b bindings) Set(s string) error {
	name, val, ok := strings.Cut(s, "=")
	if !ok {
		return fmt.Errorf("want name=value, got %q", s)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		return err
	}
	b[strings.TrimSpace(name)] = f
	return nil
}

// describe renders err, pointing at the offending byte of text when the
// error carries a position.
func describe(text string, err error) string {
	var e *types.Error
	if errors.As(err, &e) && e.Pos >= 0 && e.Pos <= len(text) {
		return fmt.Sprintf("%v\n  %s\n  %s^", err, text, strings.Repeat(" ", e.Pos))
	}
	return err.Error()
}

// compile --------------------------------------------------------------------

type channelDoc struct {
	Channel   string    `yaml:"channel"`
	Postfix   string    `yaml:"postfix"`
	Opcodes   []int32   `yaml:"opcodes,flow"`
	Constants []float32 `yaml:"constants,flow"`
}

func cmdCompile(args []string) int {
	fs := flag.NewFlagSet("compile", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	format := fs.String("format", "text", "output format: text or yaml")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s compile [flags] <equation>\n", appName)
		return 2
	}
	e, err := common.engine()
	if err != nil {
		log.Print(err)
		return 1
	}
	text := fs.Arg(0)
	eq, err := e.Compile(text)
	if err != nil {
		fmt.Fprintln(os.Stderr, red(describe(text, err)))
		return 1
	}
	ser, err := e.Serialize(text)
	if err != nil {
		fmt.Fprintln(os.Stderr, red(describe(text, err)))
		return 1
	}

	switch *format {
	case "yaml":
		var docs []channelDoc
		for _, ch := range types.Channels {
			if len(eq.Get(ch)) == 0 {
				continue
			}
			sc := ser.Channels[ch]
			docs = append(docs, channelDoc{
				Channel:   ch.String(),
				Postfix:   types.Join(eq.Get(ch)),
				Opcodes:   sc.Opcodes,
				Constants: sc.Constants,
			})
		}
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(docs); err != nil {
			log.Print(err)
			return 1
		}
		enc.Close()
	case "text":
		for _, ch := range types.Channels {
			if len(eq.Get(ch)) == 0 {
				continue
			}
			printChannel(os.Stdout, e, ch, eq.Get(ch), ser.Channels[ch])
		}
	default:
		log.Printf("unknown format %q", *format)
		return 2
	}
	return 0
}

func printChannel(w io.Writer, e *stellar.Engine, ch types.Channel, postfix []types.Token, sc types.SerializedChannel) {
	fmt.Fprintf(w, "%s %s\n", green(ch.String()+":"), types.Join(postfix))
	fmt.Fprintf(w, "  constants %v\n", sc.Constants)
	listing, err := bytecode.Disassemble(e.Table(), sc)
	if err != nil {
		fmt.Fprintln(w, red(err.Error()))
		return
	}
	for _, line := range strings.Split(strings.TrimRight(listing, "\n"), "\n") {
		fmt.Fprintln(w, "  "+line)
	}
}

// eval -----------------------------------------------------------------------

func cmdEval(args []string) int {
	fs := flag.NewFlagSet("eval", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	vars := bindings{}
	fs.Var(vars, "var", "bind a variable, name=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s eval [flags] <equation>\n", appName)
		return 2
	}
	e, err := common.engine()
	if err != nil {
		log.Print(err)
		return 1
	}
	state, err := vm.Bind(e.Table(), vars)
	if err != nil {
		log.Print(err)
		return 1
	}
	if err := evalAndPrint(os.Stdout, e, fs.Arg(0), state); err != nil {
		fmt.Fprintln(os.Stderr, red(describe(fs.Arg(0), err)))
		return 1
	}
	return 0
}

func evalAndPrint(w io.Writer, e *stellar.Engine, text string, state vm.State) error {
	id, err := e.Register(text)
	if err != nil {
		return err
	}
	out, err := e.Evaluate(id, state)
	if err != nil {
		return err
	}
	eq, err := e.Compile(text)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s %d\n", green("id"), id)
	for _, ch := range types.Channels {
		if len(eq.Get(ch)) == 0 {
			continue
		}
		fmt.Fprintf(w, "  %-8s %s\n", ch.String(), blue(strconv.FormatFloat(out[ch], 'g', -1, 64)))
	}
	return nil
}

// abi ------------------------------------------------------------------------

func cmdABI(args []string) int {
	fs := flag.NewFlagSet("abi", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	format := fs.String("format", "glsl", "output format: glsl or yaml")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	e, err := common.engine()
	if err != nil {
		log.Print(err)
		return 1
	}
	switch *format {
	case "glsl":
		fmt.Print(e.Table().GLSLHeader())
	case "yaml":
		vars := e.Context().Variables()
		doc := make(map[string]any, len(vars))
		for _, v := range vars {
			code, _ := e.Table().VariableCode(v.Name)
			doc[v.Name] = map[string]any{"code": code, "domain": v.Domain.String(), "differentiable": v.Differentiable}
		}
		out, err := yaml.Marshal(map[string]any{"version": e.Table().Version, "variables": doc})
		if err != nil {
			log.Print(err)
			return 1
		}
		os.Stdout.Write(out)
	default:
		log.Printf("unknown format %q", *format)
		return 2
	}
	return 0
}

// repl -----------------------------------------------------------------------

type session struct {
	e       *stellar.Engine
	vars    map[string]float64
	objects []map[string]float64
	dis     bool
}

func (s *session) state() (vm.State, error) {
	return vm.Bind(s.e.Table(), s.vars, s.objects...)
}

func cmdRepl(args []string) int {
	fs := flag.NewFlagSet("repl", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	e, err := common.engine()
	if err != nil {
		log.Print(err)
		return 1
	}
	fmt.Println("stellar equation REPL. Ctrl+D exits, :help lists commands.")

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	s := &session{e: e, vars: map[string]float64{}}
	for {
		line, err := ln.Prompt(prompt)
		if err == liner.ErrPromptAborted {
			continue
		}
		if err != nil {
			fmt.Println()
			return 0
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ln.AppendHistory(line)

		if strings.HasPrefix(line, ":") {
			if s.command(line) {
				return 0
			}
			continue
		}
		s.run(line)
	}
}

func (s *session) command(line string) (exit bool) {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":quit", ":exit":
		return true
	case ":help":
		fmt.Print(helpText)
	case ":dis":
		s.dis = !s.dis
		fmt.Println("disassembly", map[bool]string{true: "on", false: "off"}[s.dis])
	case ":set":
		if len(fields) != 3 {
			fmt.Println(red("usage: :set <name> <value>"))
			return false
		}
		v, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			fmt.Println(red(err.Error()))
			return false
		}
		s.vars[fields[1]] = v
	case ":obj":
		if len(fields) != 4 {
			fmt.Println(red("usage: :obj <index> <property> <value>"))
			return false
		}
		idx, err := strconv.Atoi(fields[1])
		if err != nil || idx < 0 {
			fmt.Println(red("bad object index"))
			return false
		}
		v, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			fmt.Println(red(err.Error()))
			return false
		}
		for len(s.objects) <= idx {
			s.objects = append(s.objects, map[string]float64{})
		}
		s.objects[idx][fields[2]] = v
	case ":vars":
		names := make([]string, 0, len(s.vars))
		for n := range s.vars {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Printf("  %s = %s\n", n, blue(strconv.FormatFloat(s.vars[n], 'g', -1, 64)))
		}
		for i, obj := range s.objects {
			for prop, v := range obj {
				fmt.Printf("  p[%d].%s = %s\n", i, prop, blue(strconv.FormatFloat(v, 'g', -1, 64)))
			}
		}
	default:
		fmt.Println(red("unknown command " + fields[0]))
	}
	return false
}

func (s *session) run(text string) {
	if s.dis {
		eq, err := s.e.Compile(text)
		if err != nil {
			fmt.Println(red(describe(text, err)))
			return
		}
		ser, err := s.e.Serialize(text)
		if err != nil {
			fmt.Println(red(describe(text, err)))
			return
		}
		for _, ch := range types.Channels {
			if len(eq.Get(ch)) > 0 {
				printChannel(os.Stdout, s.e, ch, eq.Get(ch), ser.Channels[ch])
			}
		}
	}
	state, err := s.state()
	if err != nil {
		fmt.Println(red(err.Error()))
		return
	}
	if err := evalAndPrint(os.Stdout, s.e, text, state); err != nil {
		fmt.Println(red(describe(text, err)))
	}
}
