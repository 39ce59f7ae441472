// Command formsetctl appends empty forms to the formsets of a saved page,
// the same way the add control does in the browser. It is handy for
// producing fixtures and for checking that a template follows the markup
// contract before it is deployed.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/term"

	"seasoning/internal/formset"
	"seasoning/internal/logging"
)

var errAborted = errors.New("aborted")

// prompter picks one formset when several are present and none was named.
type prompter interface {
	Select(message string, options []string) (string, error)
}

type surveyPrompter struct{}

func (surveyPrompter) Select(message string, options []string) (string, error) {
	var out string
	prompt := &survey.Select{Message: message, Options: options}
	if err := survey.AskOne(prompt, &out); err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			return "", errAborted
		}
		return "", err
	}
	return out, nil
}

type options struct {
	in     string
	out    string
	prefix string
	count  int
	bind   bool
	label  string
}

func main() {
	var ask prompter
	if term.IsTerminal(int(os.Stdin.Fd())) {
		ask = surveyPrompter{}
	}
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr, ask))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer, ask prompter) int {
	logger := logging.NewWithWriter(stderr)

	opts, err := parseFlags(args, stderr)
	if err != nil {
		return 2
	}

	var src io.Reader = stdin
	if opts.in != "-" {
		f, err := os.Open(opts.in)
		if err != nil {
			logger.Printf("open input: %v", err)
			return 1
		}
		defer f.Close()
		src = f
	} else {
		// Stdin carries the document, so it cannot answer prompts too.
		ask = nil
	}

	doc, err := goquery.NewDocumentFromReader(src)
	if err != nil {
		logger.Printf("parse input: %v", err)
		return 1
	}
	reg, err := formset.Discover(doc)
	if err != nil {
		logger.Printf("discover formsets: %v", err)
		return 1
	}
	if reg.Len() == 0 {
		logger.Printf("no formsets found")
		return 1
	}

	prefix, err := choosePrefix(reg, opts.prefix, ask)
	if err != nil {
		logger.Printf("%v", err)
		return 1
	}
	if opts.bind {
		if err := reg.BindControls(opts.label); err != nil {
			logger.Printf("bind add controls: %v", err)
			return 1
		}
	}

	c, _ := reg.Lookup(prefix)
	for i := 0; i < opts.count; i++ {
		index, err := c.AppendGroup()
		if err != nil {
			logger.Printf("formset %s: %v", prefix, err)
			return 1
		}
		logger.Printf("formset %s: appended form %d", prefix, index)
	}

	rendered, err := doc.Html()
	if err != nil {
		logger.Printf("render document: %v", err)
		return 1
	}
	if opts.out == "-" {
		if _, err := io.WriteString(stdout, rendered); err != nil {
			logger.Printf("write output: %v", err)
			return 1
		}
		return 0
	}
	if err := os.WriteFile(opts.out, []byte(rendered), 0o644); err != nil {
		logger.Printf("write output: %v", err)
		return 1
	}
	return 0
}

func parseFlags(args []string, output io.Writer) (options, error) {
	fs := flag.NewFlagSet("formsetctl", flag.ContinueOnError)
	fs.SetOutput(output)
	var opts options
	fs.StringVar(&opts.in, "in", "-", "page to read, - for stdin")
	fs.StringVar(&opts.out, "out", "-", "where to write the result, - for stdout")
	fs.StringVar(&opts.prefix, "prefix", "", "formset prefix; asked for when the page has several")
	fs.IntVar(&opts.count, "count", 1, "number of empty forms to append")
	fs.BoolVar(&opts.bind, "bind", false, "also insert the add controls")
	fs.StringVar(&opts.label, "label", formset.DefaultAddLabel, "inner HTML of inserted add controls")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.count < 0 {
		err := fmt.Errorf("-count must not be negative, got %d", opts.count)
		fmt.Fprintln(output, err)
		return options{}, err
	}
	return opts, nil
}

func choosePrefix(reg *formset.Registry, requested string, ask prompter) (string, error) {
	prefixes := reg.Prefixes()
	requested = strings.TrimSpace(requested)
	if requested != "" {
		if _, ok := reg.Lookup(requested); !ok {
			return "", fmt.Errorf("no formset with prefix %q (have %s)", requested, strings.Join(prefixes, ", "))
		}
		return requested, nil
	}
	if len(prefixes) == 1 {
		return prefixes[0], nil
	}
	if ask == nil {
		return "", fmt.Errorf("page has %d formsets, pick one with -prefix (%s)", len(prefixes), strings.Join(prefixes, ", "))
	}
	choice, err := ask.Select("Which formset?", prefixes)
	if err != nil {
		return "", fmt.Errorf("choose formset: %w", err)
	}
	return choice, nil
}
