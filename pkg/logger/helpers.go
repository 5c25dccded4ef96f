package logger

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
)

const (
	markSuccess = "✓"
	markFail    = "✗"
	markWork    = "↻"
	markNetwork = "⇄"
	markBullet  = "•"
)

var (
	headingColor = []color.Attribute{color.FgCyan, color.Bold}
	ruleColor    = []color.Attribute{color.FgCyan}
	subtleColor  = []color.Attribute{color.FgHiBlack}
	keyColor     = []color.Attribute{color.FgCyan}
	passColor    = []color.Attribute{color.FgGreen, color.Bold}
	failColor    = []color.Attribute{color.FgRed, color.Bold}
)

// paint applies attrs unless color output is disabled
func paint(attrs []color.Attribute, s string) string {
	if !console.colored() {
		return s
	}
	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprint(s)
}

func emit(a ...interface{}) {
	_, _ = fmt.Fprintln(Output(), a...)
}

// Success logs an info line marked as a success
func Success(args ...interface{}) {
	defaultLogger.Info(markSuccess + " " + fmt.Sprint(args...))
}

func Successf(format string, args ...interface{}) {
	Success(fmt.Sprintf(format, args...))
}

// Progress logs an info line for work that is under way
func Progress(args ...interface{}) {
	defaultLogger.Info(markWork + " " + fmt.Sprint(args...))
}

func Progressf(format string, args ...interface{}) {
	Progress(fmt.Sprintf(format, args...))
}

// Network logs an info line about a remote call
func Network(args ...interface{}) {
	defaultLogger.Info(markNetwork + " " + fmt.Sprint(args...))
}

func Networkf(format string, args ...interface{}) {
	Network(fmt.Sprintf(format, args...))
}

// LogSection prints a heading framed by rules
func LogSection(title string) {
	rule := strings.Repeat("=", 50)
	emit(paint(ruleColor, rule))
	emit(paint(headingColor, title))
	emit(paint(ruleColor, rule))
}

func LogSubSection(title string) {
	rule := strings.Repeat("-", 40)
	emit(paint(subtleColor, rule))
	emit(paint(subtleColor, title))
	emit(paint(subtleColor, rule))
}

// LogList prints a title followed by one bulleted line per item
func LogList(title string, items []string) {
	emit(title)
	for _, item := range items {
		emit(" ", markBullet, item)
	}
}

func LogKeyValue(key string, value interface{}) {
	emit(paint(keyColor, key+":"), fmt.Sprint(value))
}

// LogKeyValues prints pairs sorted by key
func LogKeyValues(pairs map[string]interface{}) {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		LogKeyValue(k, pairs[k])
	}
}

// Verdict prints a bold pass or fail banner
func Verdict(ok bool, pass, fail string) {
	emit()
	if ok {
		emit(paint(passColor, markSuccess+" "+pass))
		return
	}
	emit(paint(failColor, markFail+" "+fail))
}

// Table collects rows and prints them as aligned columns
type Table struct {
	headers []string
	rows    [][]string
}

func NewTable(headers ...string) *Table {
	return &Table{headers: headers}
}

// AddRow appends a row. Missing cells print empty and extra cells are dropped.
func (t *Table) AddRow(values ...string) {
	row := make([]string, len(t.headers))
	copy(row, values)
	t.rows = append(t.rows, row)
}

// Len is the number of rows added
func (t *Table) Len() int { return len(t.rows) }

func (t *Table) Print() {
	if len(t.headers) == 0 {
		return
	}
	w := tabwriter.NewWriter(Output(), 0, 0, 2, ' ', 0)
	rules := make([]string, len(t.headers))
	for i, h := range t.headers {
		rules[i] = strings.Repeat("-", len(h))
	}
	_, _ = fmt.Fprintln(w, strings.Join(t.headers, "\t"))
	_, _ = fmt.Fprintln(w, strings.Join(rules, "\t"))
	for _, row := range t.rows {
		_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}
