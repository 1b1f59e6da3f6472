package helpers

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// OutputFormat represents the desired output format.
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// Formatter renders command results.
type Formatter interface {
	Format(data any, w io.Writer) error
}

// NewFormatter creates a formatter for format.
func NewFormatter(format OutputFormat) (Formatter, error) {
	switch format {
	case FormatTable:
		return TableFormatter{}, nil
	case FormatJSON:
		return JSONFormatter{}, nil
	case FormatYAML:
		return YAMLFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// AddFormatFlag adds a standard --format/-o flag to a command.
func AddFormatFlag(cmd *cobra.Command, formatVar *string, defaultFormat OutputFormat, supported []OutputFormat) {
	names := make([]string, len(supported))
	for i, f := range supported {
		names[i] = string(f)
	}

	cmd.Flags().StringVarP(formatVar, "format", "o", string(defaultFormat),
		fmt.Sprintf("Output format (%s)", strings.Join(names, ", ")))

	_ = cmd.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return names, cobra.ShellCompDirectiveNoFileComp
	})
}

// JSONFormatter formats data as indented JSON.
type JSONFormatter struct{}

func (JSONFormatter) Format(data any, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// YAMLFormatter formats data as YAML.
type YAMLFormatter struct{}

func (YAMLFormatter) Format(data any, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return err
	}
	return enc.Close()
}

// TableFormatter renders a struct or slice of structs as aligned columns.
// Only fields with a `header` tag are shown.
type TableFormatter struct{}

func (TableFormatter) Format(data any, w io.Writer) error {
	val := reflect.ValueOf(data)

	var rows []reflect.Value
	if val.Kind() == reflect.Slice {
		for i := 0; i < val.Len(); i++ {
			rows = append(rows, indirect(val.Index(i)))
		}
	} else {
		rows = append(rows, indirect(val))
	}
	if len(rows) == 0 {
		return nil
	}
	if rows[0].Kind() != reflect.Struct {
		return fmt.Errorf("table output needs structs, got %s", rows[0].Kind())
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(tw, strings.Join(headers(rows[0].Type()), "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(tw, strings.Join(cells(row), "\t"))
	}
	return tw.Flush()
}

func indirect(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	return v
}

func headers(t reflect.Type) []string {
	var hs []string
	for i := 0; i < t.NumField(); i++ {
		if h := t.Field(i).Tag.Get("header"); h != "" {
			hs = append(hs, h)
		}
	}
	return hs
}

func cells(v reflect.Value) []string {
	var cs []string
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		if t.Field(i).Tag.Get("header") != "" {
			cs = append(cs, fmt.Sprintf("%v", v.Field(i).Interface()))
		}
	}
	return cs
}
