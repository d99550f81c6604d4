package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/cuemby/beacon/pkg/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// printer renders command results in the format picked by --output
type printer struct {
	out    io.Writer
	format string
}

func newPrinter(cmd *cobra.Command) (*printer, error) {
	format, _ := cmd.Flags().GetString("output")
	switch format {
	case "table", "json", "yaml":
	default:
		return nil, fmt.Errorf("invalid output format %q: must be table, json or yaml", format)
	}
	return &printer{out: cmd.OutOrStdout(), format: format}, nil
}

// structured prints v as JSON or YAML. It reports false for table output.
func (p *printer) structured(v interface{}) (bool, error) {
	switch p.format {
	case "json":
		enc := json.NewEncoder(p.out)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(p.out)
		defer enc.Close()
		return true, enc.Encode(v)
	default:
		return false, nil
	}
}

func (p *printer) alerts(alerts []*types.Alert) error {
	if ok, err := p.structured(alerts); ok {
		return err
	}

	w := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tNAME\tFIELDS")
	for _, a := range alerts {
		fmt.Fprintf(w, "%s\t%s\t%s\n", a.Key, a.Name, fieldKeys(a.Fields))
	}
	return w.Flush()
}

func (p *printer) alert(a *types.Alert) error {
	if ok, err := p.structured(a); ok {
		return err
	}

	fmt.Fprintf(p.out, "Key:          %s\n", a.Key)
	fmt.Fprintf(p.out, "Blockchain:   %s\n", a.Blockchain)
	fmt.Fprintf(p.out, "Protocol:     %s\n", a.Protocol)
	fmt.Fprintf(p.out, "Method:       %s\n", a.Method)
	fmt.Fprintf(p.out, "Name:         %s\n", a.Name)
	fmt.Fprintf(p.out, "Description:  %s\n", a.Description)
	if len(a.Fields) == 0 {
		return nil
	}

	fmt.Fprintln(p.out, "Fields:")
	w := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  KEY\tNAME\tVALIDATION\tDESCRIPTION")
	for _, f := range a.Fields {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", f.Key, f.Name, f.ValidationRegex, f.Description)
	}
	return w.Flush()
}

func (p *printer) subscriptions(subs []*types.Subscription) error {
	if ok, err := p.structured(subs); ok {
		return err
	}

	w := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ALERT\tSUBSCRIBER\tVALUES")
	for _, s := range subs {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.AlertKey, s.Subscriber, fieldValues(s.FieldValues))
	}
	return w.Flush()
}

func fieldKeys(fields []types.AlertField) string {
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, f.Key)
	}
	return strings.Join(keys, ",")
}

func fieldValues(values []types.SubscriptionFieldValue) string {
	pairs := make([]string, 0, len(values))
	for _, v := range values {
		pairs = append(pairs, v.Key+"="+v.Value)
	}
	return strings.Join(pairs, ",")
}
