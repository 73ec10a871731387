package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/pivotal-cf/protogate"
	"github.com/pivotal-cf/protogate/policy"
	"github.com/pivotal-cf/protogate/probe"
	"github.com/pivotal-cf/protogate/report"
)

const asciiCross = "✗"
const asciiCheckmark = "✓"

func showProbeResults(w io.Writer, results []probe.Result, expected policy.Policy) error {
	wr := tabwriter.NewWriter(w, 0, 8, 2, '\t', 0)

	header := []string{"Host", "Port"}
	for _, v := range protogate.ProtocolVersions {
		header = append(header, v.String())
	}
	header = append(header, "Mutual")
	if !expected.IsZero() {
		header = append(header, "Violations")
	}

	fmt.Fprintln(wr, strings.Join(header, "\t"))

	for _, result := range results {
		row := []string{result.Host, result.Port}

		for _, v := range protogate.ProtocolVersions {
			vr, ok := result.Versions[v]
			switch {
			case !ok:
				row = append(row, "-")
			case vr.Err != nil:
				row = append(row, "error")
			case vr.Accepted:
				row = append(row, asciiCheckmark)
			default:
				row = append(row, asciiCross)
			}
		}

		mutual := asciiCross
		if result.HasMutual() {
			mutual = asciiCheckmark
		}
		row = append(row, mutual)

		if !expected.IsZero() {
			var names []string
			for _, v := range result.Violations(expected) {
				names = append(names, v.String())
			}
			row = append(row, strings.Join(names, " "))
		}

		fmt.Fprintln(wr, strings.Join(row, "\t"))
	}

	return wr.Flush()
}

func showReport(w io.Writer, r report.Report) error {
	fmt.Fprintln(w, r.Title)

	if r.IsEmpty() {
		fmt.Fprintln(w, "No violations found.")
		return nil
	}

	wr := tabwriter.NewWriter(w, 0, 8, 2, '\t', 0)

	fmt.Fprintln(wr, strings.Join(r.Header, "\t"))
	for _, row := range r.Rows {
		fmt.Fprintln(wr, strings.Join(row, "\t"))
	}

	if err := wr.Flush(); err != nil {
		return err
	}

	if r.Footnote != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, r.Footnote)
	}

	return nil
}
