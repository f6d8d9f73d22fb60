package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/carebridge-health/promis-gateway/internal/assessment"
	"github.com/carebridge-health/promis-gateway/internal/promis"
)

func renderFormList(w io.Writer, forms []promis.Form) {
	if len(forms) == 0 {
		fmt.Fprintln(w, "No forms returned.")
		return
	}
	for i, f := range forms {
		name := f.DisplayName()
		if name == "" {
			name = "Untitled Form"
		}
		pop := f.Population
		if pop == "" {
			pop = "Unknown population"
		}
		fmt.Fprintf(w, "%d. %s (OID: %s, Population: %s)\n", i+1, name, f.OID, pop)
		if f.Description != "" {
			fmt.Fprintf(w, "   Description: %s\n", f.Description)
		}
		if len(f.Keywords) > 0 {
			fmt.Fprintf(w, "   Keywords: %s\n", strings.Join(f.Keywords, ", "))
		}
	}
}

func renderFormDetails(w io.Writer, d promis.FormDetail) {
	name := d.DisplayName()
	if name == "" {
		name = "Untitled Form"
	}
	fmt.Fprintf(w, "Form: %s\n", name)
	fmt.Fprintf(w, "OID: %s\n", d.OID)
	if d.Population != "" {
		fmt.Fprintf(w, "Population: %s\n", d.Population)
	}
	if d.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", d.Description)
	}

	items := assessment.NormalizeItems(d)
	fmt.Fprintf(w, "\nItems (%d total):\n", len(items))
	for i, it := range items {
		fmt.Fprintf(w, "\n%d. Item ID: %s\n", i+1, it.ID)
		fmt.Fprintf(w, "   Prompt: %s\n", it.Text)
		if len(it.Options) > 0 {
			fmt.Fprintln(w, "   Options:")
			for _, o := range it.Options {
				fmt.Fprintf(w, "     - (%s) %s\n", o.Value, o.Label)
			}
		}
	}
}

func renderStateless(w io.Writer, next promis.NextResponse) {
	theta, hasTheta := assessment.Theta(next.Raw)
	stdErr, hasStdErr := assessment.StdError(next.Raw)
	tScore, hasScore := assessment.DeriveTScore(next.Raw)

	if hasTheta || hasStdErr {
		fmt.Fprintln(w, "Assessment metrics:")
		if hasTheta {
			fmt.Fprintf(w, "  Theta: %v\n", theta)
		}
		if hasStdErr {
			fmt.Fprintf(w, "  Standard Error: %v\n", stdErr)
		}
		if hasScore {
			fmt.Fprintf(w, "  T Score: %.1f\n", tScore)
		}
	} else {
		fmt.Fprintln(w, "Assessment metrics not yet available (assessment still running).")
	}

	if len(next.Items) == 0 {
		fmt.Fprintln(w, "\nNo items returned. Assessment may be complete.")
		return
	}
	fmt.Fprintf(w, "\nReturned Items (%d):\n", len(next.Items))
	for i, raw := range next.Items {
		it := assessment.NormalizeItem(raw)
		fmt.Fprintf(w, "%d. %s (Item ID: %s)\n", i+1, it.Text, it.ID)
		if len(it.Options) > 0 {
			fmt.Fprintln(w, "   Options:")
			for _, o := range it.Options {
				fmt.Fprintf(w, "     - (%s) %s\n", o.Value, o.Label)
			}
		}
	}
}
