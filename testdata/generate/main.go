// Command generate writes a seeded set of processor export files and a
// matching deposits file, for running the reconciler with sources.mode=files.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/payrecon/reconciler/internal/domain"
	"github.com/payrecon/reconciler/internal/ledger"
	"github.com/payrecon/reconciler/internal/simulation"
	"github.com/payrecon/reconciler/internal/source"
)

type expectation struct {
	Scenario     simulation.Scenario         `json:"scenario"`
	Status       domain.ReconciliationStatus `json:"status"`
	VarianceType domain.VarianceType         `json:"variance_type,omitempty"`
}

func main() {
	seed := flag.Int64("seed", 42, "Generator seed")
	perSource := flag.Int("n", 12, "Payouts per processor")
	outDir := flag.String("out", findTestdataDir(), "Output directory")
	flag.Parse()

	u := simulation.Generate(simulation.Config{Seed: *seed, PayoutsPerSource: *perSource})
	expected := make(map[string]expectation)

	for _, src := range domain.AllSources {
		f, err := source.FormatFor(src)
		if err != nil {
			panic(err)
		}
		exp := &source.Export{Payouts: u.Payouts(src), Details: map[string][]domain.DetailEntry{}}
		for _, p := range exp.Payouts {
			exp.Details[p.ID], _ = u.Details(p.ID)
			sc, _ := u.Scenario(p.ID)
			want, _ := u.Expect(p.ID)
			expected[p.ID] = expectation{Scenario: sc, Status: want.Status, VarianceType: want.VarianceType}
		}

		writeFile(filepath.Join(*outDir, f.FileName()), func(w io.Writer) error { return f.Write(w, exp) })
		fmt.Printf("Generated %d %s payouts -> %s\n", len(exp.Payouts), src, f.FileName())
	}

	deposits := u.Deposits()
	writeFile(filepath.Join(*outDir, "deposits.json"), func(w io.Writer) error { return ledger.WriteDeposits(w, deposits) })
	fmt.Printf("Generated %d ledger deposits -> deposits.json\n", len(deposits))

	writeFile(filepath.Join(*outDir, "expected.json"), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(expected)
	})

	start, end := u.Period()
	fmt.Printf("Period: %s to %s\n", start.Format("2006-01-02"), end.Format("2006-01-02"))
}

func writeFile(path string, write func(io.Writer) error) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	if err := write(f); err != nil {
		panic(err)
	}
}

func findTestdataDir() string {
	// Look for the testdata directory relative to common locations.
	candidates := []string{
		"testdata",
		"../testdata",
		"../../testdata",
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c
		}
	}
	// Fallback.
	return "testdata"
}
