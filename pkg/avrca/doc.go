// Package avrca normalizes AV/IT logs, tickets and change records into
// canonical events and explains incidents with a ranked root cause analysis.
//
// Quick start:
//
//	a, err := avrca.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	analysis, _ := a.AnalyzeText(ctx, pasted, "generic", "CR-101 camera offline")
//	fmt.Println(analysis.RootCause.Description)
//
// An Analyzer is safe for concurrent use. Create once, reuse across
// requests.
package avrca
