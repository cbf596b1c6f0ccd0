// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dotnet

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TRX is the VSTest result format, XML under the TeamTest 2010
// namespace. Only the result elements are decoded.
type trxDocument struct {
	XMLName xml.Name        `xml:"TestRun"`
	Results []trxUnitResult `xml:"Results>UnitTestResult"`
}

type trxUnitResult struct {
	TestName string `xml:"testName,attr"`
	Outcome  string `xml:"outcome,attr"`
	Duration string `xml:"duration,attr"`
	Output   struct {
		ErrorInfo struct {
			Message    string `xml:"Message"`
			StackTrace string `xml:"StackTrace"`
		} `xml:"ErrorInfo"`
	} `xml:"Output"`
}

// ParseTRX decodes a TRX report into test cases, in document order.
func ParseTRX(data []byte) ([]TestCase, error) {
	var doc trxDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding TRX report: %w", err)
	}

	cases := make([]TestCase, 0, len(doc.Results))
	for _, r := range doc.Results {
		name, className := r.TestName, ""
		if i := strings.LastIndex(name, "."); i >= 0 {
			className, name = name[:i], name[i+1:]
		}

		outcome := r.Outcome
		if outcome == "" {
			outcome = "NotExecuted"
		}

		cases = append(cases, TestCase{
			Name:       name,
			ClassName:  className,
			Outcome:    outcome,
			Duration:   parseTRXDuration(r.Duration),
			ErrorMsg:   strings.TrimSpace(r.Output.ErrorInfo.Message),
			StackTrace: strings.TrimSpace(r.Output.ErrorInfo.StackTrace),
		})
	}
	return cases, nil
}

// parseTRXDuration reads the h:mm:ss.fffffff form. Malformed values
// degrade to zero rather than failing the report.
func parseTRXDuration(s string) time.Duration {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0
	}
	hours, err1 := strconv.Atoi(parts[0])
	minutes, err2 := strconv.Atoi(parts[1])
	seconds, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0
	}
	total := float64(hours*3600+minutes*60) + seconds
	return time.Duration(total * float64(time.Second))
}

// SummarizeCases tallies outcome counts the way the console summary
// would report them.
func SummarizeCases(cases []TestCase) (total, passed, failed, skipped int) {
	for _, c := range cases {
		total++
		switch c.Outcome {
		case "Passed":
			passed++
		case "Failed":
			failed++
		default:
			skipped++
		}
	}
	return total, passed, failed, skipped
}
