// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dotnet

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const buildOutput = `MSBuild version 17.8.3+195e7f5a3 for .NET
  Determining projects to restore...
tests/Billing.Domain.Tests/OrderTests.cs(42,13): error CS0103: The name 'order' does not exist in the current context [/repo/tests/Billing.Domain.Tests/Billing.Domain.Tests.csproj]
src/Billing.Domain/Order.cs(10,5): warning CS0168: The variable 'x' is declared but never used [/repo/src/Billing.Domain/Billing.Domain.csproj]
tests/Billing.Domain.Tests/OrderTests.cs(7,1): error CS0246: The type or namespace name 'Xunit' could not be found [/repo/tests/Billing.Domain.Tests/Billing.Domain.Tests.csproj]
tests/Billing.Domain.Tests/OrderTests.cs(7,1): error CS0246: The type or namespace name 'Xunit' could not be found [/repo/tests/Billing.Domain.Tests/Billing.Domain.Tests.csproj]
aaa/First.cs(1,1): error CS1002: ; expected
Build FAILED.
`

func TestParseDiagnostics(t *testing.T) {
	errs, warns := ParseDiagnostics(buildOutput)

	if len(errs) != 3 {
		t.Fatalf("errors = %d, want 3 (duplicate must collapse)", len(errs))
	}
	if len(warns) != 1 {
		t.Fatalf("warnings = %d, want 1", len(warns))
	}

	// Ordered by (file, line).
	if errs[0].File != "aaa/First.cs" {
		t.Errorf("errs[0].File = %q, want aaa/First.cs", errs[0].File)
	}
	if errs[1].File != "tests/Billing.Domain.Tests/OrderTests.cs" || errs[1].Line != 7 {
		t.Errorf("errs[1] = %s:%d, want OrderTests.cs:7", errs[1].File, errs[1].Line)
	}
	if errs[2].Line != 42 {
		t.Errorf("errs[2].Line = %d, want 42", errs[2].Line)
	}

	first := errs[1]
	if first.Code != "CS0246" || first.Column != 1 || first.Severity != "error" {
		t.Errorf("errs[1] = %+v", first)
	}
	if errs[2].Message != "The name 'order' does not exist in the current context [/repo/tests/Billing.Domain.Tests/Billing.Domain.Tests.csproj]" {
		t.Errorf("errs[2].Message = %q", errs[2].Message)
	}
}

func TestParseDiagnosticsNoMatches(t *testing.T) {
	errs, warns := ParseDiagnostics("Build succeeded.\n    0 Warning(s)\n    0 Error(s)\n")
	if len(errs) != 0 || len(warns) != 0 {
		t.Errorf("got %d errors, %d warnings, want none", len(errs), len(warns))
	}
}

func TestGroupByFile(t *testing.T) {
	ds := []Diagnostic{
		{File: "b.cs", Line: 1, Code: "CS1"},
		{File: "a.cs", Line: 5, Code: "CS2"},
		{File: "b.cs", Line: 9, Code: "CS3"},
	}
	files, byFile := GroupByFile(ds)
	if len(files) != 2 || files[0] != "a.cs" || files[1] != "b.cs" {
		t.Fatalf("files = %v", files)
	}
	if len(byFile["b.cs"]) != 2 || byFile["b.cs"][0].Line != 1 {
		t.Errorf("byFile[b.cs] = %v", byFile["b.cs"])
	}
}

const trxSample = `<?xml version="1.0" encoding="utf-8"?>
<TestRun xmlns="http://microsoft.com/schemas/VisualStudio/TeamTest/2010">
  <Results>
    <UnitTestResult testName="Billing.Domain.Tests.OrderTests.Total_SumsLines" outcome="Passed" duration="00:00:00.0412345" />
    <UnitTestResult testName="Billing.Domain.Tests.OrderTests.Total_AppliesDiscount" outcome="Failed" duration="00:00:01.5000000">
      <Output>
        <ErrorInfo>
          <Message>Assert.Equal() Failure: Expected 90, Actual 100</Message>
          <StackTrace>at Billing.Domain.Tests.OrderTests.Total_AppliesDiscount()</StackTrace>
        </ErrorInfo>
      </Output>
    </UnitTestResult>
    <UnitTestResult testName="StandaloneCheck" outcome="NotExecuted" duration="bogus" />
  </Results>
</TestRun>`

func TestParseTRX(t *testing.T) {
	cases, err := ParseTRX([]byte(trxSample))
	if err != nil {
		t.Fatalf("ParseTRX() = %v", err)
	}
	if len(cases) != 3 {
		t.Fatalf("cases = %d, want 3", len(cases))
	}

	passed := cases[0]
	if passed.Name != "Total_SumsLines" || passed.ClassName != "Billing.Domain.Tests.OrderTests" {
		t.Errorf("cases[0] = %+v", passed)
	}
	if passed.Duration < 41*time.Millisecond || passed.Duration > 42*time.Millisecond {
		t.Errorf("cases[0].Duration = %v", passed.Duration)
	}

	failed := cases[1]
	if !failed.Failed() {
		t.Error("cases[1].Failed() = false")
	}
	if failed.ErrorMsg != "Assert.Equal() Failure: Expected 90, Actual 100" {
		t.Errorf("cases[1].ErrorMsg = %q", failed.ErrorMsg)
	}
	if failed.FullName() != "Billing.Domain.Tests.OrderTests.Total_AppliesDiscount" {
		t.Errorf("FullName() = %q", failed.FullName())
	}

	bare := cases[2]
	if bare.ClassName != "" || bare.Name != "StandaloneCheck" {
		t.Errorf("cases[2] = %+v", bare)
	}
	if bare.Duration != 0 {
		t.Errorf("bogus duration parsed to %v, want 0", bare.Duration)
	}

	total, passedN, failedN, skipped := SummarizeCases(cases)
	if total != 3 || passedN != 1 || failedN != 1 || skipped != 1 {
		t.Errorf("summary = %d/%d/%d/%d", total, passedN, failedN, skipped)
	}
}

func TestParseTRXMalformed(t *testing.T) {
	if _, err := ParseTRX([]byte("not xml at all <<<")); err == nil {
		t.Error("ParseTRX() accepted malformed input")
	}
}

func TestDiscoverTestProjects(t *testing.T) {
	root := t.TempDir()
	write := func(rel, content string) {
		t.Helper()
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("tests/Billing.Domain.Tests/Billing.Domain.Tests.csproj",
		`<Project><ItemGroup><PackageReference Include="xunit" Version="2.9.0" /></ItemGroup></Project>`)
	write("tests/Billing.Nunit.Tests/Billing.Nunit.Tests.csproj",
		`<Project><ItemGroup><PackageReference Include="NUnit" /></ItemGroup></Project>`)
	write("src/Billing.Domain/Billing.Domain.csproj", `<Project />`)
	write("tests/Billing.Domain.Tests/bin/Copy.Tests.csproj",
		`<Project><PackageReference Include="xunit" /></Project>`)

	client, err := NewClient(root)
	if err != nil {
		t.Fatalf("NewClient() = %v", err)
	}
	projects, err := client.DiscoverTestProjects()
	if err != nil {
		t.Fatalf("DiscoverTestProjects() = %v", err)
	}
	if len(projects) != 1 {
		t.Fatalf("projects = %v, want exactly the xUnit project", projects)
	}
	if projects[0] != "tests/Billing.Domain.Tests/Billing.Domain.Tests.csproj" {
		t.Errorf("projects[0] = %q", projects[0])
	}
}

func TestNewClientRequiresAbsolutePath(t *testing.T) {
	if _, err := NewClient("relative/path"); err == nil {
		t.Error("NewClient accepted a relative path")
	}
}
