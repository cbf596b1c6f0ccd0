// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package generate

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var csharpFenceLangs = map[string]bool{
	"csharp": true,
	"cs":     true,
	"c#":     true,
}

// ExtractArtifact pulls the test file out of an oracle reply.
//
// # Description
//
// The reply is parsed as markdown and the first fenced code block
// tagged as C# wins. When no fence carries a C# tag the first fence
// of any language is taken, and a reply with no fences at all is
// treated as raw code if it plausibly is C# (models sometimes skip
// the fence entirely).
//
// # Outputs
//
//   - string: The artifact content, trailing newline normalized.
//   - error: ErrNoCodeFence or ErrEmptyArtifact.
func ExtractArtifact(reply string) (string, error) {
	src := []byte(reply)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var firstFence, csharpFence string
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || csharpFence != "" {
			return ast.WalkContinue, nil
		}
		fence, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		content := fenceContent(fence, src)
		if firstFence == "" {
			firstFence = content
		}
		lang := strings.ToLower(string(fence.Language(src)))
		if csharpFenceLangs[lang] {
			csharpFence = content
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}

	artifact := csharpFence
	if artifact == "" {
		artifact = firstFence
	}
	if artifact == "" {
		if looksLikeCSharp(reply) {
			artifact = reply
		} else {
			return "", ErrNoCodeFence
		}
	}

	artifact = strings.TrimRight(artifact, "\n") + "\n"
	if strings.TrimSpace(artifact) == "" {
		return "", ErrEmptyArtifact
	}
	return artifact, nil
}

func fenceContent(fence *ast.FencedCodeBlock, src []byte) string {
	var b bytes.Buffer
	lines := fence.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
	return b.String()
}

// looksLikeCSharp is a cheap sniff for an unfenced code reply.
func looksLikeCSharp(s string) bool {
	trimmed := strings.TrimSpace(s)
	return strings.HasPrefix(trimmed, "using ") ||
		strings.HasPrefix(trimmed, "namespace ") ||
		strings.Contains(trimmed, "[Fact]") ||
		strings.Contains(trimmed, "public class ")
}
