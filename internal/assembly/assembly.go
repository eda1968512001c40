// Package assembly renders the memory horizons into a single context view for
// the reasoning consumer. Section order is fixed and stable: identity first,
// accumulated knowledge, current task state, execution specifics, and tool
// inventory last. Empty sections are omitted entirely rather than rendered as
// empty headers.
package assembly

import (
	"fmt"
	"sort"
	"strings"

	"mnemos/internal/logging"
	"mnemos/internal/memory"
)

// Tool is one entry in the consumer's tool inventory.
type Tool struct {
	Name        string
	Description string
}

// View is the input to assembly: the loaded horizons plus runtime context
// supplied by the caller (working directory, environment notes, and so on).
type View struct {
	Profile   *memory.Profile
	Knowledge []memory.KnowledgeItem
	Workspace *memory.Workspace
	Runtime   string
	Tools     []Tool
}

// Section headers, in render order.
const (
	headerProfile   = "## User Profile"
	headerKnowledge = "## Accumulated Knowledge"
	headerWorkspace = "## Current Task"
	headerRuntime   = "## Execution Context"
	headerTools     = "## Available Tools"
)

// Assemble renders the view into prompt-ready text. The same view always
// renders to the same output.
func Assemble(v View) string {
	timer := logging.StartTimer(logging.CategoryAssembly, "Assemble")
	defer timer.Stop()

	var b strings.Builder

	writeProfile(&b, v.Profile)
	writeKnowledge(&b, v.Knowledge)
	writeWorkspace(&b, v.Workspace)
	writeRuntime(&b, v.Runtime)
	writeTools(&b, v.Tools)

	out := strings.TrimRight(b.String(), "\n")
	logging.AssemblyDebug("Assembled context: %d bytes, knowledge_items=%d", len(out), len(v.Knowledge))
	return out
}

func writeProfile(b *strings.Builder, p *memory.Profile) {
	if p == nil {
		return
	}
	empty := len(p.Preferences) == 0 && len(p.Goals) == 0 &&
		len(p.Expertise) == 0 && p.CommunicationStyle == ""
	if empty {
		return
	}

	b.WriteString(headerProfile + "\n")
	if p.CommunicationStyle != "" {
		fmt.Fprintf(b, "Communication style: %s\n", p.CommunicationStyle)
	}
	if len(p.Preferences) > 0 {
		b.WriteString("Preferences:\n")
		for _, key := range sortedKeys(p.Preferences) {
			fmt.Fprintf(b, "- %s: %s\n", key, p.Preferences[key])
		}
	}
	if len(p.Goals) > 0 {
		b.WriteString("Goals:\n")
		for _, g := range p.Goals {
			fmt.Fprintf(b, "- %s\n", g)
		}
	}
	if len(p.Expertise) > 0 {
		fmt.Fprintf(b, "Expertise: %s\n", strings.Join(p.Expertise, ", "))
	}
	b.WriteString("\n")
}

func writeKnowledge(b *strings.Builder, items []memory.KnowledgeItem) {
	if len(items) == 0 {
		return
	}

	b.WriteString(headerKnowledge + "\n")
	for _, item := range items {
		fmt.Fprintf(b, "- [%s] %s\n", item.Topic, item.Content)
	}
	b.WriteString("\n")
}

func writeWorkspace(b *strings.Builder, w *memory.Workspace) {
	if w == nil {
		return
	}
	if w.Objective == "" && w.Understanding == "" && w.Approach == "" && w.Discoveries == "" {
		return
	}

	b.WriteString(headerWorkspace + "\n")
	writeField(b, "Objective", w.Objective)
	writeField(b, "Understanding", w.Understanding)
	writeField(b, "Approach", w.Approach)
	writeField(b, "Discoveries", w.Discoveries)
	b.WriteString("\n")
}

func writeField(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, value)
}

func writeRuntime(b *strings.Builder, runtime string) {
	if runtime == "" {
		return
	}
	b.WriteString(headerRuntime + "\n")
	b.WriteString(runtime + "\n\n")
}

func writeTools(b *strings.Builder, tools []Tool) {
	if len(tools) == 0 {
		return
	}
	b.WriteString(headerTools + "\n")
	for _, t := range tools {
		if t.Description != "" {
			fmt.Fprintf(b, "- %s: %s\n", t.Name, t.Description)
		} else {
			fmt.Fprintf(b, "- %s\n", t.Name)
		}
	}
	b.WriteString("\n")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
