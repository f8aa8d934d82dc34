package mcpserver

// OutputFormatURI identifies the output format resource.
const OutputFormatURI = "backlinks://output-format"

// OutputFormatContract describes the document collect_backlinks writes, so
// that LLM consumers can read generated documents back reliably.
const OutputFormatContract = `# Backlinks Document Format

collect_backlinks writes one document per target note, named
` + "`" + `<target>_backlinks.md` + "`" + ` and placed in the configured output folder
(the vault root by default).

## Structure

Each note that references the target contributes one entry:

` + "```" + `markdown
[[source-note]]

first context block

second context block

---

[[next-source-note]]

its context block

` + "```" + `

## Rules

1. Entries follow vault enumeration order. Generated documents
   (names ending in ` + "`" + `_backlinks` + "`" + `) never contribute entries.
2. An entry starts with a wikilink to the source note, then a blank line.
3. Every context block is followed by a blank line.
4. Entries are separated by a line holding ` + "`" + `---` + "`" + ` and a blank line.
   There is no separator after the last entry.
5. A context block is the line holding the reference plus every following
   line indented deeper than it. Blank lines inside a block are kept.
   Tabs count as four columns.
6. A reference is ` + "`" + `[[target]]` + "`" + ` or ` + "`" + `[[target|alias]]` + "`" + `. Matching is exact
   and case-sensitive.
7. When nothing references the target no document is written.
`
