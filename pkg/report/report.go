// Package report aggregates parsed artifacts into per-type text reports.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"msgdump/pkg/parser"
)

// separatorWidth is the dash ruler between the metadata header and the
// message lines in messages.txt
const separatorWidth = 79

// Counts tallies extracted artifacts per data type
type Counts struct {
	Messages int
	Pictures int
	Gifs     int
	Videos   int
	Files    int
	Links    int
}

// Summary renders the one-line parse summary
func (c Counts) Summary() string {
	return fmt.Sprintf("%d messages, %d pictures, %d gifs, %d videos, %d files, %d links parsed",
		c.Messages, c.Pictures, c.Gifs, c.Videos, c.Files, c.Links)
}

// Total returns the number of artifacts across every type
func (c Counts) Total() int {
	return c.Messages + c.Pictures + c.Gifs + c.Videos + c.Files + c.Links
}

// CountArtifacts tallies a parse result's artifacts
func CountArtifacts(artifacts []parser.Artifact) Counts {
	var counts Counts
	for _, artifact := range artifacts {
		switch artifact.Kind {
		case parser.DataMessages:
			counts.Messages++
		case parser.DataPictures:
			counts.Pictures++
		case parser.DataGifs:
			counts.Gifs++
		case parser.DataVideos:
			counts.Videos++
		case parser.DataFiles:
			counts.Files++
		case parser.DataLinks:
			counts.Links++
		}
	}
	return counts
}

// Report holds one conversation's aggregated artifacts, ready to write
type Report struct {
	result *parser.Result
	types  []parser.DataType
	counts Counts
	lines  map[parser.DataType][]string
}

// New aggregates a parse result. types are the data types the parse was
// asked for; only those collections get content, but Write always emits
// every report file.
func New(result *parser.Result, types []parser.DataType) *Report {
	lines := make(map[parser.DataType][]string)
	for _, artifact := range result.Artifacts {
		switch artifact.Kind {
		case parser.DataMessages:
			lines[artifact.Kind] = append(lines[artifact.Kind], artifact.Text)
		default:
			lines[artifact.Kind] = append(lines[artifact.Kind], artifact.URL)
		}
	}

	return &Report{
		result: result,
		types:  parser.NormalizeTypes(types),
		counts: CountArtifacts(result.Artifacts),
		lines:  lines,
	}
}

// Counts returns the per-type artifact tallies
func (r *Report) Counts() Counts {
	return r.counts
}

// Summary renders the one-line parse summary
func (r *Report) Summary() string {
	return r.counts.Summary()
}

// Lines returns the report lines of one data type
func (r *Report) Lines(kind parser.DataType) []string {
	return r.lines[kind]
}

// requested reports whether a data type was part of the parse
func (r *Report) requested(kind parser.DataType) bool {
	for _, t := range r.types {
		if t == kind {
			return true
		}
	}
	return false
}

// FileName returns the report file name of one data type
func FileName(kind parser.DataType) string {
	return string(kind) + ".txt"
}

// Write emits every report file into dir, creating it if needed. One
// file per data type; types the parse was not asked for come out empty.
// messages.txt opens with the conversation metadata header.
func (r *Report) Write(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	for _, kind := range parser.ReportTypes {
		path := filepath.Join(dir, FileName(kind))
		if err := os.WriteFile(path, []byte(r.content(kind)), 0644); err != nil {
			return fmt.Errorf("failed to write %s report: %w", kind, err)
		}
	}

	return nil
}

// content renders one report file's body
func (r *Report) content(kind parser.DataType) string {
	if !r.requested(kind) {
		return ""
	}

	var b strings.Builder
	if kind == parser.DataMessages {
		b.WriteString(r.result.Meta.DisplayLine())
		b.WriteString("\n")
		b.WriteString(strings.Repeat("-", separatorWidth))
		b.WriteString("\n\n")
	}

	for _, line := range r.lines[kind] {
		b.WriteString(line)
		b.WriteString("\n")
	}

	return b.String()
}
