package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/devraulu/rjmeta/pkg/batch"
	"github.com/devraulu/rjmeta/pkg/dlsite"
)

type document struct {
	Query       string   `json:"query"`
	Found       bool     `json:"found"`
	Name        string   `json:"name,omitempty"`
	Link        string   `json:"link,omitempty"`
	Developers  []string `json:"developers,omitempty"`
	Publisher   string   `json:"publisher,omitempty"`
	Series      string   `json:"series,omitempty"`
	ReleaseDate string   `json:"release_date,omitempty"`
	AgeRating   string   `json:"age_rating,omitempty"`
	Features    []string `json:"features,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Regions     []string `json:"regions,omitempty"`
	Description string   `json:"description,omitempty"`
	CoverPath   string   `json:"cover_path,omitempty"`
	Error       string   `json:"error,omitempty"`
}

func buildDocument(ctx context.Context, res batch.Result) document {
	doc := document{Query: res.Query}
	if res.Err != nil {
		doc.Error = res.Err.Error()
		return doc
	}
	if res.Listing == nil {
		return doc
	}

	doc.Found = true
	doc.Link = res.Listing.Link
	doc.CoverPath = res.CoverPath

	sess := res.Session
	doc.Name, _ = sess.Name(ctx)
	for _, dev := range sess.Developers(ctx) {
		doc.Developers = append(doc.Developers, dev.Name)
	}
	doc.Publisher, _ = sess.Publisher(ctx)
	if series, ok := sess.Series(ctx); ok {
		doc.Series = series.Name
	}
	if date, ok := sess.ReleaseDate(ctx); ok {
		doc.ReleaseDate = date.Format("2006-01-02")
	}
	doc.AgeRating, _ = sess.AgeRating(ctx)
	doc.Features = sess.Features(ctx)
	doc.Genres = sess.Genres(ctx)
	doc.Tags = sess.Tags(ctx)
	doc.Regions = sess.Regions(ctx)
	doc.Description, _ = sess.Description(ctx)
	return doc
}

func printResult(ctx context.Context, w io.Writer, res batch.Result, asJSON bool) {
	doc := buildDocument(ctx, res)
	if asJSON {
		json.NewEncoder(w).Encode(doc)
		return
	}
	printText(w, doc)
}

func printText(w io.Writer, doc document) {
	if doc.Error != "" {
		fmt.Fprintf(w, "%s: lookup failed: %s\n", doc.Query, doc.Error)
		return
	}
	if !doc.Found {
		fmt.Fprintf(w, "%s: no match\n", doc.Query)
		return
	}

	fmt.Fprintln(w, doc.Name)
	field(w, "Link", doc.Link)
	field(w, "Developers", strings.Join(doc.Developers, ", "))
	field(w, "Publisher", doc.Publisher)
	field(w, "Series", doc.Series)
	field(w, "Released", doc.ReleaseDate)
	field(w, "Age rating", doc.AgeRating)
	field(w, "Features", strings.Join(doc.Features, ", "))
	field(w, "Genres", strings.Join(doc.Genres, ", "))
	field(w, "Tags", strings.Join(doc.Tags, ", "))
	field(w, "Regions", strings.Join(doc.Regions, ", "))
	field(w, "Description", truncate(dlsite.PlainText(doc.Description), 200))
	field(w, "Cover", doc.CoverPath)
	fmt.Fprintln(w)
}

func field(w io.Writer, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(w, "  %-12s %s\n", label+":", value)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
