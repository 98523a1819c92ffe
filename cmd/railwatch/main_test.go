package main

import (
	"bytes"
	"os"
	"reflect"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"

	"railwatch/pkg/analyzer"
	"railwatch/pkg/fuzzy"
	"railwatch/pkg/lexer"
)

func TestMain(m *testing.M) {
	log.SetLevel(log.PanicLevel)
	exitCode := m.Run()
	os.Exit(exitCode)
}

func newTestAnalyzer(t *testing.T) *analyzer.Analyzer {
	t.Helper()
	table, err := lexer.DefaultTable()
	if err != nil {
		t.Fatalf("failed to build rule table: %v", err)
	}
	return analyzer.New(table, fuzzy.DefaultBlocklist(), analyzer.DefaultOptions())
}

func TestPrintReports(t *testing.T) {
	an := newTestAnalyzer(t)
	tweets := []string{"Linha 9 atrasada", "tudo ótimo"}
	reports := []analyzer.Report{an.Analyze(tweets[0]), an.Analyze(tweets[1])}

	var buf bytes.Buffer
	printReports(&buf, tweets, reports)
	out := buf.String()

	for _, want := range []string{
		`Tweet 1: "Linha 9 atrasada"`,
		"- DELAY: atrasada",
		`Tweet 2: "tudo ótimo"`,
		"No problems found.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("want %q in output:\n%s", want, out)
		}
	}
}

func TestFlagWords(t *testing.T) {
	an := newTestAnalyzer(t)
	tweets := []string{"trem atrado de novo", "Lotado, que calor", ""}

	tests := []struct {
		name  string
		match func(string) fuzzy.MatchResult
		want  []string
	}{
		{name: "normalized", match: an.MatchWord, want: []string{"atrado", "Lotado,", "calor"}},
		{name: "exact", match: an.MatchExact, want: []string{"atrado", "calor"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := flagWords(tweets, tt.match)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("want %q, got %q", tt.want, got)
			}
		})
	}
}
