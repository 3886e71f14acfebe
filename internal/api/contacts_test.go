package api

import (
	"strings"
	"testing"
)

func TestParseContactsCSV(t *testing.T) {
	input := "name,phone\nAna,5511111111111\nBruno,5522222222222\n"
	rows, err := parseContactsCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Name != "Ana" || rows[0].Phone != "5511111111111" {
		t.Fatalf("unexpected first row %+v", rows[0])
	}
}

func TestParseContactsCSVColumnOrder(t *testing.T) {
	input := "phone,extra,name\n5511111111111,x,Ana\n"
	rows, err := parseContactsCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rows[0].Name != "Ana" || rows[0].Phone != "5511111111111" {
		t.Fatalf("columns not matched by header: %+v", rows[0])
	}
}

func TestParseContactsCSVHandlesBOM(t *testing.T) {
	input := "\uFEFFname,phone\nAna,5511111111111\n"
	rows, err := parseContactsCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse with BOM: %v", err)
	}
	if len(rows) != 1 || rows[0].Name != "Ana" {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestParseContactsCSVHeaderCase(t *testing.T) {
	input := "Name, Phone\nAna,5511111111111\n"
	rows, err := parseContactsCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rows[0].Phone != "5511111111111" {
		t.Fatalf("case-insensitive header not honored: %+v", rows[0])
	}
}

func TestParseContactsCSVMissingColumns(t *testing.T) {
	if _, err := parseContactsCSV(strings.NewReader("name,number\nAna,123\n")); err == nil {
		t.Fatal("expected error for missing phone column")
	}
	if _, err := parseContactsCSV(strings.NewReader("")); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestParseContactsCSVShortRows(t *testing.T) {
	input := "name,phone\nAna\n,5522222222222\n"
	rows, err := parseContactsCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	// rows with missing fields surface as empties for the importer to count
	if rows[0].Phone != "" || rows[1].Name != "" {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestTruncateMessage(t *testing.T) {
	if got := truncateMessage("short", 50); got != "short" {
		t.Fatalf("short message changed: %q", got)
	}
	long := strings.Repeat("x", 60)
	if got := truncateMessage(long, 50); got != strings.Repeat("x", 50)+"..." {
		t.Fatalf("unexpected truncation: %q", got)
	}
	// multi-byte content must not be split mid-rune
	accented := strings.Repeat("é", 60)
	if got := truncateMessage(accented, 50); got != strings.Repeat("é", 50)+"..." {
		t.Fatalf("unexpected rune truncation: %q", got)
	}
}
