package core

import (
	"errors"
	"testing"
	"time"
)

func TestDateDisplay(t *testing.T) {
	cases := []struct {
		d    Date
		want string
	}{
		{NewDate(2025, 5, 1), "01 May 2025"},
		{NewDate(2025, 12, 31), "31 Dec 2025"},
		{MissingDate, ""},
		{DateOf(time.Date(2025, 6, 1, 15, 30, 0, 0, time.UTC)), "01 Jun 2025"},
	}
	for i, tc := range cases {
		if got := tc.d.Display(); got != tc.want {
			t.Fatalf("case %d: Display() = %q, want %q", i, got, tc.want)
		}
	}
	if !MissingDate.IsMissing() {
		t.Fatalf("zero date should be the missing marker")
	}
}

func TestRowReservedColumns(t *testing.T) {
	r := Row{
		Sheet: "May",
		Start: NewDate(2025, 5, 1),
		Values: map[string]Cell{
			ColStatus: TextCell("Active"),
			ColTasks:  NumberCell(3),
		},
	}
	if got := r.Text(ColSheet); got != "May" {
		t.Fatalf("sheet = %q", got)
	}
	if got := r.Text(ColStartDate); got != "01 May 2025" {
		t.Fatalf("start = %q", got)
	}
	if c, _ := r.Get(ColEndDate); !c.IsEmpty() {
		t.Fatalf("missing end date should read as empty, got %+v", c)
	}
	if got := r.Text(ColTasks); got != "3" {
		t.Fatalf("tasks = %q", got)
	}
	if _, ok := r.Get("Nope"); ok {
		t.Fatalf("unknown column should not be found")
	}
}

func TestCellString(t *testing.T) {
	cases := []struct {
		c    Cell
		want string
	}{
		{TextCell("x"), "x"},
		{NumberCell(3), "3"},
		{NumberCell(2.5), "2.5"},
		{BoolCell(true), "True"},
		{DateCell(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)), "2025-05-01"},
		{DateCell(time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)), "2025-05-01 09:30:00"},
		{Cell{}, ""},
	}
	for i, tc := range cases {
		if got := tc.c.String(); got != tc.want {
			t.Fatalf("case %d: got %q want %q", i, got, tc.want)
		}
	}
	if !TextCell("   ").IsEmpty() {
		t.Fatalf("blank text should be empty")
	}
}

func TestCellFloat(t *testing.T) {
	if f, ok := TextCell(" 4 ").Float(); !ok || f != 4 {
		t.Fatalf("text float = %v %v", f, ok)
	}
	if _, ok := TextCell("four").Float(); ok {
		t.Fatalf("non-numeric text should not parse")
	}
	if _, ok := (Cell{}).Float(); ok {
		t.Fatalf("empty cell should not parse")
	}
}

func TestMemoryWorkbook(t *testing.T) {
	wb := NewMemoryWorkbook()
	wb.AddSheet("B", TextRows([][]string{{"h"}}))
	wb.AddSheet("A", nil)
	wb.AddSheet("B", TextRows([][]string{{"h2"}}))

	names := wb.SheetNames()
	if len(names) != 2 || names[0] != "B" || names[1] != "A" {
		t.Fatalf("unexpected order: %v", names)
	}
	rows, err := wb.Rows("B")
	if err != nil || rows[0][0].Text != "h2" {
		t.Fatalf("unexpected rows: %v %v", rows, err)
	}
	if _, err := wb.Rows("C"); !errors.Is(err, ErrSheetNotFound) {
		t.Fatalf("expected ErrSheetNotFound, got %v", err)
	}
}
