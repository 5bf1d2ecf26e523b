package sheet

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/korean"

	"github.com/JonMunkholm/salesunifier/internal/core"
)

func buildWorkbook(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for r, row := range rows {
		for c, v := range row {
			ref, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				t.Fatalf("CoordinatesToCellName: %v", err)
			}
			if v == nil {
				continue
			}
			if err := f.SetCellValue("Sheet1", ref, v); err != nil {
				t.Fatalf("SetCellValue(%s): %v", ref, err)
			}
		}
	}

	// A second sheet that must be ignored.
	if _, err := f.NewSheet("Notes"); err != nil {
		t.Fatalf("NewSheet: %v", err)
	}
	if err := f.SetCellValue("Notes", "A1", "ignore me"); err != nil {
		t.Fatalf("SetCellValue: %v", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf.Bytes()
}

func TestReader_Workbook(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"날짜", "제품명", "제품코드", "수량", "단가"},
		{45366, "Widget", "00123", 3, 10.5},
		{nil, nil, nil, nil, nil},
		{"2024-03-16", "Gadget", nil, 1, 2},
	})

	sheet, err := NewReader(0).Read(context.Background(), "seoul.xlsx", data)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	wantHeaders := []string{"날짜", "제품명", "제품코드", "수량", "단가"}
	if !reflect.DeepEqual(sheet.Headers, wantHeaders) {
		t.Errorf("Headers = %v, want %v", sheet.Headers, wantHeaders)
	}
	if len(sheet.Rows) != 2 {
		t.Fatalf("Rows = %d, want 2 (blank row skipped)", len(sheet.Rows))
	}

	first := sheet.Rows[0]
	if first["날짜"] != 45366.0 {
		t.Errorf("date cell = %#v, want serial number 45366", first["날짜"])
	}
	if first["제품코드"] != "00123" {
		t.Errorf("code cell = %#v, want text 00123", first["제품코드"])
	}
	if first["단가"] != 10.5 {
		t.Errorf("price cell = %#v, want 10.5", first["단가"])
	}

	second := sheet.Rows[1]
	if _, ok := second["제품코드"]; ok {
		t.Error("empty cell should be absent from the row")
	}
	if second["날짜"] != "2024-03-16" {
		t.Errorf("text date = %#v, want 2024-03-16", second["날짜"])
	}
}

func TestReader_WorkbookMaxRows(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"제품명"},
		{"A"}, {"B"}, {"C"},
	})

	sheet, err := NewReader(2).Read(context.Background(), "a.xlsx", data)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if len(sheet.Rows) != 2 {
		t.Errorf("Rows = %d, want 2", len(sheet.Rows))
	}
	if sheet.DroppedRows != 1 {
		t.Errorf("DroppedRows = %d, want 1", sheet.DroppedRows)
	}
}

func TestReader_CSVMaxRows(t *testing.T) {
	data := []byte("제품명,수량\nA,1\nB,2\n,\nC,3\nD,4\n")

	sheet, err := NewReader(2).Read(context.Background(), "a.csv", data)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if len(sheet.Rows) != 2 {
		t.Errorf("Rows = %d, want 2", len(sheet.Rows))
	}
	if sheet.DroppedRows != 2 {
		t.Errorf("DroppedRows = %d, want 2 (blank line not counted)", sheet.DroppedRows)
	}

	sheet, err = NewReader(0).Read(context.Background(), "a.csv", data)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if sheet.DroppedRows != 0 {
		t.Errorf("DroppedRows without a cap = %d, want 0", sheet.DroppedRows)
	}
}

func TestReader_CSVNonFiniteWordsStayText(t *testing.T) {
	data := []byte("고객명,수량,단가,금액\nNan,NaN,inf,Infinity\n-INF,+Inf,1e400,nan\nNancy,2,1.5,3\n")

	sheet, err := NewReader(0).Read(context.Background(), "words.csv", data)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	want := []map[string]any{
		{"고객명": "Nan", "수량": "NaN", "단가": "inf", "금액": "Infinity"},
		{"고객명": "-INF", "수량": "+Inf", "단가": "1e400", "금액": "nan"},
		{"고객명": "Nancy", "수량": 2.0, "단가": 1.5, "금액": 3.0},
	}
	if !reflect.DeepEqual(sheet.Rows, want) {
		t.Errorf("rows = %#v, want %#v", sheet.Rows, want)
	}
}

func TestNumberCell(t *testing.T) {
	tests := []struct {
		in      string
		numeric bool
		want    float64
	}{
		{"3", true, 3},
		{" 10.5 ", true, 10.5},
		{"-2e3", true, -2000},
		{"NaN", false, 0},
		{"nan", false, 0},
		{"Inf", false, 0},
		{"-infinity", false, 0},
		{"1e400", false, 0},
		{"12abc", false, 0},
		{"", false, 0},
	}

	for _, tt := range tests {
		c := numberCell(tt.in)
		if c.numeric != tt.numeric {
			t.Errorf("numberCell(%q).numeric = %v, want %v", tt.in, c.numeric, tt.numeric)
			continue
		}
		if tt.numeric && c.number != tt.want {
			t.Errorf("numberCell(%q).number = %v, want %v", tt.in, c.number, tt.want)
		}
		if !tt.numeric && c.value() != tt.in {
			t.Errorf("numberCell(%q).value() = %#v, want original text", tt.in, c.value())
		}
	}
}

func TestReader_CSV(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("날짜,제품명,수량,금액,금액\n15/03/2024,\"Widget, XL\",3,30,31\n,,,,\n")...)

	sheet, err := NewReader(0).Read(context.Background(), "busan.CSV", data)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	wantHeaders := []string{"날짜", "제품명", "수량", "금액", "금액_1"}
	if !reflect.DeepEqual(sheet.Headers, wantHeaders) {
		t.Errorf("Headers = %v, want %v", sheet.Headers, wantHeaders)
	}
	if len(sheet.Rows) != 1 {
		t.Fatalf("Rows = %d, want 1", len(sheet.Rows))
	}

	want := map[string]any{
		"날짜":   "15/03/2024",
		"제품명":  "Widget, XL",
		"수량":   3.0,
		"금액":   30.0,
		"금액_1": 31.0,
	}
	if !reflect.DeepEqual(sheet.Rows[0], want) {
		t.Errorf("row = %#v, want %#v", sheet.Rows[0], want)
	}
}

func TestReader_CSVKoreanLegacyEncoding(t *testing.T) {
	utf8Text := "제품명,수량\n위젯,2\n"
	encoded, err := korean.EUCKR.NewEncoder().Bytes([]byte(utf8Text))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	sheet, err := NewReader(0).Read(context.Background(), "legacy.csv", encoded)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if !reflect.DeepEqual(sheet.Headers, []string{"제품명", "수량"}) {
		t.Errorf("Headers = %v, want decoded Korean", sheet.Headers)
	}
	if sheet.Rows[0]["제품명"] != "위젯" {
		t.Errorf("cell = %#v, want 위젯", sheet.Rows[0]["제품명"])
	}
}

func TestReader_Errors(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		data     []byte
		wantType bool
	}{
		{name: "unsupported extension", file: "notes.txt", data: []byte("hello"), wantType: true},
		{name: "corrupt workbook", file: "broken.xlsx", data: []byte("not a zip")},
		{name: "empty csv", file: "empty.csv", data: nil},
		{name: "blank header row", file: "blank.csv", data: []byte(" , \n1,2\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(0).Read(context.Background(), tt.file, tt.data)
			if !errors.Is(err, core.ErrUnreadableFile) {
				t.Fatalf("Read() error = %v, want ErrUnreadableFile", err)
			}
			if tt.wantType && !errors.Is(err, ErrUnsupportedType) {
				t.Errorf("Read() error = %v, want ErrUnsupportedType", err)
			}
		})
	}
}

func TestSupported(t *testing.T) {
	tests := map[string]bool{
		"a.xlsx": true,
		"a.XLS":  true,
		"a.csv":  true,
		"a.pdf":  false,
		"xlsx":   false,
	}
	for name, want := range tests {
		if got := Supported(name); got != want {
			t.Errorf("Supported(%q) = %v, want %v", name, got, want)
		}
	}
}
