package xmlparser

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"badgeetl/internal/config"
)

func drain(out chan Record) []Record {
	var recs []Record
	for r := range out {
		recs = append(recs, r)
	}
	return recs
}

func TestParseStream_AttributesInOrder(t *testing.T) {
	comp, _ := Compile(Config{RecordTag: "row", AttributePrefix: "_"})
	var b strings.Builder
	b.WriteString("<badges>")
	for i := 0; i < 200; i++ {
		b.WriteString(`<row Id="` + itoa(i) + `" Name="  Nice Answer  " />`)
	}
	b.WriteString("</badges>")

	for _, zc := range []bool{false, true} {
		out := make(chan Record, 512)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := ParseStream(ctx, strings.NewReader(b.String()), []byte(b.String()), comp, Options{
			Workers: 4, PreserveOrder: true, Strict: true, ZeroCopy: zc,
		}, out)
		cancel()
		if err != nil {
			t.Fatalf("zerocopy=%v: %v", zc, err)
		}
		close(out)
		recs := drain(out)
		if len(recs) != 200 {
			t.Fatalf("zerocopy=%v: got %d records", zc, len(recs))
		}
		for i, r := range recs {
			if r["_Id"] != itoa(i) {
				t.Fatalf("zerocopy=%v: record %d has _Id=%v", zc, i, r["_Id"])
			}
			if r["_Name"] != "  Nice Answer  " {
				t.Fatalf("attribute whitespace lost: %q", r["_Name"])
			}
		}
	}
}

func TestParseStream_ChildFieldsAndUltraFast(t *testing.T) {
	comp, _ := Compile(Config{RecordTag: "row", AttributePrefix: "_", Fields: map[string]string{"note": "Note"}})
	doc := `<badges><row Id="7"><Note> hi </Note></row></badges>`

	out := make(chan Record, 2)
	if err := ParseStream(context.Background(), strings.NewReader(doc), nil, comp, Options{Strict: true}, out); err != nil {
		t.Fatal(err)
	}
	close(out)
	recs := drain(out)
	if len(recs) != 1 || recs[0]["_Id"] != "7" || recs[0]["note"] != "hi" {
		t.Fatalf("recs=%v", recs)
	}

	out = make(chan Record, 2)
	if err := ParseStream(context.Background(), strings.NewReader(doc), nil, comp, Options{Strict: true, UltraFast: true}, out); err != nil {
		t.Fatal(err)
	}
	close(out)
	recs = drain(out)
	if len(recs) != 1 || recs[0]["_Id"] != "7" {
		t.Fatalf("ultrafast recs=%v", recs)
	}
	if _, ok := recs[0]["note"]; ok {
		t.Fatal("ultrafast path extracted a child element")
	}
}

func TestParseStream_StrictMalformed(t *testing.T) {
	comp, _ := Compile(Config{RecordTag: "row", AttributePrefix: "_"})
	out := make(chan Record, 4)
	err := ParseStream(context.Background(), strings.NewReader(`<badges><row Id="1" /><row Id="2">`), nil, comp, Options{Strict: true, Workers: 2}, out)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("err=%v; want ErrMalformed", err)
	}
}

func TestStreamRecords_ClosesOut(t *testing.T) {
	out := make(chan Record, 4)
	err := StreamRecords(context.Background(), strings.NewReader(`<badges><row Id="1"/></badges>`), nil,
		config.Options{"record_tag": "row", "attribute_prefix": "_"}, Options{Strict: true}, out)
	if err != nil {
		t.Fatal(err)
	}
	recs := drain(out) // returns only because out was closed
	if len(recs) != 1 || recs[0]["_Id"] != "1" {
		t.Fatalf("recs=%v", recs)
	}
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var buf [20]byte
	p := len(buf)
	for i > 0 {
		p--
		buf[p] = byte('0' + i%10)
		i /= 10
	}
	return string(buf[p:])
}
