// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package compact

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"testing"

	"github.com/SnellerInc/atompack/atom"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func loadDoc(t *testing.T, name string) *atom.Document {
	t.Helper()
	f, err := os.Open("testdata/" + name)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	doc, err := atom.ParseJSON(f)
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

// roundTrip compacts doc, checks that the
// artifact decompresses to doc (directly and
// after re-parsing its encoding), and returns
// the artifact.
func roundTrip(t *testing.T, doc *atom.Document) *Artifact {
	t.Helper()
	a, err := Compact(doc)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decompress(a)
	if err != nil {
		t.Fatal(err)
	}
	if !doc.Equal(got) {
		t.Fatalf("round trip mismatch (-want +got):\n%s", cmp.Diff(doc, got, cmpopts.EquateEmpty()))
	}
	buf, err := a.Encode()
	if err != nil {
		t.Fatal(err)
	}
	a2, err := ParseArtifact(buf)
	if err != nil {
		t.Fatal(err)
	}
	got, err = Decompress(a2)
	if err != nil {
		t.Fatal(err)
	}
	if !doc.Equal(got) {
		t.Fatalf("round trip through JSON mismatch (-want +got):\n%s", cmp.Diff(doc, got, cmpopts.EquateEmpty()))
	}
	buf2, err := a2.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, buf2) {
		t.Fatalf("re-encoding changed the artifact:\n%s\n%s", buf, buf2)
	}
	return a
}

func res(subject string, kv ...interface{}) atom.Resource {
	r := atom.Resource{Subject: subject}
	for i := 0; i < len(kv); i += 2 {
		var v atom.Value
		if kv[i+1] != nil {
			v = kv[i+1].(atom.Value)
		}
		r.Props = append(r.Props, atom.Property{Key: kv[i].(string), Value: v})
	}
	return r
}

func TestConcreteScenario(t *testing.T) {
	doc := &atom.Document{Resources: []atom.Resource{
		res("https://x/1", "https://x/p/active", atom.Bool(true), "https://x/p/name", atom.String("Ann")),
		res("https://x/2", "https://x/p/active", atom.Bool(true), "https://x/p/name", atom.String("Ann")),
	}}
	a := roundTrip(t, doc)

	want := []string{"https://x/1", "https://x/p/active", "https://x/p/name", "https://x/2"}
	if diff := cmp.Diff(want, a.URLs); diff != "" {
		t.Errorf("url table (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[PoolKey][]string{"2": {"Ann"}}, a.Pools); diff != "" {
		t.Errorf("pools (-want +got):\n%s", diff)
	}
	if len(a.Shapes) != 1 || a.Records[0].ShapeID != a.Records[1].ShapeID {
		t.Errorf("expected one shared shape; got %v", a.Shapes)
	}
	if !cmp.Equal(a.Records[0].Values[1], a.Records[1].Values[1]) {
		t.Errorf("name values differ: %+v %+v", a.Records[0].Values[1], a.Records[1].Values[1])
	}
	if v := a.Records[0].Values[0]; v.Kind != RefBool || !v.Bool {
		t.Errorf("active encoded as %+v", v)
	}
	if len(a.Abbrev) != 0 {
		t.Errorf("unexpected abbreviations %v", a.Abbrev)
	}
	if a.Stats.StringsDeduplicated != 1 || a.Stats.PooledStrings != 1 {
		t.Errorf("stats %+v", a.Stats)
	}

	// each duplicate is restored independently
	got, err := Decompress(a)
	if err != nil {
		t.Fatal(err)
	}
	got.Resources[0].Props[1].Value = atom.String("Bob")
	if v, _ := got.Resources[1].Get("https://x/p/name"); !atom.Equal(v, atom.String("Ann")) {
		t.Errorf("second resource changed to %v", v)
	}
}

func TestRoundTrip(t *testing.T) {
	many := &atom.Document{}
	for i := 0; i < 200; i++ {
		many.Resources = append(many.Resources, res(fmt.Sprintf("https://x/r/%d", i),
			"https://x/p/kind", atom.String("widget"),
			"https://x/p/index", atom.Number(i),
			"https://x/p/odd", atom.Bool(i%2 == 1),
		))
	}
	cases := map[string]*atom.Document{
		"empty":    {},
		"no-props": {Resources: []atom.Resource{{Subject: "https://x/1"}, {Subject: "https://x/2"}}},
		"bools": {Resources: []atom.Resource{
			res("a", "p", atom.Bool(true), "q", atom.Bool(false)),
			res("b", "q", atom.Bool(false), "p", atom.Bool(false)),
		}},
		"cycle": {Resources: []atom.Resource{
			res("https://x/a", "https://x/p/next", atom.Ref("https://x/b")),
			res("https://x/b", "https://x/p/next", atom.Ref("https://x/a")),
		}},
		"self": {Resources: []atom.Resource{
			res("https://x/a", "https://x/p/self", atom.Ref("https://x/a")),
		}},
		"dangling": {Resources: []atom.Resource{
			res("https://x/a", "https://x/p/next", atom.Ref("https://x/missing")),
		}},
		"nested": {Resources: []atom.Resource{
			res("a",
				"l", atom.List{atom.String("x"), atom.List{atom.Number(-0.5), atom.Null{}}, atom.Ref("b"), atom.String("x")},
				"e", atom.List{},
				"n", atom.Null{},
				"s", atom.String(""),
			),
		}},
		"numbers": {Resources: []atom.Resource{
			res("a", "big", atom.Number(1e300), "small", atom.Number(5e-324), "neg", atom.Number(-42), "frac", atom.Number(0.1)),
		}},
		"many":      many,
		"companies": loadDoc(t, "companies.json"),
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			a := roundTrip(t, doc)
			if a.Stats.Resources != len(doc.Resources) {
				t.Errorf("stats report %d resources, want %d", a.Stats.Resources, len(doc.Resources))
			}
		})
	}
}

func TestManySharedShape(t *testing.T) {
	doc := &atom.Document{}
	for i := 0; i < 100; i++ {
		status := "active"
		if i >= 90 {
			status = fmt.Sprintf("state-%d", i)
		}
		doc.Resources = append(doc.Resources, res(fmt.Sprintf("https://x/r/%d", i),
			"https://x/p/status", atom.String(status),
			"https://x/p/kind", atom.String("account"),
		))
	}
	a := roundTrip(t, doc)
	if len(a.Shapes) != 1 {
		t.Fatalf("got %d shapes, want 1", len(a.Shapes))
	}
	statusID := URLID(1) // subject 0 comes first
	if a.URLs[statusID] != "https://x/p/status" {
		t.Fatalf("unexpected url table %v", a.URLs[:3])
	}
	if n := len(a.Pools["1"]); n != 11 {
		t.Errorf("status pool holds %d values, want 11", n)
	}
	if n := len(a.Pools["2"]); n != 1 {
		t.Errorf("kind pool holds %d values, want 1", n)
	}
	if a.Stats.StringsDeduplicated != 200-12 {
		t.Errorf("deduplicated %d strings, want %d", a.Stats.StringsDeduplicated, 200-12)
	}
}

func TestPoolsArePerProperty(t *testing.T) {
	doc := &atom.Document{Resources: []atom.Resource{
		res("r", "a", atom.String("same"), "b", atom.String("same"), "c", atom.List{atom.String("x"), atom.String("x"), atom.String("y")}),
	}}
	a := roundTrip(t, doc)
	want := map[PoolKey][]string{
		"1": {"same"},
		"2": {"same"},
		"3": {"x", "y"},
	}
	if diff := cmp.Diff(want, a.Pools); diff != "" {
		t.Fatalf("pools (-want +got):\n%s", diff)
	}
}

func TestShapeOrderMatters(t *testing.T) {
	doc := &atom.Document{Resources: []atom.Resource{
		res("r1", "a", atom.Number(1), "b", atom.Number(2)),
		res("r2", "b", atom.Number(2), "a", atom.Number(1)),
		res("r3", "a", atom.Number(3), "b", atom.Number(4)),
	}}
	a := roundTrip(t, doc)
	if len(a.Shapes) != 2 {
		t.Fatalf("got shapes %v", a.Shapes)
	}
	if a.Records[0].ShapeID != a.Records[2].ShapeID || a.Records[0].ShapeID == a.Records[1].ShapeID {
		t.Fatalf("unexpected shape ids %d %d %d", a.Records[0].ShapeID, a.Records[1].ShapeID, a.Records[2].ShapeID)
	}
}

func TestAbbreviations(t *testing.T) {
	doc := loadDoc(t, "companies.json")
	a := roundTrip(t, doc)
	nameID := URLID(0)
	for id, u := range a.URLs {
		if u == "https://common.terraphim.io/01jxw2jx8qze6yakh4fz24mnhy/property/company-name" {
			nameID = URLID(id)
		}
	}
	if a.Abbrev[nameID] != "cn" {
		t.Fatalf("company-name abbreviated as %q", a.Abbrev[nameID])
	}
	if diff := cmp.Diff([]string{"Acme Widgets Ltd", "Globex Corporation"}, a.Pools["cn"]); diff != "" {
		t.Errorf("cn pool (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Manufacturer of precision widgets"}, a.Pools["cd"]); diff != "" {
		t.Errorf("cd pool (-want +got):\n%s", diff)
	}
	// 10 well-known properties on each company,
	// isA, parent and name on each step
	if a.Stats.PropertiesAbbreviated != 2*10+2*3 {
		t.Errorf("abbreviated %d properties", a.Stats.PropertiesAbbreviated)
	}
	for id, code := range a.Abbrev {
		if u, _ := Expand(code); u != a.URLs[id] {
			t.Errorf("abbreviation %q -> %q, url table has %q", code, u, a.URLs[id])
		}
	}
	if a.Stats.Ratio <= 0 {
		t.Errorf("ratio %g, expected the artifact to be smaller", a.Stats.Ratio)
	}
}

func TestDeterminism(t *testing.T) {
	doc := loadDoc(t, "companies.json")
	var prev []byte
	for i := 0; i < 5; i++ {
		a, err := Compact(loadDoc(t, "companies.json"))
		if err != nil {
			t.Fatal(err)
		}
		buf, err := a.Encode()
		if err != nil {
			t.Fatal(err)
		}
		if prev != nil && !bytes.Equal(prev, buf) {
			t.Fatalf("run %d produced a different artifact", i)
		}
		prev = buf
	}
	a, err := Compact(doc)
	if err != nil {
		t.Fatal(err)
	}
	f1, err := a.Fingerprint()
	if err != nil {
		t.Fatal(err)
	}
	a2, _ := Compact(doc)
	f2, _ := a2.Fingerprint()
	if f1 != f2 {
		t.Errorf("fingerprints differ: %s %s", f1, f2)
	}
}

func TestStats(t *testing.T) {
	doc := loadDoc(t, "companies.json")
	a := roundTrip(t, doc)
	st := a.Stats
	if st.OriginalSize != doc.EncodedSize() {
		t.Errorf("original size %d, want %d", st.OriginalSize, doc.EncodedSize())
	}
	body, err := a.encodeBody()
	if err != nil {
		t.Fatal(err)
	}
	if st.CompressedSize != len(body) {
		t.Errorf("compressed size %d, want %d", st.CompressedSize, len(body))
	}
	if want := 1 - float64(st.CompressedSize)/float64(st.OriginalSize); st.Ratio != want {
		t.Errorf("ratio %g, want %g", st.Ratio, want)
	}
	if st.Ratio > 1 {
		t.Errorf("ratio %g > 1", st.Ratio)
	}
	if st.URLs != len(a.URLs) || st.Shapes != len(a.Shapes) {
		t.Errorf("stats %+v disagree with tables", st)
	}
	if ratio(0, 10) != 0 || ratio(0, 0) != 0 {
		t.Error("ratio of an empty original should be 0")
	}
	if ratio(100, 25) != 0.75 {
		t.Errorf("ratio(100, 25) = %g", ratio(100, 25))
	}
	empty := roundTrip(t, &atom.Document{})
	if empty.Stats.Ratio > 1 || empty.Stats.OriginalSize != 2 {
		t.Errorf("empty stats %+v", empty.Stats)
	}
}

func TestCompactErrors(t *testing.T) {
	cases := []struct {
		name string
		doc  *atom.Document
		want error
	}{
		{"nil", nil, ErrInvalidInput},
		{"no-subject", &atom.Document{Resources: []atom.Resource{res("", "a", atom.Number(1))}}, ErrInvalidInput},
		{"empty-key", &atom.Document{Resources: []atom.Resource{res("s", "", atom.Number(1))}}, ErrInvalidInput},
		{"repeated-key", &atom.Document{Resources: []atom.Resource{res("s", "a", atom.Number(1), "a", atom.Number(2))}}, ErrInvalidInput},
		{"nil-value", &atom.Document{Resources: []atom.Resource{res("s", "a", nil)}}, ErrUnsupportedValue},
		{"nil-item", &atom.Document{Resources: []atom.Resource{res("s", "a", atom.List{atom.Number(1), nil})}}, ErrUnsupportedValue},
		{"nan", &atom.Document{Resources: []atom.Resource{res("s", "a", atom.Number(math.NaN()))}}, ErrUnsupportedValue},
		{"inf", &atom.Document{Resources: []atom.Resource{res("s", "a", atom.Number(math.Inf(-1)))}}, ErrUnsupportedValue},
		{"late", &atom.Document{Resources: []atom.Resource{res("ok", "a", atom.Number(1)), res("")}}, ErrInvalidInput},
		{"utf8-subject", &atom.Document{Resources: []atom.Resource{res("https://x/\xff", "a", atom.Number(1))}}, ErrInvalidInput},
		{"utf8-key", &atom.Document{Resources: []atom.Resource{res("s", "https://x/p/\xfe", atom.Number(1))}}, ErrInvalidInput},
		{"utf8-string", &atom.Document{Resources: []atom.Resource{res("s", "a", atom.String("\xff"))}}, ErrUnsupportedValue},
		{"utf8-item", &atom.Document{Resources: []atom.Resource{res("s", "a", atom.List{atom.String("ok"), atom.String("a\xc3")})}}, ErrUnsupportedValue},
		{"utf8-ref", &atom.Document{Resources: []atom.Resource{res("s", "a", atom.Ref("https://x/\xfe"))}}, ErrUnsupportedValue},
	}
	for i := range cases {
		a, err := Compact(cases[i].doc)
		if !errors.Is(err, cases[i].want) {
			t.Errorf("%s: got error %v, want %v", cases[i].name, err, cases[i].want)
		}
		if a != nil {
			t.Errorf("%s: got a partial artifact", cases[i].name)
		}
	}
}

// Strings that are not valid UTF-8 cannot survive
// the artifact JSON, so Compact must refuse them
// rather than emit an artifact that fails to parse.
func TestInvalidUTF8(t *testing.T) {
	doc := &atom.Document{Resources: []atom.Resource{
		res("https://x/1", "https://x/p/name", atom.String("\xff")),
		res("https://x/2", "https://x/p/name", atom.String("\xfe")),
	}}
	a, err := Compact(doc)
	if !errors.Is(err, ErrUnsupportedValue) {
		t.Fatalf("got error %v", err)
	}
	if a != nil {
		t.Fatal("got an artifact")
	}

	// valid multi-byte text is kept as-is
	doc.Resources[0].Props[0].Value = atom.String("Zoë \u2028 日本")
	doc.Resources[1].Props[0].Value = atom.String("\U0001F600")
	roundTrip(t, doc)
}

func TestDictionary(t *testing.T) {
	d := NewDictionary()
	c := Compactor{Dict: d, Logf: t.Logf}
	doc1 := &atom.Document{Resources: []atom.Resource{
		res("https://x/1", "https://x/p/name", atom.String("Ann"), "https://x/p/active", atom.Bool(true)),
	}}
	doc2 := &atom.Document{Resources: []atom.Resource{
		res("https://x/2", "https://x/p/name", atom.String("Ann"), "https://x/p/active", atom.Bool(false)),
		res("https://x/3", "https://x/p/name", atom.String("Bea")),
	}}
	a1, err := c.Compact(doc1)
	if err != nil {
		t.Fatal(err)
	}
	a2, err := c.Compact(doc2)
	if err != nil {
		t.Fatal(err)
	}
	// ids stay stable across artifacts
	if !cmp.Equal(a1.URLs, a2.URLs[:len(a1.URLs)]) {
		t.Fatalf("url tables diverge: %v %v", a1.URLs, a2.URLs)
	}
	if a2.Records[0].ShapeID != a1.Records[0].ShapeID {
		t.Errorf("shared shape not reused")
	}
	if a2.Stats.StringsDeduplicated != 1 {
		t.Errorf("expected \"Ann\" to be served from the dictionary; stats %+v", a2.Stats)
	}
	// both artifacts stand alone
	for i, pair := range []struct {
		a   *Artifact
		doc *atom.Document
	}{{a1, doc1}, {a2, doc2}} {
		got, err := Decompress(pair.a)
		if err != nil {
			t.Fatal(err)
		}
		if !pair.doc.Equal(got) {
			t.Errorf("artifact %d: (-want +got):\n%s", i, cmp.Diff(pair.doc, got))
		}
	}
	// a failed compaction leaves the dictionary alone
	urls, shapes, strs := d.URLs(), d.Shapes(), d.Strings()
	bad := &atom.Document{Resources: []atom.Resource{
		res("https://x/4", "https://x/p/other", atom.String("new"), "https://x/p/z", atom.Number(math.NaN())),
	}}
	if _, err := c.Compact(bad); !errors.Is(err, ErrUnsupportedValue) {
		t.Fatalf("got %v", err)
	}
	if d.URLs() != urls || d.Shapes() != shapes || d.Strings() != strs {
		t.Errorf("failed compaction modified the dictionary")
	}
	d.Reset()
	if d.URLs() != 0 || d.Shapes() != 0 || d.Strings() != 0 {
		t.Errorf("Reset left %d urls", d.URLs())
	}
	got, err := Decompress(a1)
	if err != nil || !doc1.Equal(got) {
		t.Errorf("artifact changed after dictionary reset: %v", err)
	}
}

func TestLogf(t *testing.T) {
	var lines []string
	c := Compactor{Logf: func(f string, args ...interface{}) {
		lines = append(lines, fmt.Sprintf(f, args...))
	}}
	if _, err := c.Compact(loadDoc(t, "companies.json")); err != nil {
		t.Fatal(err)
	}
	if len(lines) != 1 {
		t.Fatalf("got %d log lines", len(lines))
	}
	t.Log(lines[0])
}
