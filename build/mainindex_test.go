package build

import (
	"context"
	"testing"

	afscgap "github.com/schmidtdse/afscgap-go"
)

func TestParseJoinedPath(t *testing.T) {
	cases := []struct {
		path string
		want afscgap.HaulKey
		ok   bool
	}{
		{"joined/2021_GOA_12345.avro", afscgap.HaulKey{Year: 2021, Survey: "GOA", Haul: 12345}, true},
		{"2021_GOA_12345.avro", afscgap.HaulKey{Year: 2021, Survey: "GOA", Haul: 12345}, true},
		{"joined/not-enough-parts.avro", afscgap.HaulKey{}, false},
		{"joined/abc_GOA_12345.avro", afscgap.HaulKey{}, false},
	}
	for _, c := range cases {
		got, ok := parseJoinedPath(c.path)
		if ok != c.ok {
			t.Errorf("parseJoinedPath(%q) ok = %v, want %v", c.path, ok, c.ok)
			continue
		}
		if ok && got != c.want {
			t.Errorf("parseJoinedPath(%q) = %+v, want %+v", c.path, got, c.want)
		}
	}
}

func TestBuildMainIndex(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	keys := []afscgap.HaulKey{
		{Year: 2021, Survey: "GOA", Haul: 1},
		{Year: 2022, Survey: "NBS", Haul: 2},
	}
	for _, key := range keys {
		encoded, err := afscgap.EncodeObservations(nil)
		if err != nil {
			t.Fatalf("EncodeObservations: %v", err)
		}
		if err := store.Put(ctx, key.JoinedPath(), encoded); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	if err := BuildMainIndex(ctx, store); err != nil {
		t.Fatalf("BuildMainIndex: %v", err)
	}

	data, err := store.Fetch(ctx, "index/main.avro")
	if err != nil {
		t.Fatalf("Fetch main index: %v", err)
	}
	decoded, err := afscgap.DecodeMainIndex(data)
	if err != nil {
		t.Fatalf("DecodeMainIndex: %v", err)
	}
	if len(decoded) != len(keys) {
		t.Fatalf("got %d keys, want %d", len(decoded), len(keys))
	}
}
