package pack_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/wordbank/internal/docstore"
	"github.com/calvinalkan/wordbank/internal/pack"
)

func TestRootDocument_SaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		name string
		doc  pack.RootDocument
		want pack.RootDocument
	}{
		{
			name: "empty catalog",
			doc:  pack.NewRootDocument(),
			want: pack.NewRootDocument(),
		},
		{
			name: "nil packages written as empty array",
			doc:  pack.RootDocument{Version: pack.CurrentVersion},
			want: pack.NewRootDocument(),
		},
		{
			name: "not started and started records",
			doc: pack.RootDocument{Version: pack.CurrentVersion, Packages: []pack.PackageRecord{
				{UUID: "6f1c2b1e-8a61-4a63-9d38-0c1f3c9d2a10", Name: "A#1", Description: "first", Current: pack.NotStarted, Total: 3},
				{UUID: "0b9e4f2a-3c1d-4e5f-8a7b-6c5d4e3f2a1b", Name: "A#2", Current: 2, Total: 3},
				{UUID: "9a8b7c6d-5e4f-4a3b-9c2d-1e0f9a8b7c6d", Name: "B#1", Current: pack.NotStarted, Total: 0},
			}},
		},
		{
			name: "duplicate names kept in order",
			doc: pack.RootDocument{Version: 2, Packages: []pack.PackageRecord{
				{UUID: "6f1c2b1e-8a61-4a63-9d38-0c1f3c9d2a10", Name: "A#1", Current: 0, Total: 1},
				{UUID: "0b9e4f2a-3c1d-4e5f-8a7b-6c5d4e3f2a1b", Name: "A#1", Current: 0, Total: 1},
			}},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store, err := docstore.New(t.TempDir(), docstore.Options{})
			if err != nil {
				t.Fatalf("docstore.New: %v", err)
			}

			if err := docstore.Save(store, pack.DataFile, tt.doc); err != nil {
				t.Fatalf("Save: %v", err)
			}

			got, err := docstore.Load[pack.RootDocument](store, pack.DataFile)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}

			want := tt.want
			if want.Packages == nil {
				want = tt.doc
			}

			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("round trip (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRootDocument_Version(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		raw     string
		want    int
		invalid bool
	}{
		{raw: `1`, want: 1},
		{raw: `1.0`, want: 1},
		{raw: `2e0`, want: 2},
		{raw: `0`, want: 0},
		{raw: `1.5`, invalid: true},
		{raw: `"1"`, invalid: true},
		{raw: `1e40`, invalid: true},
	} {
		var doc pack.RootDocument

		err := doc.UnmarshalJSON([]byte(`{"version":` + tt.raw + `,"packages":[]}`))
		if tt.invalid {
			if !errors.Is(err, pack.ErrSchemaInvalid) {
				t.Errorf("version %s: err=%v, want %v", tt.raw, err, pack.ErrSchemaInvalid)
			}

			continue
		}

		if err != nil {
			t.Errorf("version %s: %v", tt.raw, err)

			continue
		}

		if got := doc.Version; got != tt.want {
			t.Errorf("version %s: got=%d, want=%d", tt.raw, got, tt.want)
		}
	}
}
