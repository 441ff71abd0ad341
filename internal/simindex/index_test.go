package simindex_test

import (
	"context"
	"errors"
	"testing"

	"hashreview/internal/services"
	"hashreview/internal/simindex"
	"hashreview/internal/testsupport"
)

func mustOpenIndex(t *testing.T) *simindex.Index {
	t.Helper()
	idx, err := simindex.Open(testsupport.NewConfig(t))
	if err != nil {
		t.Fatalf("simindex.Open: %v", err)
	}
	t.Cleanup(func() {
		idx.Close()
	})
	return idx
}

func mustAdd(t *testing.T, idx *simindex.Index, imageID, algorithm, fingerprint string) *simindex.Entry {
	t.Helper()
	entry, err := idx.Add(context.Background(), simindex.NewEntry{
		ImageID:     imageID,
		Algorithm:   algorithm,
		Fingerprint: fingerprint,
	})
	if err != nil {
		t.Fatalf("Add(%s, %s): %v", imageID, fingerprint, err)
	}
	return entry
}

func TestAddNormalizesAndValidates(t *testing.T) {
	idx := mustOpenIndex(t)
	ctx := context.Background()

	entry := mustAdd(t, idx, "img-1", "PDQ", "FFAA00")
	if entry.Fingerprint != "ffaa00" {
		t.Fatalf("expected lowercase fingerprint, got %q", entry.Fingerprint)
	}
	if entry.Algorithm != "pdq" {
		t.Fatalf("expected normalized algorithm, got %q", entry.Algorithm)
	}

	cases := []simindex.NewEntry{
		{ImageID: "img", Algorithm: "pdq", Fingerprint: ""},
		{ImageID: "img", Algorithm: "pdq", Fingerprint: "abc"},
		{ImageID: "img", Algorithm: "pdq", Fingerprint: "zzzz"},
		{ImageID: "", Algorithm: "pdq", Fingerprint: "ffaa"},
	}
	for _, tc := range cases {
		if _, err := idx.Add(ctx, tc); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("Add(%+v): expected validation error, got %v", tc, err)
		}
	}
}

func TestQueryOrdersByDistance(t *testing.T) {
	idx := mustOpenIndex(t)
	ctx := context.Background()

	// Probe 0x00: distances are the popcounts of the stored bytes.
	mustAdd(t, idx, "img-far", "pdq", "ff")   // distance 8
	mustAdd(t, idx, "img-near", "pdq", "01")  // distance 1
	mustAdd(t, idx, "img-exact", "pdq", "00") // distance 0
	mustAdd(t, idx, "img-mid", "pdq", "07")   // distance 3

	matches, err := idx.Query(ctx, "pdq", "00", 256, 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	want := []string{"img-exact", "img-near", "img-mid", "img-far"}
	if len(matches) != len(want) {
		t.Fatalf("expected %d matches, got %d", len(want), len(matches))
	}
	for i, imageID := range want {
		if matches[i].Entry.ImageID != imageID {
			t.Fatalf("position %d: expected %s, got %s (distance %v)", i, imageID, matches[i].Entry.ImageID, matches[i].Distance)
		}
	}
	for i := 1; i < len(matches); i++ {
		if matches[i-1].Distance > matches[i].Distance {
			t.Fatalf("matches out of order at %d: %v > %v", i, matches[i-1].Distance, matches[i].Distance)
		}
	}
}

func TestQueryTiesKeepInsertionOrder(t *testing.T) {
	idx := mustOpenIndex(t)

	first := mustAdd(t, idx, "img-a", "pdq", "01")
	second := mustAdd(t, idx, "img-b", "pdq", "02")
	if second.ID <= first.ID {
		t.Fatalf("expected increasing entry IDs, got %d then %d", first.ID, second.ID)
	}

	matches, err := idx.Query(context.Background(), "pdq", "00", 256, 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Entry.ImageID != "img-a" || matches[1].Entry.ImageID != "img-b" {
		t.Fatalf("equal distances must keep insertion order: %+v", matches)
	}
}

func TestQueryThresholdInclusive(t *testing.T) {
	idx := mustOpenIndex(t)
	ctx := context.Background()

	mustAdd(t, idx, "img-3bits", "pdq", "07")
	mustAdd(t, idx, "img-8bits", "pdq", "ff")

	matches, err := idx.Query(ctx, "pdq", "00", 3, 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 1 || matches[0].Entry.ImageID != "img-3bits" {
		t.Fatalf("threshold 3 must include distance 3 only: %+v", matches)
	}
}

func TestQueryExactAlgorithmsIgnoreThreshold(t *testing.T) {
	idx := mustOpenIndex(t)
	ctx := context.Background()

	mustAdd(t, idx, "img-same", "md5", "d41d8cd98f00b204e9800998ecf8427e")
	mustAdd(t, idx, "img-close", "md5", "d41d8cd98f00b204e9800998ecf8427f")

	matches, err := idx.Query(ctx, "md5", "d41d8cd98f00b204e9800998ecf8427e", 256, 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("exact algorithms return identical fingerprints only, got %+v", matches)
	}
	if matches[0].Entry.ImageID != "img-same" || matches[0].Distance != 0 {
		t.Fatalf("unexpected exact match: %+v", matches[0])
	}
}

func TestQueryEmptyIndexReturnsEmpty(t *testing.T) {
	idx := mustOpenIndex(t)

	matches, err := idx.Query(context.Background(), "pdq", "00", 256, 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected empty result, got %+v", matches)
	}
}

func TestQuerySkipsIncomparableLengths(t *testing.T) {
	idx := mustOpenIndex(t)

	mustAdd(t, idx, "img-short", "pdq", "00")
	mustAdd(t, idx, "img-long", "pdq", "0000")

	matches, err := idx.Query(context.Background(), "pdq", "00", 256, 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 1 || matches[0].Entry.ImageID != "img-short" {
		t.Fatalf("length-mismatched entries must be skipped: %+v", matches)
	}
}

func TestQueryLimit(t *testing.T) {
	idx := mustOpenIndex(t)

	mustAdd(t, idx, "img-1", "pdq", "00")
	mustAdd(t, idx, "img-2", "pdq", "01")
	mustAdd(t, idx, "img-3", "pdq", "03")

	matches, err := idx.Query(context.Background(), "pdq", "00", 256, 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected limit 2, got %d", len(matches))
	}
	if matches[0].Entry.ImageID != "img-1" || matches[1].Entry.ImageID != "img-2" {
		t.Fatalf("limit must keep the nearest entries: %+v", matches)
	}
}

func TestHasEntriesAndRandomEntry(t *testing.T) {
	idx := mustOpenIndex(t)
	ctx := context.Background()

	has, err := idx.HasEntries(ctx, "pdq")
	if err != nil {
		t.Fatalf("HasEntries: %v", err)
	}
	if has {
		t.Fatal("fresh index must report no entries")
	}
	random, err := idx.RandomEntry(ctx, "pdq")
	if err != nil {
		t.Fatalf("RandomEntry: %v", err)
	}
	if random != nil {
		t.Fatalf("expected nil random entry on empty index, got %+v", random)
	}

	mustAdd(t, idx, "img-1", "pdq", "ffaa")

	has, err = idx.HasEntries(ctx, "pdq")
	if err != nil {
		t.Fatalf("HasEntries: %v", err)
	}
	if !has {
		t.Fatal("expected entries after add")
	}
	if has, err = idx.HasEntries(ctx, "md5"); err != nil || has {
		t.Fatalf("md5 partition must stay empty: has=%v err=%v", has, err)
	}

	random, err = idx.RandomEntry(ctx, "pdq")
	if err != nil {
		t.Fatalf("RandomEntry: %v", err)
	}
	if random == nil || random.ImageID != "img-1" {
		t.Fatalf("unexpected random entry: %+v", random)
	}
}

func TestCount(t *testing.T) {
	idx := mustOpenIndex(t)

	mustAdd(t, idx, "img-1", "pdq", "00")
	mustAdd(t, idx, "img-2", "pdq", "01")
	mustAdd(t, idx, "img-3", "md5", "d41d8cd98f00b204e9800998ecf8427e")

	counts, err := idx.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if counts["pdq"] != 2 || counts["md5"] != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}
