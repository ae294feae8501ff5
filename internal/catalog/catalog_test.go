package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"imagearchive/internal/logging"
	"imagearchive/internal/testsupport"
)

func normalizeAndFlatten(t *testing.T, root string, assigner *testsupport.StubAssigner, opts Options) []Record {
	t.Helper()
	if assigner == nil {
		assigner = testsupport.NewStubAssigner()
	}
	tree, err := NewNormalizer(assigner, opts, logging.NewNop()).Normalize(context.Background(), root, false)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	return Flatten(tree)
}

func paths(records []Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r[FieldFilePath])
	}
	return out
}

func TestEndToEndScenario(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "root")
	testsupport.WriteTree(t, root, map[string]string{
		"meta.csv":      "name,Alpha\n",
		"sub/tag.csv":   "name,Beta\n",
		"sub/photo.jpg": testsupport.JPEG,
	})

	records := normalizeAndFlatten(t, root, nil, Options{SkipTagFiles: true})
	if len(records) != 1 {
		t.Fatalf("expected exactly one record, got %d: %#v", len(records), records)
	}
	got := records[0]
	if got["name"] != "Beta" {
		t.Fatalf("expected closer tag file to win, got name=%q", got["name"])
	}
	if got[FieldFilePath] != filepath.Join(root, "sub", "photo.jpg") {
		t.Fatalf("unexpected file_path %q", got[FieldFilePath])
	}
	if got[FieldMediaType] != "image/jpeg" {
		t.Fatalf("unexpected media_type %q", got[FieldMediaType])
	}
	if got[FieldUUID] == "" {
		t.Fatal("expected a uuid on the image record")
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 keys, got %#v", got)
	}

	all := normalizeAndFlatten(t, root, nil, Options{})
	if len(all) != 3 {
		t.Fatalf("expected tag files as leaves by default, got %v", paths(all))
	}
	images := 0
	for _, r := range all {
		if IsImageType(r[FieldMediaType]) {
			images++
		}
	}
	if images != 1 {
		t.Fatalf("expected one image record, got %d", images)
	}
}

func TestOverrideLaw(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root, map[string]string{
		"root.csv":         "a,1\nshared,top\n",
		"child/child.csv":  "a,2\n",
		"child/x.txt":      "x",
		"child/deep/y.txt": "y",
		"other/z.txt":      "z",
		"top.txt":          "t",
	})

	for _, r := range normalizeAndFlatten(t, root, nil, Options{SkipTagFiles: true}) {
		want := "1"
		if strings.HasPrefix(r[FieldFilePath], filepath.Join(root, "child")+string(filepath.Separator)) {
			want = "2"
		}
		if r["a"] != want {
			t.Fatalf("%s: expected a=%s, got %q", r[FieldFilePath], want, r["a"])
		}
		if r["shared"] != "top" {
			t.Fatalf("%s: expected inherited shared=top, got %q", r[FieldFilePath], r["shared"])
		}
	}
}

func TestTagFilesPoolInNameOrder(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root, map[string]string{
		"a.csv":     "k,first\nonly_a,1\n",
		"b.tsv":     "k\tsecond\n",
		"photo.png": testsupport.PNG,
	})
	records := normalizeAndFlatten(t, root, nil, Options{SkipTagFiles: true})
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	if records[0]["k"] != "second" || records[0]["only_a"] != "1" {
		t.Fatalf("unexpected pooled metadata %#v", records[0])
	}
	if records[0][FieldMediaType] != "image/png" {
		t.Fatalf("unexpected media type %q", records[0][FieldMediaType])
	}
}

func TestIntrinsicFieldsShadowInheritedKeys(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root, map[string]string{
		"meta.csv": "media_type,bogus\nfile_path,bogus\n",
		"a.txt":    "hello",
	})
	records := normalizeAndFlatten(t, root, nil, Options{SkipTagFiles: true})
	if records[0][FieldMediaType] != "text/plain" || records[0][FieldFilePath] != filepath.Join(root, "a.txt") {
		t.Fatalf("intrinsic fields must win, got %#v", records[0])
	}
}

func TestLeafCountAndDotfileExclusion(t *testing.T) {
	root := t.TempDir()
	tree := map[string]string{
		"a/1.txt":   "1",
		"a/2.txt":   "2",
		"b/c/3.txt": "3",
		"4.txt":     "4",
		"empty/":    "",
		"tags.csv":  "k,v\n",
	}
	testsupport.WriteTree(t, root, tree)
	before := normalizeAndFlatten(t, root, nil, Options{})
	if len(before) != 5 {
		t.Fatalf("expected one record per file, got %d: %v", len(before), paths(before))
	}

	testsupport.WriteTree(t, root, map[string]string{
		".hidden.txt":        "h",
		"a/.DS_Store":        "junk",
		".git/config":        "x",
		"b/.secret/tags.csv": "k,overridden\n",
		"b/.meta.csv":        "k,overridden\n",
	})
	after := normalizeAndFlatten(t, root, nil, Options{})
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("hidden entries changed output:\nbefore=%v\nafter=%v", before, after)
	}
}

func TestOrderingIsPreOrderByName(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root, map[string]string{
		"b.txt":     "b",
		"a/z.txt":   "z",
		"a/m/n.txt": "n",
		"a/b.txt":   "b",
		"C.txt":     "c",
		"c.txt":     "c",
	})
	want := []string{
		filepath.Join(root, "C.txt"),
		filepath.Join(root, "a", "b.txt"),
		filepath.Join(root, "a", "m", "n.txt"),
		filepath.Join(root, "a", "z.txt"),
		filepath.Join(root, "b.txt"),
		filepath.Join(root, "c.txt"),
	}
	for _, parallelism := range []int{1, 8} {
		got := paths(normalizeAndFlatten(t, root, nil, Options{Parallelism: parallelism}))
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("parallelism %d: order mismatch\nwant=%v\ngot=%v", parallelism, want, got)
		}
	}
}

func TestFlattenIsIdempotent(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root, map[string]string{
		"meta.csv":         "archive.name,Harbour Board\n",
		"box1/tag.tsv":     "document.start_date\t1901\n",
		"box1/p1.jpg":      testsupport.JPEG,
		"box1/p2.png":      testsupport.PNG,
		"box2/p3.jpg":      testsupport.JPEG,
		"box2/notes.txt":   "notes",
		"box2/nested/p4.j": testsupport.JPEG,
	})
	assigner := testsupport.NewStubAssigner()
	first, err := json.Marshal(normalizeAndFlatten(t, root, assigner, Options{Parallelism: 4}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := json.Marshal(normalizeAndFlatten(t, root, assigner, Options{Parallelism: 1}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("expected identical output\nfirst=%s\nsecond=%s", first, second)
	}
}

func TestMalformedTagFileWarnsAndContinues(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root, map[string]string{
		"garbage.csv": string([]byte{0x00, 0x9F, 0x92, 0x96, 0x00, 0xFF, 0xFE}),
		"good.csv":    "k,v\n",
		"a.txt":       "a",
	})
	logPath := filepath.Join(t.TempDir(), "catalog.log")
	logger, err := logging.New(logging.Options{Level: "info", Format: "console", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	tree, err := NewNormalizer(testsupport.NewStubAssigner(), Options{SkipTagFiles: true}, logger).
		Normalize(context.Background(), root, false)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	dir := tree.(*Directory)
	if len(dir.Metadata) != 1 || dir.Metadata["k"] != "v" {
		t.Fatalf("expected only good.csv pairs, got %#v", dir.Metadata)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "event_type=tag_file_undetected_dialect") {
		t.Fatalf("expected dialect warning, got %q", data)
	}
}

func TestEmptyTagFileWarns(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root, map[string]string{
		"blank.csv": "",
		"a.txt":     "a",
	})
	logPath := filepath.Join(t.TempDir(), "catalog.log")
	logger, err := logging.New(logging.Options{Level: "info", Format: "console", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	tree, err := NewNormalizer(nil, Options{SkipTagFiles: true}, logger).Normalize(context.Background(), root, false)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if md := tree.(*Directory).Metadata; len(md) != 0 {
		t.Fatalf("expected no metadata from an empty tag file, got %#v", md)
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "event_type=tag_file_undetected_dialect") {
		t.Fatalf("expected dialect warning for empty tag file, got %q", data)
	}
}

func TestPartiallyParsedTagFileContributesPrefix(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root, map[string]string{
		"meta.csv": "a,1\nb,\"x\"y\nc,3\n",
		"f.txt":    "f",
	})
	records := normalizeAndFlatten(t, root, nil, Options{SkipTagFiles: true})
	if records[0]["a"] != "1" {
		t.Fatalf("expected rows before the malformed line, got %#v", records[0])
	}
	if _, ok := records[0]["c"]; ok {
		t.Fatalf("rows after the malformed line must be ignored, got %#v", records[0])
	}
}

func TestReservedKeyIsDropped(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root, map[string]string{
		"meta.csv": "contents,oops\nkeep,yes\n",
		"f.txt":    "f",
	})
	records := normalizeAndFlatten(t, root, nil, Options{SkipTagFiles: true})
	if _, ok := records[0][ReservedKey]; ok {
		t.Fatalf("reserved key leaked into record %#v", records[0])
	}
	if records[0]["keep"] != "yes" {
		t.Fatalf("expected other keys kept, got %#v", records[0])
	}
}

func TestMintFailureLeavesUUIDAbsent(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root, map[string]string{
		"bad.jpg":  testsupport.JPEG,
		"good.jpg": testsupport.JPEG,
	})
	assigner := testsupport.NewStubAssigner()
	assigner.Fail = map[string]error{"bad.jpg": errors.New("exiftool: file is read-only")}

	records := normalizeAndFlatten(t, root, assigner, Options{})
	if len(records) != 2 {
		t.Fatalf("expected both records, got %d", len(records))
	}
	if _, ok := records[0][FieldUUID]; ok {
		t.Fatalf("expected no uuid on failed mint, got %#v", records[0])
	}
	if records[1][FieldUUID] != testsupport.StubID(filepath.Join(root, "good.jpg"), 0) {
		t.Fatalf("unexpected uuid on good image %#v", records[1])
	}

	tree, err := NewNormalizer(testsupport.FailingAssigner{}, Options{}, nil).Normalize(context.Background(), root, false)
	if err != nil {
		t.Fatalf("failing assigner must not abort the walk: %v", err)
	}
	if stats := Count(tree); stats.Images != 2 || stats.Unidentified != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestOnlyImagesGetIdentifiers(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root, map[string]string{
		"scan.jpg":  testsupport.JPEG,
		"notes.txt": "hello",
	})
	assigner := testsupport.NewStubAssigner()
	records := normalizeAndFlatten(t, root, assigner, Options{})
	if assigner.Calls() != 1 {
		t.Fatalf("expected one assignment, got %d", assigner.Calls())
	}
	if _, ok := records[0][FieldUUID]; ok {
		t.Fatalf("text file must not carry uuid: %#v", records[0])
	}
}

func TestForcePassesThrough(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root, map[string]string{"scan.jpg": testsupport.JPEG})
	assigner := testsupport.NewStubAssigner()
	normalizer := NewNormalizer(assigner, Options{}, nil)

	tree, err := normalizer.Normalize(context.Background(), root, true)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	want := testsupport.StubID(filepath.Join(root, "scan.jpg"), 1)
	if got := Flatten(tree)[0][FieldUUID]; got != want {
		t.Fatalf("expected forced identifier %s, got %s", want, got)
	}
}

func TestIgnoreFileExcludesMatches(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root, map[string]string{
		".catalogignore":    "*.tmp\ndrafts\n",
		"keep.txt":          "k",
		"scratch.tmp":       "s",
		"drafts/x.txt":      "x",
		"box/drafts/y.txt":  "y",
		"box/z.txt":         "z",
		"box/old/cache.tmp": "c",
	})
	got := paths(normalizeAndFlatten(t, root, nil, Options{IgnoreFile: ".catalogignore"}))
	want := []string{filepath.Join(root, "box", "z.txt"), filepath.Join(root, "keep.txt")}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("want %v, got %v", want, got)
	}
}

func TestEmptyDirectory(t *testing.T) {
	root := t.TempDir()
	tree, err := NewNormalizer(nil, Options{}, nil).Normalize(context.Background(), root, false)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	dir, ok := tree.(*Directory)
	if !ok {
		t.Fatalf("expected *Directory, got %T", tree)
	}
	if len(dir.Children) != 0 || len(dir.Metadata) != 0 {
		t.Fatalf("expected empty node, got %#v", dir)
	}
	if records := Flatten(tree); len(records) != 0 {
		t.Fatalf("expected no records, got %v", records)
	}
}

func TestRootFileIsALeaf(t *testing.T) {
	path := filepath.Join(t.TempDir(), "single.jpg")
	testsupport.WriteTree(t, filepath.Dir(path), map[string]string{"single.jpg": testsupport.JPEG})
	records := normalizeAndFlatten(t, path, nil, Options{})
	if len(records) != 1 || records[0][FieldFilePath] != path {
		t.Fatalf("unexpected records %#v", records)
	}
}

func TestMissingRootFails(t *testing.T) {
	_, err := NewNormalizer(nil, Options{}, nil).Normalize(context.Background(), filepath.Join(t.TempDir(), "nope"), false)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestUnlistableDirectoryAbortsWalk(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	root := t.TempDir()
	testsupport.WriteTree(t, root, map[string]string{"locked/a.txt": "a", "b.txt": "b"})
	locked := filepath.Join(root, "locked")
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	_, err := NewNormalizer(nil, Options{Parallelism: 4}, nil).Normalize(context.Background(), root, false)
	if !errors.Is(err, os.ErrPermission) {
		t.Fatalf("expected permission error, got %v", err)
	}
}

func TestParallelWalkReportsStructuralError(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{}
	for i := range 300 {
		files[fmt.Sprintf("b/d%03d/f.txt", i)] = "x"
	}
	testsupport.WriteTree(t, root, files)
	if err := os.MkdirAll(filepath.Join(root, "a"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.Symlink(filepath.Join(root, "missing"), filepath.Join(root, "a", "dangling")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	normalizer := NewNormalizer(nil, Options{Parallelism: 2}, nil)
	for run := range 30 {
		_, err := normalizer.Normalize(context.Background(), root, false)
		if !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("run %d: expected not-exist error, got %v", run, err)
		}
		if errors.Is(err, context.Canceled) {
			t.Fatalf("run %d: structural error surfaced as cancellation: %v", run, err)
		}
	}
}

func TestCancelledContextAborts(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root, map[string]string{"a.txt": "a"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewNormalizer(nil, Options{}, nil).Normalize(ctx, root, false); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTreeJSONShape(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root, map[string]string{
		"meta.csv":   "k,v\n",
		"sub/a.jpg":  testsupport.JPEG,
		"sub/empty/": "",
	})
	tree, err := NewNormalizer(testsupport.NewStubAssigner(), Options{SkipTagFiles: true}, nil).
		Normalize(context.Background(), root, false)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	data, err := json.Marshal(tree)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded struct {
		Path     string            `json:"path"`
		Metadata map[string]string `json:"metadata"`
		Contents []struct {
			Path     string            `json:"path"`
			Contents []map[string]any  `json:"contents"`
			Metadata map[string]string `json:"metadata"`
		} `json:"contents"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	if decoded.Path != root || decoded.Metadata["k"] != "v" || len(decoded.Contents) != 1 {
		t.Fatalf("unexpected root JSON %s", data)
	}
	sub := decoded.Contents[0]
	if len(sub.Contents) != 2 || sub.Contents[0][FieldMediaType] != "image/jpeg" {
		t.Fatalf("unexpected sub JSON %s", data)
	}
	if contents, ok := sub.Contents[1]["contents"].([]any); !ok || len(contents) != 0 {
		t.Fatalf("expected empty directory to render an empty contents array, got %s", data)
	}
}

func TestMergePrecedence(t *testing.T) {
	got := Merge(Metadata{"a": "1", "b": "1"}, nil, Metadata{"b": "2", "c": "2"}, Metadata{"c": "3"})
	want := Metadata{"a": "1", "b": "2", "c": "3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("want %v, got %v", want, got)
	}
	base := Metadata{"a": "1"}
	Merge(base, Metadata{"a": "2"})
	if base["a"] != "1" {
		t.Fatal("Merge must not mutate its inputs")
	}
}
