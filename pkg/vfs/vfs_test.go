package vfs

import (
	"errors"
	"testing"
)

func newTestFS(t *testing.T) *FS {
	t.Helper()
	fs := New()
	if err := fs.Init("/home/user/project"); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return fs
}

func TestInit(t *testing.T) {
	fs := New()
	if fs.Hydrated() {
		t.Error("new FS should not be hydrated")
	}
	if err := fs.Init("/home/user/project"); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if !fs.Hydrated() {
		t.Error("FS should be hydrated after Init")
	}
	if fs.Cwd() != "/home/user/project" {
		t.Errorf("Cwd() = %q, want workspace root", fs.Cwd())
	}
	if _, ok := fs.Get("/home/user/project"); !ok {
		t.Error("root entry should exist after Init")
	}

	if err := fs.Init("relative/root"); err == nil {
		t.Error("Init() with relative root should fail")
	}
}

func TestResolve(t *testing.T) {
	fs := newTestFS(t)

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr error
	}{
		{"absolute inside root", "/home/user/project/main.go", "/home/user/project/main.go", nil},
		{"relative to cwd", "src/app.go", "/home/user/project/src/app.go", nil},
		{"dot segments collapse", "/home/user/project/a/../b", "/home/user/project/b", nil},
		{"root itself", "/home/user/project", "/home/user/project", nil},
		{"escape via dotdot", "../../etc/passwd", "", ErrOutsideRoot},
		{"absolute outside root", "/etc/passwd", "", ErrOutsideRoot},
		{"empty path", "", "", ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fs.Resolve(tt.path)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Resolve(%q) error = %v, want %v", tt.path, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.path, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestResolveNotHydrated(t *testing.T) {
	fs := New()
	if _, err := fs.Resolve("/anything"); !errors.Is(err, ErrNotHydrated) {
		t.Errorf("Resolve() on empty FS error = %v, want ErrNotHydrated", err)
	}
}

func TestPut(t *testing.T) {
	fs := newTestFS(t)

	file := &Entry{
		Path:         "/home/user/project/main.go",
		ContentLines: []string{"package main\n", "\n", "func main() {}\n"},
	}
	if err := fs.Put(file); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, ok := fs.Get("/home/user/project/main.go")
	if !ok {
		t.Fatal("entry missing after Put")
	}
	if got.SizeBytes != SizeBytes(file.ContentLines) {
		t.Errorf("SizeBytes = %d, want recomputed %d", got.SizeBytes, SizeBytes(file.ContentLines))
	}
	if got.LastModified == "" {
		t.Error("LastModified should be stamped when empty")
	}

	orphan := &Entry{Path: "/home/user/project/missing/file.go"}
	if err := fs.Put(orphan); !errors.Is(err, ErrParentNotFound) {
		t.Errorf("Put() orphan error = %v, want ErrParentNotFound", err)
	}

	outside := &Entry{Path: "/tmp/evil"}
	if err := fs.Put(outside); !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("Put() outside root error = %v, want ErrOutsideRoot", err)
	}
}

func TestPutDirectoryClearsContent(t *testing.T) {
	fs := newTestFS(t)
	dir := &Entry{
		Path:         "/home/user/project/src",
		IsDirectory:  true,
		ContentLines: []string{"junk\n"},
	}
	if err := fs.Put(dir); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, _ := fs.Get("/home/user/project/src")
	if got.ContentLines != nil || got.SizeBytes != 0 {
		t.Error("directory entries must carry no content")
	}
}

func TestMkdirAll(t *testing.T) {
	fs := newTestFS(t)
	if err := fs.MkdirAll("/home/user/project/a/b/c"); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	for _, p := range []string{
		"/home/user/project/a",
		"/home/user/project/a/b",
		"/home/user/project/a/b/c",
	} {
		e, ok := fs.Get(p)
		if !ok || !e.IsDirectory {
			t.Errorf("MkdirAll missed %s", p)
		}
	}

	// A file blocking the chain is an error.
	fs.Put(&Entry{Path: "/home/user/project/file"})
	if err := fs.MkdirAll("/home/user/project/file/sub"); !errors.Is(err, ErrNotDirectory) {
		t.Errorf("MkdirAll() through file error = %v, want ErrNotDirectory", err)
	}
}

func TestDelete(t *testing.T) {
	fs := newTestFS(t)
	fs.MkdirAll("/home/user/project/dir")
	fs.Put(&Entry{Path: "/home/user/project/dir/file.txt", ContentLines: []string{"x\n"}})

	if err := fs.Delete("/home/user/project/dir"); !errors.Is(err, ErrDirectoryNotEmpty) {
		t.Errorf("Delete() non-empty dir error = %v, want ErrDirectoryNotEmpty", err)
	}
	if err := fs.Delete("/home/user/project/dir/file.txt"); err != nil {
		t.Fatalf("Delete() file error = %v", err)
	}
	if err := fs.Delete("/home/user/project/dir"); err != nil {
		t.Fatalf("Delete() empty dir error = %v", err)
	}
	if err := fs.Delete("/home/user/project/gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() missing error = %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	fs := newTestFS(t)
	fs.MkdirAll("/home/user/project/src")
	fs.Put(&Entry{Path: "/home/user/project/b.go", ContentLines: []string{"b\n"}})
	fs.Put(&Entry{Path: "/home/user/project/a.go", ContentLines: []string{"a\n"}})
	fs.Put(&Entry{Path: "/home/user/project/src/deep.go", ContentLines: []string{"d\n"}})

	children, err := fs.List("/home/user/project")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{
		"/home/user/project/a.go",
		"/home/user/project/b.go",
		"/home/user/project/src",
	}
	if len(children) != len(want) {
		t.Fatalf("List() returned %d entries, want %d", len(children), len(want))
	}
	for i, e := range children {
		if e.Path != want[i] {
			t.Errorf("List()[%d] = %s, want %s", i, e.Path, want[i])
		}
	}

	if _, err := fs.List("/home/user/project/a.go"); !errors.Is(err, ErrNotDirectory) {
		t.Errorf("List() on file error = %v, want ErrNotDirectory", err)
	}
	if _, err := fs.List("/home/user/project/none"); !errors.Is(err, ErrNotFound) {
		t.Errorf("List() missing error = %v, want ErrNotFound", err)
	}
}

func TestSetCwd(t *testing.T) {
	fs := newTestFS(t)
	fs.MkdirAll("/home/user/project/sub")
	fs.Put(&Entry{Path: "/home/user/project/f", ContentLines: []string{"x\n"}})

	if err := fs.SetCwd("sub"); err != nil {
		t.Fatalf("SetCwd() error = %v", err)
	}
	if fs.Cwd() != "/home/user/project/sub" {
		t.Errorf("Cwd() = %q after SetCwd", fs.Cwd())
	}
	if err := fs.SetCwd("/home/user/project/f"); !errors.Is(err, ErrNotDirectory) {
		t.Errorf("SetCwd() on file error = %v, want ErrNotDirectory", err)
	}
	if err := fs.SetCwd("/home/user/project/none"); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetCwd() missing error = %v, want ErrNotFound", err)
	}
}

func TestSnapshotRestore(t *testing.T) {
	fs := newTestFS(t)
	fs.Put(&Entry{Path: "/home/user/project/keep.txt", ContentLines: []string{"v1\n"}})

	snap := fs.Snapshot()

	fs.Put(&Entry{Path: "/home/user/project/keep.txt", ContentLines: []string{"v2\n"}})
	fs.Put(&Entry{Path: "/home/user/project/new.txt", ContentLines: []string{"n\n"}})

	fs.Restore(snap)

	got, ok := fs.Get("/home/user/project/keep.txt")
	if !ok || got.ContentLines[0] != "v1\n" {
		t.Error("Restore did not roll back modified content")
	}
	if _, ok := fs.Get("/home/user/project/new.txt"); ok {
		t.Error("Restore did not drop entries created after the snapshot")
	}

	// The snapshot itself must be isolated from later mutations.
	got.ContentLines[0] = "mutated\n"
	fs.Restore(snap)
	again, _ := fs.Get("/home/user/project/keep.txt")
	if again.ContentLines[0] != "v1\n" {
		t.Error("Snapshot shares line slices with live entries")
	}
}

func TestRestoreResetsDanglingCwd(t *testing.T) {
	fs := newTestFS(t)
	snap := fs.Snapshot()
	fs.MkdirAll("/home/user/project/tmp")
	fs.SetCwd("/home/user/project/tmp")

	fs.Restore(snap)
	if fs.Cwd() != fs.Root() {
		t.Errorf("Cwd() = %q after restore removed it, want root", fs.Cwd())
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"single no newline", "abc", []string{"abc"}},
		{"single with newline", "abc\n", []string{"abc\n"}},
		{"multiple", "a\nb\nc", []string{"a\n", "b\n", "c"}},
		{"blank lines kept", "a\n\nb\n", []string{"a\n", "\n", "b\n"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitLines(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("SplitLines(%q) = %q, want %q", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("SplitLines(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNormalizeLines(t *testing.T) {
	got := NormalizeLines([]string{"a", "b"}, true)
	if got[0] != "a\n" || got[1] != "b\n" {
		t.Errorf("NormalizeLines with trailing newline = %q", got)
	}
	got = NormalizeLines([]string{"a", "b"}, false)
	if got[0] != "a\n" || got[1] != "b" {
		t.Errorf("NormalizeLines without trailing newline = %q", got)
	}
	if NormalizeLines(nil, true) != nil {
		t.Error("NormalizeLines(nil) should be nil")
	}
}
