package ingest

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/solvberg/photoengine/catalog"
	"github.com/solvberg/photoengine/docstore"
	"github.com/solvberg/photoengine/imaging"
	"github.com/solvberg/photoengine/storage"
)

func setupCoordinator(t *testing.T) (*Coordinator, *catalog.Service) {
	t.Helper()
	dir := t.TempDir()
	doc, err := docstore.Open(filepath.Join(dir, "data"), "albums", catalog.NewCollection)
	if err != nil {
		t.Fatalf("open collection document: %v", err)
	}
	albums := catalog.NewService(doc, catalog.WithBcryptCost(bcrypt.MinCost))
	files, err := storage.NewLocal(filepath.Join(dir, "photos"))
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	return &Coordinator{
		Albums:    albums,
		Generator: &imaging.Generator{},
		Files:     files,
		Workers:   2,
	}, albums
}

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}
	return buf.Bytes()
}

func mustCreateAlbum(t *testing.T, albums *catalog.Service) catalog.Album {
	t.Helper()
	a, err := albums.CreateAlbum(catalog.AlbumParams{Title: "Test", Visibility: catalog.VisibilityPublic})
	if err != nil {
		t.Fatalf("CreateAlbum: %v", err)
	}
	return a
}

func TestIngestMissingAlbumFailsFast(t *testing.T) {
	c, _ := setupCoordinator(t)
	_, err := c.Ingest(context.Background(), "missing", []File{{Name: "a.jpg", Data: testJPEG(t, 10, 10)}}, nil)
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("Ingest into missing album = %v, want ErrNotFound", err)
	}
}

func TestIngestEmptyBatch(t *testing.T) {
	c, albums := setupCoordinator(t)
	a := mustCreateAlbum(t, albums)

	res, err := c.Ingest(context.Background(), a.ID, nil, nil)
	if err != nil {
		t.Fatalf("empty batch should succeed, got %v", err)
	}
	if len(res.Registered) != 0 || len(res.Errors) != 0 {
		t.Errorf("empty batch result = %+v, want empty", res)
	}
}

func TestIngestEndToEnd(t *testing.T) {
	c, albums := setupCoordinator(t)
	a := mustCreateAlbum(t, albums)

	res, err := c.Ingest(context.Background(), a.ID, []File{{Name: "shot.jpg", Data: testJPEG(t, 3000, 2000)}}, nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if len(res.Registered) != 1 {
		t.Fatalf("registered = %d, want 1", len(res.Registered))
	}

	p := res.Registered[0]
	if p.URLDisplay == "" || p.URLThumbnail == "" {
		t.Error("display and thumbnail URLs must be set")
	}
	if p.URLDisplay == p.URLOriginal || p.URLThumbnail == p.URLOriginal {
		t.Error("derived variant URLs must differ from the original")
	}
	if !(p.FileSizeThumbnail < p.FileSizeDisplay && p.FileSizeDisplay <= p.FileSizeOriginal) {
		t.Errorf("expected thumbnail < display <= original, got %d / %d / %d",
			p.FileSizeThumbnail, p.FileSizeDisplay, p.FileSizeOriginal)
	}
	if p.FilenameOriginal != "shot.jpg" {
		t.Errorf("FilenameOriginal = %q, want shot.jpg", p.FilenameOriginal)
	}

	// All three variant files must exist on disk with the recorded sizes.
	for _, check := range []struct {
		url  string
		size int64
	}{
		{p.URLOriginal, p.FileSizeOriginal},
		{p.URLDisplay, p.FileSizeDisplay},
		{p.URLThumbnail, p.FileSizeThumbnail},
	} {
		rel := check.url[len("photos/"):]
		info, err := os.Stat(filepath.Join(c.Files.Root(), filepath.FromSlash(rel)))
		if err != nil {
			t.Errorf("variant file %q missing: %v", check.url, err)
			continue
		}
		if info.Size() != check.size {
			t.Errorf("%q size on disk = %d, recorded %d", check.url, info.Size(), check.size)
		}
	}

	got, err := albums.GetAlbum(a.ID)
	if err != nil {
		t.Fatalf("GetAlbum: %v", err)
	}
	if len(got.Photos) != 1 {
		t.Errorf("album photo count = %d, want 1", len(got.Photos))
	}
}

func TestIngestPartialFailure(t *testing.T) {
	c, albums := setupCoordinator(t)
	a := mustCreateAlbum(t, albums)

	files := []File{
		{Name: "good-1.jpg", Data: testJPEG(t, 60, 40)},
		{Name: "broken.jpg", Data: []byte("this is not an image")},
		{Name: "good-2.jpg", Data: testJPEG(t, 40, 60)},
	}
	res, err := c.Ingest(context.Background(), a.ID, files, nil)
	if err != nil {
		t.Fatalf("batch with one bad file must not fail outright: %v", err)
	}

	if len(res.Registered) != 2 {
		t.Errorf("registered = %d, want 2", len(res.Registered))
	}
	if len(res.Errors) != 1 {
		t.Fatalf("errors = %d, want 1", len(res.Errors))
	}
	if res.Errors[0].Filename != "broken.jpg" {
		t.Errorf("failed filename = %q, want broken.jpg", res.Errors[0].Filename)
	}
	if res.Errors[0].Reason == "" {
		t.Error("error reason must be populated")
	}

	got, _ := albums.GetAlbum(a.ID)
	if len(got.Photos) != 2 {
		t.Errorf("album photo count = %d, want exactly 2", len(got.Photos))
	}
}

func TestIngestProgressEvents(t *testing.T) {
	c, albums := setupCoordinator(t)
	a := mustCreateAlbum(t, albums)

	var mu sync.Mutex
	stages := make(map[string][]Stage)
	progress := func(ev Event) {
		mu.Lock()
		stages[ev.Filename] = append(stages[ev.Filename], ev.Stage)
		mu.Unlock()
	}

	files := []File{
		{Name: "ok.jpg", Data: testJPEG(t, 30, 30)},
		{Name: "bad.jpg", Data: []byte("nope")},
	}
	if _, err := c.Ingest(context.Background(), a.ID, files, progress); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	wantOK := []Stage{StageUploading, StageProcessing, StageComplete}
	if got := stages["ok.jpg"]; len(got) != len(wantOK) || got[0] != wantOK[0] || got[1] != wantOK[1] || got[2] != wantOK[2] {
		t.Errorf("ok.jpg stages = %v, want %v", got, wantOK)
	}
	wantBad := []Stage{StageUploading, StageProcessing, StageError}
	if got := stages["bad.jpg"]; len(got) != len(wantBad) || got[2] != wantBad[2] {
		t.Errorf("bad.jpg stages = %v, want %v", got, wantBad)
	}
}

func TestIngestCancelledContext(t *testing.T) {
	c, albums := setupCoordinator(t)
	a := mustCreateAlbum(t, albums)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := c.Ingest(ctx, a.ID, []File{{Name: "late.jpg", Data: testJPEG(t, 20, 20)}}, nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(res.Registered) != 0 {
		t.Errorf("cancelled upload must register nothing, got %d", len(res.Registered))
	}
	if len(res.Errors) != 1 {
		t.Errorf("cancelled file should be reported as an error, got %v", res.Errors)
	}

	got, _ := albums.GetAlbum(a.ID)
	if len(got.Photos) != 0 {
		t.Errorf("album should be untouched after cancellation, has %d photos", len(got.Photos))
	}
}

func TestRemovePhotoFiles(t *testing.T) {
	c, albums := setupCoordinator(t)
	a := mustCreateAlbum(t, albums)

	res, err := c.Ingest(context.Background(), a.ID, []File{{Name: "gone.jpg", Data: testJPEG(t, 20, 20)}}, nil)
	if err != nil || len(res.Registered) != 1 {
		t.Fatalf("Ingest: %v, registered %d", err, len(res.Registered))
	}
	p := res.Registered[0]

	if _, err := albums.DeletePhoto(a.ID, p.ID); err != nil {
		t.Fatalf("DeletePhoto: %v", err)
	}
	c.RemovePhotoFiles(p)

	for _, url := range []string{p.URLOriginal, p.URLDisplay, p.URLThumbnail} {
		rel := url[len("photos/"):]
		if _, err := os.Stat(filepath.Join(c.Files.Root(), filepath.FromSlash(rel))); !os.IsNotExist(err) {
			t.Errorf("variant file %q should be gone, stat err = %v", url, err)
		}
	}
}
