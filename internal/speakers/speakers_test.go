package speakers

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/codebuildervaibhav/conversate/internal/apperr"
	"github.com/codebuildervaibhav/conversate/internal/logging"
	"github.com/codebuildervaibhav/conversate/internal/storage"
	"github.com/codebuildervaibhav/conversate/internal/types"
)

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.OpenSQLite(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := storage.NewSQLiteCollection[types.Speaker](db, storage.KindSpeakers)
	if err != nil {
		t.Fatal(err)
	}
	avatars := filepath.Join(dir, "avatars")
	return NewService(store, storage.NewLocalStorage(dir), avatars, logging.Nop()), avatars
}

// testPNG is a w x h image, red on the left half and blue on the right
func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{R: 255, A: 255}
			if x >= w/2 {
				c = color.RGBA{B: 255, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestParseCropArea(t *testing.T) {
	area, err := ParseCropArea("100, 80, 10.5, 20")
	if err != nil {
		t.Fatal(err)
	}
	if *area != (CropArea{Width: 100, Height: 80, X: 10.5, Y: 20}) {
		t.Errorf("unexpected area %+v", area)
	}

	if area, err := ParseCropArea(""); area != nil || err != nil {
		t.Errorf("expected no crop for empty input, got %v, %v", area, err)
	}

	for _, bad := range []string{"1,2,3", "1,2,3,4,5", "a,b,c,d", "0,10,0,0"} {
		if _, err := ParseCropArea(bad); apperr.HTTPStatus(err) != 400 {
			t.Errorf("ParseCropArea(%q): expected 400, got %v", bad, err)
		}
	}
}

func TestCropAvatar(t *testing.T) {
	img, err := DecodeImage(bytes.NewReader(testPNG(t, 400, 200)))
	if err != nil {
		t.Fatal(err)
	}

	out := CropAvatar(img, nil)
	if b := out.Bounds(); b.Dx() != AvatarSize || b.Dy() != AvatarSize {
		t.Fatalf("expected %dx%d, got %v", AvatarSize, AvatarSize, b)
	}
	// The centered square spans x 100..300, so both halves survive.
	if r, _, _, _ := out.At(10, 128).RGBA(); r == 0 {
		t.Error("expected red on the left of a centered crop")
	}
	if _, _, b, _ := out.At(245, 128).RGBA(); b == 0 {
		t.Error("expected blue on the right of a centered crop")
	}

	right := CropAvatar(img, &CropArea{Width: 100, Height: 100, X: 250, Y: 50})
	if r, _, b, _ := right.At(128, 128).RGBA(); r != 0 || b == 0 {
		t.Error("expected an all-blue crop from the right half")
	}
}

func TestService_CRUD(t *testing.T) {
	svc, avatars := newTestService(t)
	ctx := context.Background()

	preset, err := svc.Add(ctx, Input{ID: "p1", Name: "Preset", Color: "#fff", PresetAvatar: "fox"})
	if err != nil {
		t.Fatal(err)
	}
	if preset.PresetAvatar != "fox" || preset.CroppedImageURL != nil {
		t.Errorf("unexpected preset speaker %+v", preset)
	}
	if _, err := svc.Add(ctx, Input{ID: "p1", Name: "Dup", Color: "#000"}); !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("expected conflict on duplicate id, got %v", err)
	}

	sp, err := svc.Add(ctx, Input{ID: "s1", Name: "Ann Lee", Color: "#f00", Image: bytes.NewReader(testPNG(t, 300, 300))})
	if err != nil {
		t.Fatalf("add with image: %v", err)
	}
	if sp.CroppedImageURL == nil || *sp.CroppedImageURL != "avatars/AnnLee_s1_cropped.png" {
		t.Fatalf("unexpected cropped url %v", sp.CroppedImageURL)
	}
	if _, err := os.Stat(filepath.Join(avatars, "AnnLee_s1_original.png")); err != nil {
		t.Errorf("expected original avatar on disk: %v", err)
	}

	// Renaming without a new image moves the avatar files.
	updated, err := svc.Update(ctx, "s1", Input{Name: "Ann", Color: "#0f0", CroppedArea: "100,100,0,0"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if *updated.OriginalImageURL != "avatars/Ann_s1_original.png" || *updated.CroppedImageURL != "avatars/Ann_s1_cropped.png" {
		t.Errorf("unexpected urls after rename %v %v", *updated.OriginalImageURL, *updated.CroppedImageURL)
	}
	entries, _ := os.ReadDir(avatars)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if strings.Join(names, ",") != "Ann_s1_cropped.png,Ann_s1_original.png" {
		t.Errorf("unexpected avatar files %v", names)
	}

	list, _ := svc.List(ctx)
	if len(list) != 2 || list[0].ID != "p1" {
		t.Errorf("unexpected list %+v", list)
	}

	if err := svc.Delete(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	entries, _ = os.ReadDir(avatars)
	if len(entries) != 0 {
		t.Errorf("expected avatars removed, got %d files", len(entries))
	}
	if _, err := svc.Get(ctx, "s1"); apperr.HTTPStatus(err) != 404 {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestService_RejectsBadImage(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Add(context.Background(), Input{ID: "x", Name: "X", Color: "#000", Image: strings.NewReader("not an image")})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestSaveCroppedAvatar(t *testing.T) {
	svc, avatars := newTestService(t)
	name, url, err := svc.SaveCroppedAvatar("s9", bytes.NewReader(testPNG(t, 10, 10)))
	if err != nil {
		t.Fatal(err)
	}
	if name != "cropped_s9.png" || url != "avatars/cropped_s9.png" {
		t.Errorf("unexpected name %q url %q", name, url)
	}
	if _, err := os.Stat(filepath.Join(avatars, name)); err != nil {
		t.Error(err)
	}
}
