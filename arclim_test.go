package arclim

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kr/pretty"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/arclim/download"
	"github.com/spatialmodel/arclim/internal/rastertest"
	"github.com/spatialmodel/arclim/raster"
	_ "github.com/spatialmodel/arclim/raster/ncgrid"
)

const testCatalog = "\ufeffCódigo,Nombre,Unidad\nTX90p,Días cálidos,%\nFD,Días con helada,días\nCDD,Días secos consecutivos,días\n"

func testLog() logrus.FieldLogger {
	l := logrus.New()
	l.Out = os.Stderr
	l.Level = logrus.WarnLevel
	return l
}

// newTestStore writes the test catalog to a new working directory and
// returns a Store for it that reads NetCDF rasters.
func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, DefaultCatalogFile), []byte(testCatalog), 0644); err != nil {
		t.Fatal(err)
	}
	base := []Option{WithLogger(testLog()), WithProgress(nil), WithRasterExt("nc")}
	s, err := New(dir, append(base, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func testRaster(v float32) rastertest.Raster {
	return rastertest.Raster{
		X:         []float64{-71.5, -70.5},
		Y:         []float64{-33.5, -34.5},
		Data:      []float32{v, v + 1, v + 2, -9999},
		FillValue: -9999,
		HasFill:   true,
		CRS:       rastertest.LatLonWKT,
	}
}

// testArchive returns the bytes of an archive laid out like the ARCLIM
// archive: one index stored directly and one inside a nested archive,
// which itself holds a third level archive.
func testArchive(t *testing.T) []byte {
	t.Helper()
	nc := func(v float32) []byte {
		b, err := testRaster(v).NetCDF()
		if err != nil {
			t.Fatal(err)
		}
		return b
	}
	deeper, err := rastertest.ZipBytes([]rastertest.ZipEntry{
		{Name: "FD/FD_future_jja_latlon.nc", Data: nc(30)},
	})
	if err != nil {
		t.Fatal(err)
	}
	nested, err := rastertest.ZipBytes([]rastertest.ZipEntry{
		{Name: "FD/FD_delta_annual_latlon.nc", Data: nc(20)},
		{Name: "deeper.zip", Data: deeper},
	})
	if err != nil {
		t.Fatal(err)
	}
	b, err := rastertest.ZipBytes([]rastertest.ZipEntry{
		{Name: "TX90p/"},
		{Name: "TX90p/TX90p_present_jan_latlon.nc", Data: nc(10)},
		{Name: "FD.zip", Data: nested},
	})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

// archiveServer serves archive and counts the requests it receives.
func archiveServer(t *testing.T, archive []byte) (*httptest.Server, *int32) {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "IndicesClimaticosARCLIM.zip"), archive, 0644); err != nil {
		t.Fatal(err)
	}
	var hits int32
	files := http.FileServer(http.Dir(dir))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		files.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func listFiles(t *testing.T, dir string) []string {
	t.Helper()
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(files)
	return files
}

// countingReader records how many times it is asked to read a file.
type countingReader struct {
	calls int
}

func (r *countingReader) Read(path string) (*raster.Grid, error) {
	r.calls++
	return raster.NewGrid(1, 1, 1, [6]float64{0, 1, 0, 0, 0, 1}), nil
}

func TestNewMissingCatalog(t *testing.T) {
	_, err := New(t.TempDir(), WithLogger(testLog()))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected a not-exist error, got %v", err)
	}
}

func TestNewNoWorkingDir(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected an error")
	}
}

func TestNew(t *testing.T) {
	s := newTestStore(t)
	if n := s.Catalog().Len(); n != 3 {
		t.Errorf("catalog has %d codes, want 3", n)
	}
	if got, want := s.ArchivePath(), filepath.Join(s.Config().WorkingDir, "IndicesClimaticosARCLIM.zip"); got != want {
		t.Errorf("archive path: %s != %s", got, want)
	}
	if got, want := s.ExtractDir(), filepath.Join(s.Config().WorkingDir, "IndicesClimaticosARCLIM"); got != want {
		t.Errorf("extract dir: %s != %s", got, want)
	}
	if s.Config().URL != DefaultURL {
		t.Errorf("url: %s", s.Config().URL)
	}
}

func TestPath(t *testing.T) {
	s := newTestStore(t, WithRasterExt("tif"))
	p, err := s.Path("TX90p", Future, JJA)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(s.ExtractDir(), "TX90p", "TX90p_future_jja_latlon.tif")
	if p != want {
		t.Errorf("path: %s != %s", p, want)
	}

	s = newTestStore(t, WithPathTemplate("{period}/{code}-{month}.{ext}"))
	p, err = s.Path("FD", Delta, August)
	if err != nil {
		t.Fatal(err)
	}
	want = filepath.Join(s.ExtractDir(), "delta", "FD-ago.nc")
	if p != want {
		t.Errorf("templated path: %s != %s", p, want)
	}
}

func TestLoadUnknownCode(t *testing.T) {
	r := new(countingReader)
	s := newTestStore(t, WithReader("nc", r))
	_, err := s.Load("TX99p", Present, January, FormatGrid)
	if !errors.Is(err, ErrUnknownCode) {
		t.Fatalf("expected ErrUnknownCode, got %v", err)
	}
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Param != "code" || ve.Value != "TX99p" {
		t.Errorf("validation error: %#v", err)
	}
	if !strings.Contains(err.Error(), "TX90p") {
		t.Errorf("message does not list the known codes: %v", err)
	}
	if r.calls != 0 {
		t.Errorf("reader called %d times", r.calls)
	}
}

func TestLoadInvalidPeriod(t *testing.T) {
	r := new(countingReader)
	s := newTestStore(t, WithReader("nc", r))
	for _, code := range s.Catalog().Codes() {
		for _, p := range []string{"past", "Present", "historical", ""} {
			_, err := s.LoadString(code, p, "jan", "grid")
			if !errors.Is(err, ErrInvalidPeriod) {
				t.Errorf("%s %q: expected ErrInvalidPeriod, got %v", code, p, err)
			}
			_, err = s.Load(code, Period(p), January, FormatGrid)
			if !errors.Is(err, ErrInvalidPeriod) {
				t.Errorf("%s %q: expected ErrInvalidPeriod, got %v", code, p, err)
			}
		}
	}
	if r.calls != 0 {
		t.Errorf("reader called %d times", r.calls)
	}
}

func TestLoadInvalidMonth(t *testing.T) {
	r := new(countingReader)
	s := newTestStore(t, WithReader("nc", r))
	for _, code := range s.Catalog().Codes() {
		for _, p := range Periods() {
			for _, m := range []string{"aug", "january", "JAN", "13", "spring"} {
				_, err := s.LoadString(code, string(p), m, "grid")
				if !errors.Is(err, ErrInvalidMonthOrSeason) {
					t.Errorf("%s %s %q: expected ErrInvalidMonthOrSeason, got %v", code, p, m, err)
				}
			}
		}
	}
	if r.calls != 0 {
		t.Errorf("reader called %d times", r.calls)
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	r := new(countingReader)
	s := newTestStore(t, WithReader("nc", r))
	for _, f := range []string{"geotiff", "numpy", ""} {
		_, err := s.LoadString("FD", "present", "jan", f)
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("%q: expected ErrUnsupportedFormat, got %v", f, err)
		}
	}
	if _, err := s.Load("FD", Present, January, Format("dataframe")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
	var mre *MissingRasterError
	if _, err := s.Load("FD", Present, January, Format("xarray")); !errors.As(err, &mre) {
		t.Errorf("xarray: expected *MissingRasterError, got %v", err)
	}
	if r.calls != 0 {
		t.Errorf("reader called %d times", r.calls)
	}
}

func TestLoadMissingRaster(t *testing.T) {
	r := new(countingReader)
	s := newTestStore(t, WithReader("nc", r))
	// Every month and season is valid; none has been fetched.
	for _, m := range MonthsAndSeasons() {
		_, err := s.Load("CDD", Future, m, FormatGrid)
		var mre *MissingRasterError
		if !errors.As(err, &mre) {
			t.Fatalf("%s: expected *MissingRasterError, got %v", m, err)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("%s: error should wrap fs.ErrNotExist", m)
		}
		want, _ := s.Path("CDD", Future, m)
		if mre.Path != want || mre.Code != "CDD" || mre.MonthOrSeason != m {
			t.Errorf("%s: %#v", m, mre)
		}
	}
	if r.calls != 0 {
		t.Errorf("reader called %d times", r.calls)
	}
}

func TestLoadReaderOverride(t *testing.T) {
	r := new(countingReader)
	s := newTestStore(t, WithReader(".NC", r))
	p, err := s.Path("FD", Present, Annual)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(p), os.ModePerm); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadString("FD", "present", "annual", "xarray"); err != nil {
		t.Fatal(err)
	}
	if r.calls != 1 {
		t.Errorf("reader called %d times, want 1", r.calls)
	}
}

func TestLoadUnknownExtension(t *testing.T) {
	s := newTestStore(t, WithRasterExt("grib"))
	p, err := s.Path("FD", Present, Annual)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(p), os.ModePerm); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load("FD", Present, Annual, FormatGrid); !errors.Is(err, raster.ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestFetchAndLoad(t *testing.T) {
	srv, _ := archiveServer(t, testArchive(t))
	s := newTestStore(t, WithURL(srv.URL+"/IndicesClimaticosARCLIM.zip"))
	if err := s.Fetch(context.Background()); err != nil {
		t.Fatal(err)
	}

	g, err := s.Load("TX90p", Present, January, FormatGrid)
	if err != nil {
		t.Fatal(err)
	}
	if g.Name != "TX90p_present_jan_latlon.nc" {
		t.Errorf("name: %s", g.Name)
	}
	if shape := g.Shape(); len(shape) != 3 || shape[0] != 1 || shape[1] != 2 || shape[2] != 2 {
		t.Errorf("shape: %v", shape)
	}
	if g.At(0, 1, 0) != 12 {
		t.Errorf("At(0, 1, 0) = %g", g.At(0, 1, 0))
	}
	if st := g.Stats(0); st.Count != 3 || st.Mean != 11 {
		t.Errorf("stats: %+v", st)
	}
	if _, err := g.SpatialReference(); err != nil {
		t.Error(err)
	}

	// Extracted from the nested archive.
	g, err = s.LoadString("FD", "delta", "annual", "grid")
	if err != nil {
		t.Fatal(err)
	}
	if g.At(0, 0, 0) != 20 {
		t.Errorf("nested value: %g", g.At(0, 0, 0))
	}

	// Archives inside the nested archive are not extracted.
	_, err = s.Load("FD", Future, JJA, FormatGrid)
	var mre *MissingRasterError
	if !errors.As(err, &mre) {
		t.Errorf("expected *MissingRasterError for a third level file, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.ExtractDir(), "deeper.zip")); err != nil {
		t.Errorf("third level archive should be left in place: %v", err)
	}

	c, err := readCompletion(s.MarkerPath())
	if err != nil {
		t.Fatal(err)
	}
	if c.Source != s.Config().URL || c.Files != 4 || c.Fingerprint != s.fingerprint() {
		t.Errorf("completion marker: %+v", c)
	}
}

func TestFetchTwice(t *testing.T) {
	srv, hits := archiveServer(t, testArchive(t))
	s := newTestStore(t, WithURL(srv.URL+"/IndicesClimaticosARCLIM.zip"))
	if err := s.Fetch(context.Background()); err != nil {
		t.Fatal(err)
	}
	first := listFiles(t, s.ExtractDir())
	if err := s.Fetch(context.Background()); err != nil {
		t.Fatal(err)
	}
	second := listFiles(t, s.ExtractDir())
	if diff := pretty.Diff(first, second); len(diff) > 0 {
		t.Errorf("file sets differ: %v", diff)
	}
	if n := atomic.LoadInt32(hits); n != 2 {
		t.Errorf("archive downloaded %d times, want 2", n)
	}
	want := []string{
		"FD.zip",
		"FD/FD_delta_annual_latlon.nc",
		"TX90p/TX90p_present_jan_latlon.nc",
		"deeper.zip",
	}
	if diff := pretty.Diff(second, want); len(diff) > 0 {
		t.Errorf("extracted files: %v", diff)
	}
	if _, err := os.Stat(filepath.Join(s.ExtractDir(), "FD", "FD_future_jja_latlon.nc")); !os.IsNotExist(err) {
		t.Error("third level archive should not be extracted")
	}
}

func TestFetchSkipIfComplete(t *testing.T) {
	archive := testArchive(t)
	srv, hits := archiveServer(t, archive)
	sum := sha256.Sum256(archive)
	for _, digest := range []string{"", strings.ToUpper(hex.EncodeToString(sum[:]))} {
		atomic.StoreInt32(hits, 0)
		s := newTestStore(t, WithURL(srv.URL+"/IndicesClimaticosARCLIM.zip"), WithSkipIfComplete(digest))
		for i := 0; i < 3; i++ {
			if err := s.Fetch(context.Background()); err != nil {
				t.Fatal(err)
			}
		}
		if n := atomic.LoadInt32(hits); n != 1 {
			t.Errorf("digest %q: archive downloaded %d times, want 1", digest, n)
		}

		// Removing the extracted archive forces another download.
		if err := os.RemoveAll(s.ExtractDir()); err != nil {
			t.Fatal(err)
		}
		if err := s.Fetch(context.Background()); err != nil {
			t.Fatal(err)
		}
		if n := atomic.LoadInt32(hits); n != 2 {
			t.Errorf("digest %q: archive downloaded %d times, want 2", digest, n)
		}
	}
}

func TestFetchChecksumMismatch(t *testing.T) {
	srv, _ := archiveServer(t, testArchive(t))
	s := newTestStore(t, WithURL(srv.URL+"/IndicesClimaticosARCLIM.zip"), WithSkipIfComplete("deadbeef"))
	err := s.Fetch(context.Background())
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
	if _, err := os.Stat(s.ExtractDir()); !os.IsNotExist(err) {
		t.Error("archive should not be extracted")
	}
	if _, err := os.Stat(s.MarkerPath()); !os.IsNotExist(err) {
		t.Error("completion marker should not be written")
	}
}

func TestFetchNotFound(t *testing.T) {
	srv, _ := archiveServer(t, testArchive(t))
	s := newTestStore(t, WithURL(srv.URL+"/missing.zip"))
	err := s.Fetch(context.Background())
	var se *download.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *download.StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusNotFound {
		t.Errorf("status: %d", se.StatusCode)
	}
	if _, err := os.Stat(s.ExtractDir()); !os.IsNotExist(err) {
		t.Error("extraction directory should not be created")
	}
}

func TestFetchCorruptArchive(t *testing.T) {
	srv, _ := archiveServer(t, []byte("this is not a zip archive"))
	s := newTestStore(t, WithURL(srv.URL+"/IndicesClimaticosARCLIM.zip"))
	if err := s.Fetch(context.Background()); err == nil {
		t.Fatal("expected an error")
	}
	// The partial state is left on disk.
	if _, err := os.Stat(s.ArchivePath()); err != nil {
		t.Errorf("downloaded archive should be kept: %v", err)
	}
}

func TestFetchFailureClearsMarker(t *testing.T) {
	good := testArchive(t)
	var body atomic.Value
	body.Store(good)
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write(body.Load().([]byte))
	}))
	defer srv.Close()
	url := srv.URL + "/IndicesClimaticosARCLIM.zip"

	s := newTestStore(t, WithURL(url))
	if err := s.Fetch(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(s.MarkerPath()); err != nil {
		t.Fatalf("marker not written: %v", err)
	}

	body.Store([]byte("this is not a zip archive"))
	if err := s.Fetch(context.Background()); err == nil {
		t.Fatal("expected an error")
	}
	if _, err := os.Stat(s.MarkerPath()); !os.IsNotExist(err) {
		t.Errorf("marker should be removed by a failed fetch: %v", err)
	}

	body.Store(good)
	skip, err := New(s.Config().WorkingDir, WithLogger(testLog()), WithProgress(nil),
		WithRasterExt("nc"), WithURL(url), WithSkipIfComplete(""))
	if err != nil {
		t.Fatal(err)
	}
	if err := skip.Fetch(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&hits); n != 3 {
		t.Errorf("archive downloaded %d times, want 3", n)
	}
}

func TestFetchSkipIfCompleteUppercaseConfig(t *testing.T) {
	archive := testArchive(t)
	srv, hits := archiveServer(t, archive)
	sum := sha256.Sum256(archive)

	cfg := DefaultConfig("")
	cfg.URL = srv.URL + "/IndicesClimaticosARCLIM.zip"
	cfg.SHA256 = strings.ToUpper(hex.EncodeToString(sum[:]))
	cfg.SkipIfComplete = true
	cfg.RasterExt = "nc"
	cfg.Progress = nil
	cfg.Log = testLog()
	s := newTestStore(t, WithConfig(cfg))
	for i := 0; i < 3; i++ {
		if err := s.Fetch(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if n := atomic.LoadInt32(hits); n != 1 {
		t.Errorf("archive downloaded %d times, want 1", n)
	}
}
