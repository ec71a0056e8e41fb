package store

//go:generate mockgen -source=artifacts.go -destination=artifacts_mock_test.go -package=store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/spboyer/resultsum/internal/nested"
	"golang.org/x/sync/errgroup"
)

// Artifact file names of a persisted run.
const (
	FeaturesArtifact      = "features.json"
	FeatureScoresArtifact = "feature_scores.json"
	ScoresArtifact        = "scores.json"

	compressedSuffix = ".zst"
)

// ErrMissingArtifact is returned by Load when a persisted store is absent.
var ErrMissingArtifact = errors.New("missing artifact")

// MissingArtifactError names the artifact Load could not find.
type MissingArtifactError struct {
	Name     string
	Location string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("missing artifact %s in %s", e.Name, e.Location)
}

func (e *MissingArtifactError) Unwrap() error { return ErrMissingArtifact }

// Codec selects the on-disk encoding of artifacts.
type Codec string

const (
	CodecJSON Codec = "json"
	CodecZstd Codec = "zstd"
)

// ParseCodec validates a codec name.
func ParseCodec(s string) (Codec, error) {
	switch Codec(s) {
	case CodecJSON, "":
		return CodecJSON, nil
	case CodecZstd:
		return CodecZstd, nil
	}
	return "", fmt.Errorf("unknown artifact codec %q: must be json or zstd", s)
}

// ArtifactSource reads persisted artifacts by name. A missing artifact must be
// reported with an error matching fs.ErrNotExist.
type ArtifactSource interface {
	ReadArtifact(ctx context.Context, name string) ([]byte, error)
	Location() string
}

// ArtifactSink writes artifacts by name.
type ArtifactSink interface {
	WriteArtifact(ctx context.Context, name string, data []byte) error
	Location() string
}

// DirSource reads and writes artifacts in a local directory.
type DirSource struct {
	dir string
}

// NewDirSource returns a source rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// Location returns the directory.
func (d *DirSource) Location() string { return d.dir }

// ReadArtifact reads dir/name.
func (d *DirSource) ReadArtifact(_ context.Context, name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(d.dir, name))
}

// WriteArtifact writes dir/name, creating the directory if needed.
func (d *DirSource) WriteArtifact(_ context.Context, name string, data []byte) error {
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(d.dir, name), data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// Save persists the feature, feature-score and score stores.
func (r *Repository) Save(ctx context.Context, sink ArtifactSink) error {
	artifacts := []struct {
		name  string
		store *nested.Store
	}{
		{FeaturesArtifact, r.features},
		{FeatureScoresArtifact, r.featureScores},
		{ScoresArtifact, r.scores},
	}
	for _, a := range artifacts {
		data, err := nested.Marshal(a.store)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", a.name, err)
		}
		name := a.name
		if r.codec == CodecZstd {
			if data, err = compress(data); err != nil {
				return fmt.Errorf("compressing %s: %w", a.name, err)
			}
			name += compressedSuffix
		}
		if err := sink.WriteArtifact(ctx, name, data); err != nil {
			return err
		}
	}
	slog.Info("Saved intermediate results", "location", sink.Location(), "codec", string(r.codec))
	return nil
}

// Load replaces the feature, feature-score and score stores with the
// artifacts found in src. All three must be present; on any failure the
// repository is left untouched.
func (r *Repository) Load(ctx context.Context, src ArtifactSource) error {
	names := []string{FeaturesArtifact, FeatureScoresArtifact, ScoresArtifact}
	loaded := make([]*nested.Store, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			s, err := readStore(gctx, src, name)
			if err != nil {
				return err
			}
			loaded[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	r.features, r.featureScores, r.scores = loaded[0], loaded[1], loaded[2]
	slog.Debug("Loaded intermediate results", "location", src.Location(), "seeds", r.scores.Len())
	return nil
}

func readStore(ctx context.Context, src ArtifactSource, name string) (*nested.Store, error) {
	data, err := src.ReadArtifact(ctx, name)
	if errors.Is(err, fs.ErrNotExist) {
		data, err = src.ReadArtifact(ctx, name+compressedSuffix)
		if err == nil {
			data, err = decompress(data)
			if err != nil {
				return nil, fmt.Errorf("decompressing %s: %w", name, err)
			}
		}
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &MissingArtifactError{Name: name, Location: src.Location()}
		}
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	s, err := nested.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	return s, nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close() //nolint:errcheck
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return io.ReadAll(dec)
}
