// Package build orchestrates a weaving run: discovery, extraction, parallel
// weaving, validation, output and run state.
package build

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	werrors "github.com/ecspool/weaver/internal/errors"
	"github.com/ecspool/weaver/internal/metadata"
	"github.com/ecspool/weaver/internal/output"
	"github.com/ecspool/weaver/internal/utils"
	"github.com/ecspool/weaver/internal/weave"
)

// System coordinates weaving runs over one input directory.
// Thread-safety: a System runs one operation at a time.
type System struct {
	options   *Options
	logger    *zap.Logger
	extractor *metadata.Extractor
	writer    *output.Writer
}

// NewSystem creates a new build system
func NewSystem(opts *Options, logger *zap.Logger) (*System, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &System{
		options:   opts,
		logger:    logger,
		extractor: metadata.NewExtractor(opts.Convention, logger).WithCache(metadata.NewRecordCache()),
		writer:    output.NewWriter(opts.InputDir, opts.OutputDir, logger),
	}, nil
}

// Options returns the options the system was created with
func (s *System) Options() *Options {
	return s.options
}

// Weave runs the whole pipeline. Nothing is written unless every class has
// been woven and validated; in dry-run mode nothing is written at all. On
// failure the returned report carries the structured errors.
func (s *System) Weave(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: uuid.NewString(), DryRun: s.options.DryRun}
	logger := s.logger.With(zap.String("run_id", report.RunID))

	sources, err := s.readSources(ctx)
	if err != nil {
		return report.fail(err, werrors.PhaseRead, start)
	}
	report.Scanned = len(sources)
	s.options.progress(0, len(sources), "Extracting class metadata...")

	snap, err := s.extractor.Extract(ctx, sources, s.options.Jobs)
	if err != nil {
		return report.fail(err, werrors.PhaseExtract, start)
	}
	logger.Info("extracted metadata",
		zap.Int("classes", snap.Len()),
		zap.Int("pending", len(snap.Pending())))

	results, err := s.weaveAll(ctx, snap, sources)
	if err != nil {
		return report.fail(err, werrors.PhaseWeave, start)
	}

	byPath := make(map[string]*metadata.ClassMetadata, snap.Len())
	for _, meta := range snap.Classes() {
		byPath[meta.Path] = meta
	}
	for _, res := range results {
		meta := byPath[res.Path]
		if res.Woven {
			report.Woven++
		} else {
			report.Unchanged++
		}
		report.Classes = append(report.Classes, ClassReport{
			Class:   res.Class,
			Path:    res.Path,
			Woven:   res.Woven,
			Root:    meta.Root,
			Changes: res.Changes,
		})
	}
	sort.Slice(report.Classes, func(i, j int) bool {
		return report.Classes[i].Class < report.Classes[j].Class
	})

	previous, err := LoadState(s.options.StateDir)
	if err != nil {
		logger.Warn("ignoring unreadable run state", zap.Error(err))
		report.warn("ignoring unreadable run state: %v", err)
		previous = &State{FileHashes: make(map[string]string)}
	}
	configHash := ConfigHash(s.options.Convention)
	inputs := make(map[string]string, len(sources))
	for _, meta := range snap.Classes() {
		inputs[meta.Path] = meta.Hash
	}
	if previous.ConfigHash != configHash {
		previous.FileHashes = map[string]string{}
	}
	report.Changed = previous.Changed(inputs)

	if s.options.DryRun {
		report.Success = true
		report.Duration = time.Since(start)
		logger.Info("dry run complete", zap.Int("woven", report.Woven))
		return report, nil
	}

	s.options.progress(len(results), len(results), "Writing classes...")
	written, err := s.writer.Write(results)
	report.Written = written
	if err != nil {
		return report.fail(err, werrors.PhaseWrite, start)
	}

	state := &State{
		Version:    s.options.Version,
		RunID:      report.RunID,
		ConfigHash: configHash,
		FileHashes: make(map[string]string, len(results)),
		Timestamp:  time.Now().UTC(),
	}
	for _, res := range results {
		if s.options.OutputDir == "" {
			state.FileHashes[res.Path] = metadata.HashData(res.Data)
		} else {
			state.FileHashes[res.Path] = byPath[res.Path].Hash
		}
	}
	if err := state.Save(s.options.StateDir); err != nil {
		logger.Warn("failed to save run state", zap.Error(err))
		report.warn("run state not saved: %v", err)
	}

	report.Success = true
	report.Duration = time.Since(start)
	logger.Info("weave complete",
		zap.Int("scanned", report.Scanned),
		zap.Int("woven", report.Woven),
		zap.Int("written", len(written)),
		zap.Duration("duration", report.Duration))
	return report, nil
}

// weaveAll weaves and validates every source with a bounded worker pool.
// The first failure cancels the remaining work.
func (s *System) weaveAll(ctx context.Context, snap *metadata.Snapshot, sources []metadata.Source) ([]*weave.Result, error) {
	pipeline := weave.NewPipeline(snap, s.logger)
	conv := s.options.Convention

	byPath := make(map[string]*metadata.ClassMetadata, snap.Len())
	for _, meta := range snap.Classes() {
		byPath[meta.Path] = meta
	}

	results := make([]*weave.Result, len(sources))
	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.options.Jobs)
	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			meta, ok := byPath[src.Path]
			if !ok {
				return fmt.Errorf("no metadata for %s", src.Path)
			}
			res, err := pipeline.Weave(meta, src.Data)
			if err != nil {
				return err
			}
			if err := output.Validate(res, meta, conv, src.Data); err != nil {
				return err
			}
			results[i] = res
			s.options.progress(int(done.Add(1)), len(sources), meta.QualifiedName)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Inspect extracts and returns the metadata snapshot without weaving
func (s *System) Inspect(ctx context.Context) (*metadata.Snapshot, error) {
	sources, err := s.readSources(ctx)
	if err != nil {
		return nil, err
	}
	return s.extractor.Extract(ctx, sources, s.options.Jobs)
}

// Verify checks an already-woven tree: no class may still carry the marker
// annotation, a class implementing the marker interface must be pooled, and
// every class whose ancestry reaches the pooled base must declare the
// reset method. Nothing is written.
func (s *System) Verify(ctx context.Context) (*VerifyReport, error) {
	start := time.Now()
	report := &VerifyReport{RunID: uuid.NewString()}
	conv := s.options.Convention

	sources, err := s.readSources(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := s.extractor.Extract(ctx, sources, s.options.Jobs)
	if err != nil {
		return nil, err
	}

	for _, meta := range snap.Classes() {
		report.Checked++
		if meta.Annotated {
			report.Violations = append(report.Violations,
				werrors.NewMarkerObservable(meta.QualifiedName, conv.MarkerAnnotation).WithFile(meta.Path))
			continue
		}
		if !meta.AlreadyPooled {
			if meta.Marked {
				report.Violations = append(report.Violations,
					werrors.NewMarkerObservable(meta.QualifiedName, conv.MarkerInterface).WithFile(meta.Path))
			}
			continue
		}
		report.Pooled++
		if !meta.ResetOverridable() {
			report.Violations = append(report.Violations,
				werrors.NewValidationFailed(meta.QualifiedName,
					fmt.Sprintf("extends %s but does not declare an overridable %s%s", conv.PooledBase, conv.ResetMethod, metadata.ResetDescriptor)).WithFile(meta.Path))
		}
		if n := pooledBaseCount(snap, meta.QualifiedName, conv.PooledBase); n != 1 {
			report.Violations = append(report.Violations,
				werrors.NewValidationFailed(meta.QualifiedName,
					fmt.Sprintf("ancestry reaches %s %d times", conv.PooledBase, n)).WithFile(meta.Path))
		}
	}

	werrors.List(report.Violations).Sort()
	report.Duration = time.Since(start)
	s.logger.Info("verify complete",
		zap.String("run_id", report.RunID),
		zap.Int("checked", report.Checked),
		zap.Int("violations", len(report.Violations)))
	return report, nil
}

// pooledBaseCount counts how often base appears on the declared ancestry of
// name within the snapshot.
func pooledBaseCount(snap *metadata.Snapshot, name, base string) int {
	n := 0
	for i := 0; i <= snap.Len(); i++ {
		meta, ok := snap.Lookup(name)
		if !ok {
			break
		}
		if meta.SuperclassName == base {
			n++
		}
		name = meta.SuperclassName
	}
	return n
}

// readSources discovers and reads every class file under the input directory
func (s *System) readSources(ctx context.Context) ([]metadata.Source, error) {
	files, err := utils.FindClassFiles(s.options.InputDir)
	if err != nil {
		return nil, werrors.NewReadFailed(s.options.InputDir, err)
	}
	if len(files) == 0 {
		return nil, werrors.NewReadFailed(s.options.InputDir, fmt.Errorf("no .class files found"))
	}

	sources := make([]metadata.Source, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.options.Jobs)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return werrors.NewReadFailed(path, err)
			}
			sources[i] = metadata.Source{Path: path, Data: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sources, nil
}
