package metadata

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ecspool/weaver/classfile"
	werrors "github.com/ecspool/weaver/internal/errors"
)

// Extractor reads class files into a Snapshot
type Extractor struct {
	conv   Convention
	logger *zap.Logger
	cache  *RecordCache
}

// NewExtractor creates a new metadata extractor
func NewExtractor(conv Convention, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{conv: conv, logger: logger}
}

// WithCache makes the extractor reuse records of unchanged files across runs
func (e *Extractor) WithCache(cache *RecordCache) *Extractor {
	e.cache = cache
	return e
}

// Extract parses every source in parallel, bounded by jobs, and resolves the
// pooling facts once all of them are read. Malformed input, duplicate class
// names and cyclic inheritance are fatal: no partial snapshot is returned.
func (e *Extractor) Extract(ctx context.Context, sources []Source, jobs int) (*Snapshot, error) {
	if err := e.conv.Validate(); err != nil {
		return nil, err
	}
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}

	records := make([]*ClassMetadata, len(sources))
	var hits atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if meta, ok := e.cache.Get(src.Path, HashData(src.Data)); ok {
				hits.Add(1)
				records[i] = meta
				return nil
			}
			meta, err := e.readClass(src)
			if err != nil {
				return err
			}
			e.cache.Set(meta)
			records[i] = meta
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if e.cache != nil {
		paths := make([]string, len(sources))
		for i, src := range sources {
			paths[i] = src.Path
		}
		e.cache.Retain(paths)
	}

	classes := make(map[string]*ClassMetadata, len(records))
	for _, meta := range records {
		if prev, ok := classes[meta.QualifiedName]; ok {
			return nil, werrors.NewDuplicateClass(meta.QualifiedName, prev.Path, meta.Path)
		}
		classes[meta.QualifiedName] = meta
	}

	snap := newSnapshot(classes, e.conv)
	if err := snap.resolve(); err != nil {
		return nil, err
	}

	e.logger.Debug("extracted class metadata",
		zap.Int("classes", snap.Len()),
		zap.Int("poolable", len(snap.Poolable())),
		zap.Int64("cached", hits.Load()))
	return snap, nil
}

// readClass builds the undecorated record for one class file
func (e *Extractor) readClass(src Source) (*ClassMetadata, error) {
	cf, err := classfile.Parse(src.Data)
	if err != nil {
		return nil, werrors.NewMalformedClass(src.Path, err)
	}

	name, err := cf.Name()
	if err != nil {
		return nil, werrors.NewMalformedClass(src.Path, err)
	}
	super, err := cf.SuperName()
	if err != nil {
		return nil, werrors.NewMalformedClass(src.Path, err)
	}
	ifaces, err := cf.InterfaceNames()
	if err != nil {
		return nil, werrors.NewMalformedClass(src.Path, err)
	}

	annotated, err := cf.HasAnnotation(e.conv.MarkerAnnotation)
	if err != nil {
		return nil, werrors.NewMalformedClass(src.Path, fmt.Errorf("class annotations: %w", err))
	}
	marked := annotated
	if e.conv.MarkerInterface != "" {
		for _, iface := range ifaces {
			if iface == e.conv.MarkerInterface {
				marked = true
			}
		}
	}

	fields := make([]Field, 0, len(cf.Fields))
	for _, f := range cf.Fields {
		if f.AccessFlags&classfile.AccStatic != 0 {
			continue
		}
		fname, fdesc, err := cf.MemberName(f)
		if err != nil {
			return nil, werrors.NewMalformedClass(src.Path, err)
		}
		fields = append(fields, Field{Name: fname, Descriptor: fdesc, AccessFlags: f.AccessFlags})
	}

	var resetAccess uint16
	hasReset := false
	if i := cf.FindMethod(e.conv.ResetMethod, ResetDescriptor); i >= 0 {
		hasReset = true
		resetAccess = cf.Methods[i].AccessFlags
	}

	return &ClassMetadata{
		QualifiedName:  name,
		SuperclassName: super,
		Interfaces:     ifaces,
		Fields:         fields,
		AccessFlags:    cf.AccessFlags,
		HasReset:       hasReset,
		ResetAccess:    resetAccess,
		Path:           src.Path,
		Hash:           HashData(src.Data),
		Annotated:      annotated,
		Marked:         marked,
	}, nil
}

// sortedNames returns the keys of classes in lexical order
func sortedNames(classes map[string]*ClassMetadata) []string {
	names := make([]string, 0, len(classes))
	for name := range classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
