// Package service orchestrates the pipeline: CSV analysis, batch
// import, XSD/XML artifact generation, validation, and the query
// layer, over one shared record store and parse cache.
package service

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ipvc/tabx/analyze"
	"github.com/ipvc/tabx/config"
	"github.com/ipvc/tabx/errors"
	"github.com/ipvc/tabx/logger"
	"github.com/ipvc/tabx/store"
	"github.com/ipvc/tabx/xmlgen"
	"github.com/ipvc/tabx/xmlvalid"
	"github.com/ipvc/tabx/xquery"
	"github.com/ipvc/tabx/xsd"
)

// Service is the synchronous core invoked by transports. It holds no
// internal goroutines; the only shared mutable state is the per-dataset
// parse cache, which carries its own locking discipline.
type Service struct {
	cfg   *config.Config
	store *store.Store
	cache *xquery.Cache
	log   *zap.SugaredLogger
}

// New wires a service over an opened record store.
func New(cfg *config.Config, st *store.Store) *Service {
	return &Service{
		cfg:   cfg,
		store: st,
		cache: xquery.NewCache(),
		log:   logger.Named("service"),
	}
}

// Store exposes the underlying record store for read-side callers.
func (s *Service) Store() *store.Store { return s.store }

// ImportCSV analyzes and imports one CSV file as a dataset named name
// (derived from the file name when empty). On failure the dataset, if
// it exists, is marked failed with a log entry.
func (s *Service) ImportCSV(ctx context.Context, path, name, description string) (*store.ImportResult, error) {
	if name == "" {
		base := filepath.Base(path)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	result, err := s.importCSV(ctx, path, name, description)
	if err != nil {
		s.log.Errorw("Import failed", "dataset", name, "file", path, "error", err)
		s.store.MarkFailed(name, err.Error())
		return nil, err
	}
	return result, nil
}

func (s *Service) importCSV(ctx context.Context, path, name, description string) (*store.ImportResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read source file")
	}

	analysis, err := analyze.Analyze(data, &analyze.Options{
		SampleRows:       s.cfg.Import.SampleRows,
		SampleValues:     s.cfg.Import.SampleValues,
		FallbackEncoding: s.cfg.Import.FallbackEncoding,
	}, s.log)
	if err != nil {
		return nil, err
	}

	rows, err := analyze.NewRows(bytes.NewReader(data), analysis.Delimiter, analysis.Encoding)
	if err != nil {
		return nil, err
	}

	result, err := s.store.ImportDataset(ctx, store.ImportParams{
		Name:        name,
		Description: description,
		SourceFile:  path,
		Schema:      analysis.Schema,
		BatchSize:   s.cfg.Import.BatchSize,
	}, rows)
	if err != nil {
		return nil, err
	}

	// A fresh record generation makes any cached parse stale.
	s.cache.Invalidate(result.DatasetID)
	return result, nil
}

// GenerateXSD projects the dataset's schema into its validating XSD
// artifact and records the artifact path.
func (s *Service) GenerateXSD(datasetID string) (string, error) {
	ds, err := s.store.GetByID(datasetID)
	if err != nil {
		return "", err
	}

	doc, err := xsd.Generate(ds.Name, ds.Schema)
	if err != nil {
		return "", err
	}

	path, err := s.writeArtifact(s.cfg.Artifacts.XSDDir, ds.Name+".xsd", doc)
	if err != nil {
		return "", err
	}
	if err := s.store.SetArtifacts(ds.ID, ds.XMLPath, path); err != nil {
		return "", err
	}
	s.log.Infow("Generated XSD", "dataset", ds.Name, "path", path)
	return path, nil
}

// GenerateXML serializes up to limit records (all when limit <= 0)
// into the dataset's XML artifact, advances the artifact generation,
// and invalidates the cached parse so the next query re-parses.
func (s *Service) GenerateXML(datasetID string, limit int) (string, error) {
	ds, err := s.store.GetByID(datasetID)
	if err != nil {
		return "", err
	}

	records, err := s.store.Records(ds, limit)
	if err != nil {
		return "", err
	}
	doc, err := xmlgen.Serialize(ds.Name, ds.Schema, records, limit)
	if err != nil {
		return "", err
	}

	path, err := s.writeArtifact(s.cfg.Artifacts.XMLDir, ds.Name+".xml", doc)
	if err != nil {
		return "", err
	}
	if err := s.store.SetArtifacts(ds.ID, path, ds.XSDPath); err != nil {
		return "", err
	}
	if _, err := s.store.BumpGeneration(ds.ID); err != nil {
		return "", err
	}
	s.cache.Invalidate(ds.ID)
	s.log.Infow("Generated XML", "dataset", ds.Name, "path", path, "records", len(records))
	return path, nil
}

// Validate checks the dataset's generated XML against its generated
// XSD. Both artifacts must exist; invalid content is a normal result.
func (s *Service) Validate(datasetID string) (*xmlvalid.Result, error) {
	ds, err := s.store.GetByID(datasetID)
	if err != nil {
		return nil, err
	}
	if ds.XMLPath == "" || ds.XSDPath == "" {
		return nil, errors.NewArtifactMissing("dataset %s has no generated XML/XSD pair", ds.Name)
	}

	xmlDoc, err := os.ReadFile(ds.XMLPath)
	if err != nil {
		return nil, errors.NewArtifactMissing("XML artifact unreadable: %v", err)
	}
	xsdDoc, err := os.ReadFile(ds.XSDPath)
	if err != nil {
		return nil, errors.NewArtifactMissing("XSD artifact unreadable: %v", err)
	}
	return xmlvalid.Validate(xmlDoc, xsdDoc)
}

// ImportLogs returns the dataset's append-only import log, newest
// first.
func (s *Service) ImportLogs(datasetID string) ([]store.LogEntry, error) {
	return s.store.Logs(datasetID)
}

// Delete removes the dataset, its records, its cache entry, and its
// artifact files. Artifact removal is best effort.
func (s *Service) Delete(datasetID string) error {
	ds, err := s.store.GetByID(datasetID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ds.ID); err != nil {
		return err
	}
	s.cache.Drop(ds.ID)
	for _, path := range []string{ds.XMLPath, ds.XSDPath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.log.Warnw("Failed to remove artifact", "path", path, "error", err)
		}
	}
	return nil
}

func (s *Service) writeArtifact(dir, name string, doc []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create artifact directory")
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		return "", errors.Wrap(err, "write artifact")
	}
	return path, nil
}

// tree returns the dataset's cached parse, loading the XML artifact on
// a cache miss.
func (s *Service) tree(ds *store.Dataset) (*xquery.Tree, error) {
	if ds.XMLPath == "" {
		return nil, errors.NewArtifactMissing("dataset %s has no generated XML", ds.Name)
	}
	return s.cache.Tree(ds.ID, ds.Generation, func() ([]byte, error) {
		doc, err := os.ReadFile(ds.XMLPath)
		if err != nil {
			return nil, errors.NewArtifactMissing("XML artifact unreadable: %v", err)
		}
		return doc, nil
	})
}
