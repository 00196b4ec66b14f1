// Package session runs the generate action for one participant: it resolves
// the trial order, renders every artefact in memory, writes them to the
// output store as a unit and records the session in the archive.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dyluth/hctorder/internal/archive"
	"github.com/dyluth/hctorder/internal/blob"
	"github.com/dyluth/hctorder/internal/logging"
	"github.com/dyluth/hctorder/internal/report"
	"github.com/dyluth/hctorder/pkg/counterbalance"
)

// StampLayout names the artefacts of one session.
const StampLayout = "20060102_150405"

// DefaultDocumentExt is used for the editable report when the template name
// has no extension.
const DefaultDocumentExt = ".Rmd"

// Artefact kinds written per session.
const (
	KindCSV      = "csv"
	KindParams   = "params"
	KindDocument = "document"
)

// Request is the input of one generate action.
type Request struct {
	RawID    string
	Metadata report.Metadata
}

// Artifact is one written output.
type Artifact struct {
	Kind string
	Info blob.Info
}

// Result describes a generate action. When the participant is not in the
// table, Assignment is NotFound and Record and Artifacts are empty.
type Result struct {
	ID         counterbalance.CanonicalID
	Assignment counterbalance.Assignment
	Record     *report.Record
	Artifacts  []Artifact
	// Previous lists sessions already archived for this participant.
	Previous []*archive.Entry
	Archived bool
}

// Found reports whether the participant had an assignment.
func (r *Result) Found() bool {
	return r != nil && r.Assignment.Found()
}

// Service generates sessions against one table, output store and archive.
// It is safe for concurrent use when its collaborators are.
type Service struct {
	provider        *counterbalance.Provider
	store           blob.Store
	archive         archive.Archive
	template        *report.Template
	now             func() time.Time
	location        *time.Location
	logger          *zap.Logger
	experimentOrder string
	dateLayout      string
	newSessionID    func() string
}

// Option configures a Service.
type Option func(*Service)

// WithTemplate sets the editable report template. nil disables the document.
func WithTemplate(t *report.Template) Option {
	return func(s *Service) { s.template = t }
}

// WithArchive sets the archive sessions are recorded in.
func WithArchive(a archive.Archive) Option {
	return func(s *Service) {
		if a != nil {
			s.archive = a
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the zone timestamps are rendered in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithLogger sets the operational logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithExperimentOrder overrides the experiment order label.
func WithExperimentOrder(label string) Option {
	return func(s *Service) { s.experimentOrder = label }
}

// WithDateLayout sets the layout of the document date.
func WithDateLayout(layout string) Option {
	return func(s *Service) { s.dateLayout = layout }
}

// WithSessionIDs replaces the session ID generator.
func WithSessionIDs(next func() string) Option {
	return func(s *Service) { s.newSessionID = next }
}

// New creates a Service. The archive defaults to archive.Nop.
func New(provider *counterbalance.Provider, store blob.Store, opts ...Option) *Service {
	s := &Service{
		provider:   provider,
		store:      store,
		archive:    archive.Nop{},
		now:        time.Now,
		location:   time.Local,
		logger:     zap.NewNop(),
		dateLayout: report.DefaultDateLayout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lookup canonicalizes raw and resolves it against the table. A participant
// missing from the table is a NotFound assignment, not an error.
func (s *Service) Lookup(raw string) (counterbalance.Assignment, error) {
	id, err := counterbalance.Canonicalize(raw)
	if err != nil {
		return counterbalance.Assignment{}, err
	}
	a, err := s.provider.Resolve(id)
	if err != nil {
		return counterbalance.Assignment{}, err
	}
	if t, terr := s.provider.Table(); terr == nil {
		s.logger.Debug("participant resolved",
			zap.String(logging.FieldParticipant, id.String()),
			zap.Bool("found", a.Found()),
			zap.Int(logging.FieldTableRows, t.Len()))
	}
	return a, nil
}

// Generate runs one generate action. Either every artefact is written or
// none is: a failed write removes the artefacts already stored. Archive
// failures are logged and reported through Result.Archived.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	a, err := s.Lookup(req.RawID)
	if err != nil {
		return nil, err
	}
	res := &Result{ID: a.ID(), Assignment: a}
	if !a.Found() {
		return res, nil
	}

	res.Previous, err = s.archive.ForParticipant(ctx, a.ID().String())
	if err != nil {
		s.logger.Warn("failed to read participant history",
			zap.String(logging.FieldParticipant, a.ID().String()), zap.Error(err))
		res.Previous = nil
	}

	opts := []report.Option{report.WithExperimentOrder(s.experimentOrder)}
	if s.newSessionID != nil {
		opts = append(opts, report.WithSessionIDs(s.newSessionID))
	}
	rec, err := report.Synthesize(a, req.Metadata, s.now().In(s.location), opts...)
	if err != nil {
		return nil, err
	}
	out, err := report.Bundle(rec, s.template, s.dateLayout)
	if err != nil {
		return nil, err
	}
	res.Record = &rec

	artifacts, err := s.write(ctx, rec, out)
	if err != nil {
		return nil, err
	}
	res.Artifacts = artifacts

	locations := make([]string, len(artifacts))
	for i, art := range artifacts {
		locations[i] = art.Info.Location
	}
	switch err := s.archive.Record(ctx, archive.FromRecord(rec, locations)); {
	case err == nil:
		res.Archived = true
	case errors.Is(err, archive.ErrNotPublished):
		res.Archived = true
		s.logger.Warn("session archived without live event",
			zap.String(logging.FieldSessionID, rec.SessionID), zap.Error(err))
	default:
		s.logger.Warn("failed to archive session",
			zap.String(logging.FieldSessionID, rec.SessionID), zap.Error(err))
	}

	s.logger.Info("session generated",
		zap.String(logging.FieldParticipant, rec.ID.String()),
		zap.String(logging.FieldSessionID, rec.SessionID),
		zap.String(logging.FieldDriver, string(s.store.Driver())),
		zap.Int("artifacts", len(artifacts)))
	return res, nil
}

type pending struct {
	kind        string
	key         string
	contentType string
	data        []byte
}

// Keys returns the artefact keys for rec by kind. ext is the document
// extension; empty means no document.
func Keys(rec report.Record, ext string) map[string]string {
	base := rec.ID.String() + "/" + rec.ID.String() + "_" + rec.GeneratedAt.Format(StampLayout)
	keys := map[string]string{
		KindCSV:    base + ".csv",
		KindParams: base + "_params.yml",
	}
	if ext != "" {
		keys[KindDocument] = base + ext
	}
	return keys
}

func (s *Service) documentExt() string {
	if s.template == nil {
		return ""
	}
	if ext := filepath.Ext(s.template.Name()); ext != "" {
		return ext
	}
	return DefaultDocumentExt
}

func (s *Service) write(ctx context.Context, rec report.Record, out report.Outputs) ([]Artifact, error) {
	keys := Keys(rec, s.documentExt())
	items := []pending{
		{KindCSV, keys[KindCSV], "text/csv; charset=utf-8", out.CSV},
		{KindParams, keys[KindParams], "application/yaml", out.ParamsYAML},
	}
	if out.Document != nil {
		items = append(items, pending{KindDocument, keys[KindDocument], "text/markdown; charset=utf-8", out.Document})
	}

	meta := map[string]string{
		"participant": rec.ID.String(),
		"session-id":  rec.SessionID,
		"hct-order":   metadataOrder(rec.Order),
	}

	written := make([]Artifact, 0, len(items))
	for _, it := range items {
		info, err := s.store.Put(ctx, it.key, bytes.NewReader(it.data), blob.PutOptions{
			ContentType: it.contentType,
			Metadata:    meta,
		})
		if err != nil {
			s.rollback(ctx, written)
			if errors.Is(err, blob.ErrExists) {
				return nil, fmt.Errorf("artefact %s already exists: %w", it.key, err)
			}
			return nil, fmt.Errorf("failed to write %s: %w", it.key, err)
		}
		s.logger.Debug("artefact written", zap.String(logging.FieldKey, it.key), zap.Int64("size", info.Size))
		written = append(written, Artifact{Kind: it.kind, Info: info})
	}
	return written, nil
}

// rollback deletes written artefacts. It runs even if ctx was cancelled.
func (s *Service) rollback(ctx context.Context, written []Artifact) {
	ctx = context.WithoutCancel(ctx)
	for _, art := range written {
		if _, err := s.store.Delete(ctx, art.Info.Key); err != nil {
			s.logger.Error("failed to remove partial artefact",
				zap.String(logging.FieldKey, art.Info.Key), zap.Error(err))
		}
	}
}

// metadataOrder joins the trial durations with commas. Object metadata
// travels as HTTP headers on S3 and must stay ASCII.
func metadataOrder(order [3]int) string {
	parts := make([]string, len(order))
	for i, d := range order {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}
