// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package docket

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/docket/ai"
	"github.com/poiesic/docket/ai/openai"
	"github.com/poiesic/docket/core"
	"github.com/poiesic/docket/extract"
	"github.com/poiesic/docket/ingestion"
	"github.com/poiesic/docket/search"
	"github.com/poiesic/docket/storage/badger"
)

// Service wires the stores, the AI provider, the ingestion coordinator and
// the retrieval engine into one boundary surface. Identity resolution stays
// outside: callers hand in a ready-made PartitionSet.
type Service struct {
	stores      *badger.Stores
	provider    ai.AIProvider
	coordinator *ingestion.Coordinator
	engine      *search.Engine
	synthesizer ai.Synthesizer
	logger      *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	aiConfig      *ai.Config
	provider      ai.AIProvider
	ingestionOpts []ingestion.Option
	searchOpts    []search.Option
}

// WithAIConfig sets the AI service configuration used to build the default
// provider.
func WithAIConfig(config *ai.Config) ServiceOption {
	return func(o *serviceOptions) {
		if config != nil {
			o.aiConfig = config
		}
	}
}

// WithProvider replaces the default OpenAI-compatible provider, for tests or
// alternative backends.
func WithProvider(provider ai.AIProvider) ServiceOption {
	return func(o *serviceOptions) {
		o.provider = provider
	}
}

// WithIngestionOptions forwards options to the ingestion coordinator.
func WithIngestionOptions(opts ...ingestion.Option) ServiceOption {
	return func(o *serviceOptions) {
		o.ingestionOpts = append(o.ingestionOpts, opts...)
	}
}

// WithSearchOptions forwards options to the retrieval engine.
func WithSearchOptions(opts ...search.Option) ServiceOption {
	return func(o *serviceOptions) {
		o.searchOpts = append(o.searchOpts, opts...)
	}
}

// New opens the database at filePath and wires up the full service.
func New(filePath string, opts ...ServiceOption) (*Service, error) {
	options := &serviceOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	stores, err := badger.NewStores(filePath)
	if err != nil {
		return nil, err
	}
	return newService(stores, options)
}

// NewInMemory builds a service on an in-memory database, for tests and
// ephemeral use.
func NewInMemory(opts ...ServiceOption) (*Service, error) {
	options := &serviceOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	stores, err := badger.NewMemoryStores()
	if err != nil {
		return nil, err
	}
	return newService(stores, options)
}

func newService(stores *badger.Stores, options *serviceOptions) (*Service, error) {
	provider := options.provider
	if provider == nil {
		var err error
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			stores.Close()
			return nil, err
		}
	}

	coordinator, err := ingestion.NewCoordinator(
		stores.Documents, stores.Tasks, stores.Vectors, stores.Graph,
		provider, options.ingestionOpts...)
	if err != nil {
		provider.Close()
		stores.Close()
		return nil, err
	}

	engine, err := search.NewEngine(
		stores.Documents, stores.Vectors, stores.Graph,
		provider, options.searchOpts...)
	if err != nil {
		coordinator.Release()
		provider.Close()
		stores.Close()
		return nil, err
	}

	return &Service{
		stores:      stores,
		provider:    provider,
		coordinator: coordinator,
		engine:      engine,
		synthesizer: provider.Synthesizer(),
		logger:      slog.Default(),
	}, nil
}

// Upload registers an uploaded file under the owner partition and queues it
// for ingestion. It returns the new document's ID; processing continues
// asynchronously and is observable through Tasks and Status.
func (s *Service) Upload(ctx context.Context, filename, mimeType string, data []byte, partition core.Partition) (core.ID, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: empty file", core.ErrInvalidDocument)
	}
	if mimeType == "" {
		mimeType = extract.DetectMimeType(filename)
	}

	doc, err := s.stores.Documents.AddDocument(ctx, &core.Document{
		Partition: partition,
		Filename:  filename,
		ByteSize:  int64(len(data)),
		MimeType:  mimeType,
		Status:    core.StatusUploaded,
	})
	if err != nil {
		return 0, err
	}

	if err := s.stores.Documents.PutFile(ctx, doc.Id, data); err != nil {
		return 0, err
	}

	if _, err := s.coordinator.Enqueue(ctx, doc.Id); err != nil {
		return 0, err
	}

	s.logger.Info("document uploaded", "doc", doc.Id, "filename", filename,
		"partition", string(partition))
	return doc.Id, nil
}

// Document returns a document record.
func (s *Service) Document(ctx context.Context, id core.ID) (*core.Document, error) {
	return s.stores.Documents.GetDocument(ctx, id)
}

// Status returns the number of processing tasks per state.
func (s *Service) Status(ctx context.Context) (map[core.TaskState]int, error) {
	return s.stores.Tasks.CountsByState(ctx)
}

// Tasks returns the tasks in the given state, newest first.
func (s *Service) Tasks(ctx context.Context, state core.TaskState) ([]*core.ProcessingTask, error) {
	return s.stores.Tasks.ListByState(ctx, state)
}

// Query returns up to k ranked, cited passages for the question, restricted
// to the caller's partition set.
func (s *Service) Query(ctx context.Context, set core.PartitionSet, question string, k int) ([]core.Passage, error) {
	return s.engine.Query(ctx, set, question, k)
}

// QueryWithMonitor is Query with retrieval observability callbacks.
func (s *Service) QueryWithMonitor(ctx context.Context, set core.PartitionSet, question string, k int, monitor search.SearchMonitor) ([]core.Passage, error) {
	return s.engine.QueryWithMonitor(ctx, set, question, k, monitor)
}

// Ask runs Query and hands the passages to the synthesizer. The returned
// prose is the synthesizer's response, unmodified, alongside the passages it
// was grounded on.
func (s *Service) Ask(ctx context.Context, set core.PartitionSet, question string, k int) (string, []core.Passage, error) {
	passages, err := s.engine.Query(ctx, set, question, k)
	if err != nil {
		return "", nil, err
	}
	if len(passages) == 0 {
		return "", nil, nil
	}

	answer, err := s.synthesizer.Synthesize(ctx, question, passages)
	if err != nil {
		return "", passages, err
	}
	return answer, passages, nil
}

// Remove cascade-deletes a document and everything indexed from it. The
// document's task rows survive as tombstoned audit records.
func (s *Service) Remove(ctx context.Context, docID core.ID) error {
	return s.coordinator.Remove(ctx, docID)
}

// Reprocess re-runs ingestion for a failed or indexed document.
func (s *Service) Reprocess(ctx context.Context, docID core.ID) (string, error) {
	return s.coordinator.Reprocess(ctx, docID)
}

// WaitForIngestion blocks until all queued ingestion work has finished.
func (s *Service) WaitForIngestion() {
	s.coordinator.Wait()
}

// Close drains ingestion and releases every resource.
func (s *Service) Close() error {
	s.coordinator.Wait()
	s.coordinator.Release()

	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing AI provider", "err", err)
	}
	return s.stores.Close()
}
