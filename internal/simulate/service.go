package simulate

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/chatcc/evalsim/internal/chat"
	"github.com/chatcc/evalsim/internal/observability"
	"github.com/chatcc/evalsim/internal/provider"
	"github.com/chatcc/evalsim/internal/registry"
	"github.com/chatcc/evalsim/internal/store"
)

// Registry is the slice of the prompt registry the service needs.
type Registry interface {
	Pull(ctx context.Context, promptID string) (*registry.Template, error)
}

// Service ties the store, the prompt registry, and the provider
// backends into the simulation flows the gateway exposes.
type Service struct {
	store    store.Store
	registry Registry
	creds    provider.Credentials
	http     *http.Client
	metrics  *observability.Metrics
}

func NewService(st store.Store, reg Registry, creds provider.Credentials, httpClient *http.Client, metrics *observability.Metrics) *Service {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Service{
		store:    st,
		registry: reg,
		creds:    creds,
		http:     httpClient,
		metrics:  metrics,
	}
}

// buildPipeline resolves the prompt template and selects the backend
// for one simulation run.
func (s *Service) buildPipeline(ctx context.Context, promptID, modelName string) (provider.Pipeline, error) {
	tmpl, err := s.registry.Pull(ctx, promptID)
	if err != nil {
		return provider.Pipeline{}, err
	}
	backend, err := provider.New(s.creds, s.http, modelName)
	if err != nil {
		return provider.Pipeline{}, err
	}
	return provider.Pipeline{Template: tmpl, Backend: backend}, nil
}

// Simulate replays an uploaded transcript and returns the resulting
// one.
func (s *Service) Simulate(ctx context.Context, msgs []chat.Message, promptID, modelName string, extraVars map[string]string) ([]chat.Message, error) {
	pipeline, err := s.buildPipeline(ctx, promptID, modelName)
	if err != nil {
		return nil, err
	}
	family, _ := provider.ParseModelName(modelName)

	start := time.Now()
	out, err := Run(ctx, msgs, pipeline, extraVars)
	s.metrics.ObserveSimulation(family, time.Since(start), err)
	if err != nil {
		s.metrics.ProviderErrors.WithLabelValues(family, errorKind(err)).Inc()
		return nil, err
	}
	return out, nil
}

// SimulateConversation replays a stored conversation, appends the
// outcome as a new SimulationResult, and saves the conversation back.
// Load-append-save with overwrite semantics: a concurrent run against
// the same conversation can drop one result.
func (s *Service) SimulateConversation(ctx context.Context, dataset, conversationID, promptID, modelName string, extraVars map[string]string) (chat.SimulationResult, error) {
	convo, err := s.store.GetConversation(ctx, dataset, conversationID)
	if err != nil {
		return chat.SimulationResult{}, err
	}

	out, err := s.Simulate(ctx, convo.Content, promptID, modelName, extraVars)
	if err != nil {
		return chat.SimulationResult{}, err
	}

	result := chat.SimulationResult{
		Time:      time.Now().UTC(),
		PromptID:  promptID,
		Model:     modelName,
		Variables: extraVars,
		Output:    out,
	}
	convo.Results = append(convo.Results, result)
	if err := s.store.SaveConversation(ctx, convo, dataset); err != nil {
		return chat.SimulationResult{}, fmt.Errorf("save simulation result: %w", err)
	}
	return result, nil
}

// BatchFailure names one conversation a batch run could not simulate.
type BatchFailure struct {
	ConversationID string `json:"conversation_id"`
	Error          string `json:"error"`
}

// BatchReport summarizes a simulate-all run over a dataset.
type BatchReport struct {
	Dataset   string         `json:"dataset"`
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Failed    []BatchFailure `json:"failed"`
}

// Progress is called after each conversation of a batch, successful or
// not. err is nil on success.
type Progress func(conversationID string, err error)

// SimulateDataset replays every conversation in the dataset
// sequentially. Results saved before a failure stay saved; failed
// conversations are reported, not retried.
func (s *Service) SimulateDataset(ctx context.Context, dataset, promptID, modelName string, extraVars map[string]string, progress Progress) (BatchReport, error) {
	convos, err := s.store.LoadConversations(ctx, dataset)
	if err != nil {
		return BatchReport{}, fmt.Errorf("load dataset %q: %w", dataset, err)
	}

	report := BatchReport{Dataset: dataset, Total: len(convos), Failed: []BatchFailure{}}
	for _, convo := range convos {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		_, err := s.SimulateConversation(ctx, dataset, convo.ConversationID, promptID, modelName, extraVars)
		if err != nil {
			s.metrics.BatchFailures.Inc()
			report.Failed = append(report.Failed, BatchFailure{
				ConversationID: convo.ConversationID,
				Error:          err.Error(),
			})
		} else {
			report.Succeeded++
		}
		if progress != nil {
			progress(convo.ConversationID, err)
		}
	}
	return report, nil
}

func errorKind(err error) string {
	if provider.IsThrottled(err) {
		return "throttled"
	}
	return "error"
}
