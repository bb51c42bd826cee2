package core

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/noisemap/internal/logging"
)

const tracerName = "github.com/signalsfoundry/noisemap/core"

// MetricsRecorder receives per-receiver measurements from an evaluation.
// Implementations must be safe for concurrent use.
type MetricsRecorder interface {
	ObserveReceiver(stats ReceiverStats, elapsed time.Duration)
	IncReceiverFailures()
}

// RunResult gathers the results of one evaluation pass, indexed like the
// scene receivers.
type RunResult struct {
	RunID     string           `json:"run_id"`
	Receivers []ReceiverResult `json:"receivers"`
	Triangles []TriangleResult `json:"triangles,omitempty"`
	Stats     ReceiverStats    `json:"stats"`
	Evaluated int              `json:"evaluated"`
	Failed    int              `json:"failed"`
	Canceled  bool             `json:"canceled"`
	Elapsed   time.Duration    `json:"elapsed_ns"`
}

// SimulationEngine evaluates every receiver of a scene on a bounded worker
// pool. Each receiver is independent; results land in receiver-indexed slots
// and the scene, indexes and oracle are only read.
type SimulationEngine struct {
	Engine *PropagationEngine
	// Workers bounds the number of receivers evaluated concurrently.
	// Zero selects runtime.NumCPU().
	Workers int
	Log     logging.Logger
	Metrics MetricsRecorder

	listenersMu       sync.Mutex
	progressListeners []func(done, total int)
}

func NewSimulationEngine(engine *PropagationEngine) *SimulationEngine {
	return &SimulationEngine{
		Engine: engine,
		Log:    logging.Noop(),
	}
}

// RegisterProgressListener adds a callback invoked after each receiver.
// Callbacks are serialised.
func (se *SimulationEngine) RegisterProgressListener(fn func(done, total int)) {
	se.listenersMu.Lock()
	defer se.listenersMu.Unlock()
	se.progressListeners = append(se.progressListeners, fn)
}

func (se *SimulationEngine) notify(done, total int) {
	se.listenersMu.Lock()
	defer se.listenersMu.Unlock()
	for _, fn := range se.progressListeners {
		fn(done, total)
	}
}

// Evaluate computes every receiver of the engine's scene. Cancelling ctx
// stops dispatching new receivers; results already written stay valid and
// are returned together with an error wrapping ctx.Err(). A receiver whose
// oracle fails is reported in its slot and does not stop the others.
func (se *SimulationEngine) Evaluate(ctx context.Context) (*RunResult, error) {
	if se.Engine == nil {
		return nil, fmt.Errorf("%w: simulation engine has no propagation engine", ErrInvalidParameter)
	}
	log := se.Log
	if log == nil {
		log = logging.Noop()
	}
	ctx, log = logging.WithRunLogger(ctx, log)
	runID := logging.RunIDFromContext(ctx)

	scene := se.Engine.Scene()
	receivers := scene.Receivers()
	workers := se.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	cfg := se.Engine.Config()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "Evaluate")
	defer span.End()
	span.SetAttributes(
		attribute.String("run_id", runID),
		attribute.Int("receivers", len(receivers)),
		attribute.Int("sources", len(scene.Sources())),
		attribute.Int("walls", len(scene.Walls())),
		attribute.Int("workers", workers),
		attribute.Int("reflection_order", cfg.ReflectionOrder),
		attribute.Float64("max_distance", cfg.MaxDistance),
	)

	log.Info(ctx, "evaluation started",
		logging.Int("receivers", len(receivers)),
		logging.Int("sources", len(scene.Sources())),
		logging.Int("walls", len(scene.Walls())),
		logging.Int("workers", workers),
		logging.Int("reflection_order", cfg.ReflectionOrder),
	)

	start := time.Now()
	result := &RunResult{
		RunID:     runID,
		Receivers: make([]ReceiverResult, len(receivers)),
	}
	for i, r := range receivers {
		result.Receivers[i] = ReceiverResult{ReceiverID: r.ID, Index: i}
	}

	var (
		mu     sync.Mutex
		done   int
		failed int
	)
	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i := range receivers {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			began := time.Now()
			res, err := se.Engine.ComputeReceiver(ctx, i)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return nil
				}
				res = ReceiverResult{ReceiverID: receivers[i].ID, Index: i, Err: err.Error()}
				log.Warn(ctx, "receiver evaluation failed",
					logging.String("receiver", receivers[i].ID),
					logging.Err(err),
				)
				if se.Metrics != nil {
					se.Metrics.IncReceiverFailures()
				}
			} else if se.Metrics != nil {
				se.Metrics.ObserveReceiver(res.Stats, time.Since(began))
			}
			result.Receivers[i] = res

			mu.Lock()
			done++
			if err != nil {
				failed++
			}
			n := done
			mu.Unlock()
			se.notify(n, len(receivers))
			return nil
		})
	}
	_ = g.Wait()

	result.Failed = failed
	for _, r := range result.Receivers {
		if r.Evaluated {
			result.Evaluated++
			result.Stats.Add(r.Stats)
		}
	}
	result.Triangles = TriangleLevels(scene, result.Receivers)
	result.Elapsed = time.Since(start)

	span.SetAttributes(
		attribute.Int("evaluated", result.Evaluated),
		attribute.Int("failed", result.Failed),
		attribute.Int("free_field_tests", result.Stats.FreeFieldTests),
		attribute.Int("reflection_paths", result.Stats.ReflectionPaths),
	)

	if err := ctx.Err(); err != nil {
		result.Canceled = true
		span.AddEvent("canceled")
		span.SetStatus(codes.Error, err.Error())
		log.Warn(ctx, "evaluation canceled",
			logging.Int("evaluated", result.Evaluated),
			logging.Int("receivers", len(receivers)),
		)
		return result, fmt.Errorf("evaluation canceled after %d of %d receivers: %w", result.Evaluated, len(receivers), err)
	}

	log.Info(ctx, "evaluation finished",
		logging.Int("evaluated", result.Evaluated),
		logging.Int("failed", result.Failed),
		logging.Int("free_field_tests", result.Stats.FreeFieldTests),
		logging.Int("reflection_paths", result.Stats.ReflectionPaths),
		logging.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}
