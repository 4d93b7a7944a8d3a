package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"metadata-ingestion/internal/common/logging"
	"metadata-ingestion/internal/ingestion"
	"metadata-ingestion/internal/ometa"
	"metadata-ingestion/internal/source/pipeline"
	"metadata-ingestion/internal/storage"
)

// ErrBelowThreshold is returned when a step's success percentage is under workflowConfig.successThreshold
var ErrBelowThreshold = stderrors.New("workflow success below threshold")

// RunResult summarises one workflow run
type RunResult struct {
	RunID      string
	Source     ingestion.Summary
	Sink       ingestion.Summary
	SuccessPct float64
	Registered []string
	Failures   []ingestion.StackTraceError
}

// RunWorkflow executes the workflow once. It fails when the run cannot start,
// is cancelled, or ends below the success threshold.
func (a *App) RunWorkflow(ctx context.Context) (*RunResult, error) {
	start := time.Now()
	wf := a.Workflow

	ctx = context.WithValue(ctx, logging.ServiceKey, wf.Source.ServiceName)
	run := a.startRun(ctx)
	result := &RunResult{}
	if run != nil {
		result.RunID = run.ID
		ctx = context.WithValue(ctx, logging.RunIDKey, run.ID)
	}
	logger := a.Logger.WithContext(ctx)

	err := a.execute(ctx, result, logger)
	if err == nil && result.SuccessPct < float64(wf.WorkflowConfig.Threshold()) {
		err = fmt.Errorf("%w: %.2f%% < %d%%", ErrBelowThreshold, result.SuccessPct, wf.WorkflowConfig.Threshold())
	}

	a.finishRun(ctx, run, result, err)

	if err != nil {
		logger.Error("Workflow failed", err, elapsed(start))
		return result, err
	}
	logger.Info("Workflow finished", elapsed(start), logging.Float64("success_pct", result.SuccessPct))
	return result, nil
}

func (a *App) execute(ctx context.Context, result *RunResult, logger logging.Logger) error {
	wf := a.Workflow

	client, err := ometa.NewClient(wf.WorkflowConfig.OpenMetadataServerConfig, a.ometaOptions())
	if err != nil {
		return err
	}

	source, err := a.newSource(client)
	if err != nil {
		return err
	}
	defer source.Close()

	sink, err := a.newSink(client)
	if err != nil {
		return err
	}
	defer sink.Close()

	topology, err := pipeline.NewTopology(source, sink, client, logger)
	if err != nil {
		return err
	}

	runErr := topology.Run(ctx)

	result.Source = source.Status().Summary()
	result.Sink = sink.Status().Summary()
	result.SuccessPct = min(source.Status().SuccessPct(), sink.Status().SuccessPct())
	result.Registered = source.RegisteredFQNs()
	result.Failures = append(source.Status().Failures(), sink.Status().Failures()...)

	logSummary(logger, "Source", source.Status())
	logSummary(logger, "Sink", sink.Status())

	return runErr
}

func logSummary(logger logging.Logger, step string, status *ingestion.Status) {
	summary := status.Summary()
	logger.Info(step+" summary",
		logging.Int("records", summary.Records),
		logging.Int("warnings", summary.Warnings),
		logging.Int("filtered", summary.Filtered),
		logging.Int("failures", summary.Failures),
		logging.Float64("success_pct", status.SuccessPct()))

	for _, w := range status.Warnings() {
		logger.Warn(step+" warning", logging.String("warning", w))
	}
	for _, f := range status.Failures() {
		logger.Warn(step+" failure", logging.String("name", f.Name), logging.String("error", f.Error))
		logger.Debug(f.StackTrace)
	}
}

func (a *App) startRun(ctx context.Context) *storage.Run {
	if a.Ledger == nil {
		return nil
	}
	run, err := a.Ledger.StartRun(ctx, a.Workflow.Source.ServiceName, a.Workflow.Source.Type)
	if err != nil {
		a.Logger.Error("Failed to record run start", err)
		return nil
	}
	return run
}

func (a *App) finishRun(ctx context.Context, run *storage.Run, result *RunResult, runErr error) {
	if run == nil {
		return
	}

	run.State = storage.RunStateSuccess
	if runErr != nil {
		run.State = storage.RunStateFailed
		run.Error = runErr.Error()
	}
	run.Records = result.Sink.Records
	run.Warnings = result.Source.Warnings + result.Sink.Warnings
	run.Filtered = result.Source.Filtered
	run.Failures = result.Source.Failures + result.Sink.Failures
	run.SuccessPct = result.SuccessPct
	run.RegisteredFQNs = result.Registered

	// Recorded even when ctx was cancelled.
	if err := a.Ledger.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		a.Logger.Error("Failed to record run end", err, logging.String("run_id", run.ID))
	}
}

// TestConnection checks the source connection without touching the registry
func (a *App) TestConnection(ctx context.Context) (ingestion.TestConnectionResult, error) {
	source, err := a.newSource(nil)
	if err != nil {
		return ingestion.TestConnectionResult{}, err
	}
	defer source.Close()

	result := source.TestConnection(ctx)
	for _, step := range result.Steps {
		if step.Passed {
			a.Logger.Info("Connection step passed", logging.String("step", step.Name), logging.String("message", step.Message))
		} else {
			a.Logger.Warn("Connection step failed", logging.String("step", step.Name), logging.String("message", step.Message))
		}
	}
	return result, nil
}

// History returns the most recent runs from the ledger
func (a *App) History(ctx context.Context, limit int) ([]*storage.Run, error) {
	if a.Ledger == nil {
		return nil, fmt.Errorf("no state store configured: set workflowConfig.stateStore.path or INGEST_STATE_STORE")
	}
	return a.Ledger.ListRuns(ctx, limit)
}
