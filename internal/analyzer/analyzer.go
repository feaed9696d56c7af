package analyzer

import (
	"context"
	"log/slog"
	"time"

	"lettercast/internal/audio"
	"lettercast/internal/config"
	"lettercast/internal/download"
	"lettercast/internal/logging"
	"lettercast/internal/prompts"
	"lettercast/internal/services"
	"lettercast/internal/services/gemini"
)

// State names one phase of an episode run. Transitions are strictly forward;
// a run that cannot finish moves to StateFailed from whatever phase it was in.
type State string

const (
	StateStart        State = "start"
	StateDownloading  State = "downloading"
	StateTransforming State = "transforming"
	StateSubmitting   State = "submitting"
	StatePrompting    State = "prompting"
	StateAggregating  State = "aggregating"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// StageEvent records when a run entered a state.
type StageEvent struct {
	State State
	At    time.Time
}

// Metadata identifies the episode being analyzed.
type Metadata struct {
	PodcastTitle string
	Title        string
	Description  string
	GUID         string
	Published    time.Time
}

// Result is the structured output of one completed run. MissingFields names
// optional outputs the run could not produce; required outputs missing means
// the run failed instead.
type Result struct {
	Metadata      Metadata
	Takeaways     []string
	Newsletter    string
	Subject       string
	Teaser        string
	MissingFields []string
	Stages        []StageEvent
	SegmentCount  int
	AudioDuration time.Duration
}

// Downloader resolves an episode source to a local audio file.
type Downloader interface {
	Resolve(ctx context.Context, src download.Source, destDir string) (*download.Asset, error)
}

// Transformer normalizes and segments downloaded audio.
type Transformer interface {
	Transform(ctx context.Context, inputPath, workDir string) (*audio.Asset, []audio.Segment, error)
}

// ModelClient is the slice of the model API the analyzer drives.
type ModelClient interface {
	UploadFile(ctx context.Context, stage, path, mimeType string) (*gemini.FileRef, error)
	GenerateContent(ctx context.Context, stage, prompt string, files []gemini.FileRef) (string, error)
}

// Analyzer drives one episode through the full pipeline: download, normalize
// and segment, upload, prompt, aggregate.
type Analyzer struct {
	cfg         *config.Config
	logger      *slog.Logger
	downloader  Downloader
	transformer Transformer
	model       ModelClient
}

// New constructs an analyzer from its collaborators.
func New(cfg *config.Config, logger *slog.Logger, d Downloader, t Transformer, m ModelClient) *Analyzer {
	return &Analyzer{
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "analyzer"),
		downloader:  d,
		transformer: t,
		model:       m,
	}
}

// Run executes the pipeline for one episode. workDir receives all
// intermediate files; the caller owns its cleanup. The returned Result is nil
// on failure, and the error always carries one of the pipeline sentinels.
func (a *Analyzer) Run(ctx context.Context, src download.Source, meta Metadata, workDir string) (*Result, error) {
	result := &Result{Metadata: meta}
	result.advance(StateStart)

	logger := logging.WithContext(ctx, a.logger)
	logger.Info("run started", logging.String("episode", meta.Title))

	fail := func(err error) (*Result, error) {
		result.advance(StateFailed)
		return nil, err
	}

	result.advance(StateDownloading)
	asset, err := a.downloader.Resolve(services.WithStage(ctx, string(StateDownloading)), src, workDir)
	if err != nil {
		return fail(err)
	}
	if err := checkCancelled(ctx, StateDownloading); err != nil {
		return fail(err)
	}

	result.advance(StateTransforming)
	normalized, segments, err := a.transformer.Transform(services.WithStage(ctx, string(StateTransforming)), asset.Path, workDir)
	if err != nil {
		return fail(err)
	}
	result.SegmentCount = len(segments)
	result.AudioDuration = normalized.Duration
	if err := checkCancelled(ctx, StateTransforming); err != nil {
		return fail(err)
	}

	result.advance(StateSubmitting)
	refs, err := a.submitSegments(services.WithStage(ctx, string(StateSubmitting)), segments)
	if err != nil {
		return fail(err)
	}
	if err := checkCancelled(ctx, StateSubmitting); err != nil {
		return fail(err)
	}

	result.advance(StatePrompting)
	responses, missing, err := a.runPromptSequence(services.WithStage(ctx, string(StatePrompting)), meta, refs)
	if err != nil {
		return fail(err)
	}
	result.MissingFields = missing
	if err := checkCancelled(ctx, StatePrompting); err != nil {
		return fail(err)
	}

	result.advance(StateAggregating)
	if err := a.aggregate(result, responses); err != nil {
		return fail(err)
	}

	result.advance(StateDone)
	logger.Info("run complete",
		logging.Int("segments", result.SegmentCount),
		logging.Duration("audio_duration", result.AudioDuration),
		logging.Int("takeaways", len(result.Takeaways)),
	)
	return result, nil
}

func (r *Result) advance(state State) {
	r.Stages = append(r.Stages, StageEvent{State: state, At: time.Now()})
}

// runPromptSequence drives the ordered steps, feeding each response into the
// steps that depend on it. A failed optional step degrades the result; a
// failed required step aborts the run.
func (a *Analyzer) runPromptSequence(ctx context.Context, meta Metadata, refs []gemini.FileRef) (map[string]string, []string, error) {
	responses := make(map[string]string)
	var missing []string

	for _, step := range prompts.Sequence() {
		if err := checkCancelled(ctx, StatePrompting); err != nil {
			return nil, nil, err
		}

		prompt, err := step.Render(prompts.Input{
			Title:       meta.Title,
			Description: meta.Description,
			Prior:       responses,
		})
		if err != nil {
			if step.Required {
				return nil, nil, err
			}
			missing = append(missing, step.ID)
			continue
		}

		var files []gemini.FileRef
		if step.WantsAudio {
			files = refs
		}

		a.logger.Info("submitting prompt", logging.String(logging.FieldStep, step.ID))
		text, err := a.model.GenerateContent(ctx, string(StatePrompting), prompt, files)
		if err != nil {
			if step.Required {
				return nil, nil, err
			}
			a.logger.Warn("optional prompt step failed",
				logging.String(logging.FieldStep, step.ID),
				logging.Error(err),
			)
			missing = append(missing, step.ID)
			continue
		}
		responses[step.ID] = text
	}

	return responses, missing, nil
}

func checkCancelled(ctx context.Context, state State) error {
	if err := ctx.Err(); err != nil {
		return services.Wrap(services.ErrCancelled, string(state), "check cancellation", "run cancelled", err)
	}
	return nil
}
