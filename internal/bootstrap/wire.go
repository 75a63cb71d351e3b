package bootstrap

import (
	"log/slog"
	"os"

	"kidintake/internal/audio"
	"kidintake/internal/config"
	"kidintake/internal/corrections"
	"kidintake/internal/logging"
	"kidintake/internal/ports"
	"kidintake/internal/providers/clinic"
	"kidintake/internal/providers/deepgram"
	"kidintake/internal/store"
	"kidintake/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Intake   *usecase.IntakeController
	Review   *usecase.ReviewDesk
	Patients *usecase.PatientRegistry
	Config   config.Config
	Logger   *slog.Logger
	Close    func() error
}

type recordStore interface {
	ports.RecordStore
	Close() error
}

// Build wires all backend dependencies for the current runtime.
func Build(eventSink ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, os.Stderr)
	if err != nil {
		return Services{}, err
	}

	corrector, err := corrections.Load(cfg.Review.CorrectionsPath, cfg.Review.IterationLimit)
	if err != nil {
		return Services{}, err
	}

	records, err := openStore(cfg.Store)
	if err != nil {
		return Services{}, err
	}

	backend := clinic.NewClient(clinic.Config{
		BaseURL:  cfg.API.BaseURL,
		APIToken: cfg.API.Token,
		Timeout:  cfg.API.Timeout,
	})

	capture := audio.NewExclusive(audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand, ports.AudioConfig{
		SampleRate:  cfg.Audio.SampleRate,
		Channels:    cfg.Audio.Channels,
		InputFormat: cfg.Audio.InputFormat,
		InputDevice: cfg.Audio.InputDevice,
	}))

	intake := usecase.NewIntakeController(
		capture,
		selectTranscriber(cfg.Transcription, backend),
		records,
		eventSink,
		logger,
		usecase.IntakeConfig{
			NameClip:      cfg.Intake.NameClip,
			NameSettle:    cfg.Intake.NameSettle,
			DictationClip: cfg.Intake.DictationClip,
		},
	)

	review := usecase.NewReviewDesk(
		records,
		backend,
		backend,
		backend,
		corrector,
		eventSink,
		logger,
		usecase.ReviewConfig{GuardianID: cfg.Review.GuardianID},
	)

	logger.Info("bootstrap: services ready",
		slog.String("api", cfg.API.BaseURL),
		slog.String("transcription", cfg.Transcription.Provider),
		slog.String("store", cfg.Store.Driver),
		slog.Int("corrections", corrector.Len()),
	)

	return Services{
		Intake:   intake,
		Review:   review,
		Patients: usecase.NewPatientRegistry(backend, cfg.Review.GuardianID, nil),
		Config:   cfg,
		Logger:   logger,
		Close:    records.Close,
	}, nil
}

func selectTranscriber(cfg config.TranscriptionConfig, backend *clinic.Client) ports.Transcriber {
	if cfg.Provider == config.ProviderDeepgram {
		return deepgram.NewProvider(deepgram.Config{
			APIKey:      cfg.Deepgram.APIKey,
			APIBaseURL:  cfg.Deepgram.APIBaseURL,
			Model:       cfg.Deepgram.Model,
			Language:    cfg.Deepgram.Language,
			SmartFormat: cfg.Deepgram.SmartFormat,
		})
	}
	return backend
}

func openStore(cfg config.StoreConfig) (recordStore, error) {
	if cfg.Driver == config.StoreSQLite {
		return store.OpenSQLite(cfg.Path)
	}
	return store.NewMemory(), nil
}
