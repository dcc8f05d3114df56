package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"vigil-worker-go/internal/config"
	"vigil-worker-go/internal/models"
	"vigil-worker-go/internal/services/frameprocessing"
	"vigil-worker-go/internal/services/gating"
	"vigil-worker-go/internal/services/incidentlog"
	"vigil-worker-go/internal/services/judge"
	"vigil-worker-go/internal/services/messaging"
	"vigil-worker-go/internal/services/pipeline"
	"vigil-worker-go/internal/services/suspicion"
	"vigil-worker-go/internal/services/voice"
)

// ServiceContainer holds all services
type ServiceContainer struct {
	Config       *config.Config
	Messaging    *messaging.Service
	Gate         *gating.Service
	Voice        *voice.Service
	Incidents    *incidentlog.Service
	Pipeline     *pipeline.Service
	FrameProc    *frameprocessing.Service
	subscription []*nats.Subscription
}

// NewServiceContainer wires configuration into the full decision path:
// tracker/suspicion/judge feed the pipeline, the pipeline feeds the gate,
// voice, and the incident log.
func NewServiceContainer(cfg *config.Config) (*ServiceContainer, error) {
	incidents, err := incidentlog.NewService(cfg.IncidentLogPath)
	if err != nil {
		return nil, fmt.Errorf("incident log: %w", err)
	}

	gate := gating.NewService(gating.ParamsFromConfig(cfg))
	voiceSvc := voice.NewService(cfg)
	pipelineSvc := pipeline.NewService(gate, voiceSvc, incidents)

	engine := suspicion.NewService(suspicion.Params{
		CheckoutMemory:    cfg.CheckoutMemory,
		DwellThreshold:    cfg.DwellThreshold,
		TorsoSpikeDelta:   cfg.TorsoSpikeDelta,
		TorsoSpikeSamples: cfg.TorsoSpikeSamples,
		EscalateThreshold: cfg.EscalateThreshold,
	})
	frameProc := frameprocessing.NewService(cfg, engine, judge.Select(cfg), pipelineSvc)

	sc := &ServiceContainer{
		Config:    cfg,
		Gate:      gate,
		Voice:     voiceSvc,
		Incidents: incidents,
		Pipeline:  pipelineSvc,
		FrameProc: frameProc,
	}

	if err := sc.loadZones(); err != nil {
		log.Warn().Err(err).Str("path", cfg.ZonesConfigPath).Msg("Zone configuration not loaded")
	}

	if cfg.NatsEnabled {
		msgSvc, err := messaging.NewService(cfg)
		if err != nil {
			incidents.Shutdown(context.Background())
			return nil, fmt.Errorf("messaging: %w", err)
		}
		sc.Messaging = msgSvc
		pipelineSvc.WithPublisher(msgSvc, cfg.IncidentsSubject)

		if err := sc.subscribe(); err != nil {
			sc.Shutdown(context.Background())
			return nil, fmt.Errorf("subscribe: %w", err)
		}
	}

	return sc, nil
}

// cameraZones is one entry of the zones configuration file
type cameraZones struct {
	CameraID string        `json:"camera_id"`
	Location string        `json:"location"`
	Zones    []models.Zone `json:"zones"`
}

func (sc *ServiceContainer) loadZones() error {
	if sc.Config.ZonesConfigPath == "" {
		return nil
	}
	data, err := os.ReadFile(sc.Config.ZonesConfigPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read zones config: %w", err)
	}

	var cameras []cameraZones
	if err := json.Unmarshal(data, &cameras); err != nil {
		return fmt.Errorf("parse zones config: %w", err)
	}
	for _, cam := range cameras {
		location := cam.Location
		if location == "" {
			location = cam.CameraID
		}
		sc.FrameProc.RegisterCamera(cam.CameraID, location, cam.Zones)
	}

	log.Info().Int("cameras", len(cameras)).Msg("Zone configuration loaded")
	return nil
}

// detectionFrame is the per-frame payload from the upstream detector
type detectionFrame struct {
	CameraID   string                   `json:"camera_id"`
	FrameID    int64                    `json:"frame_id"`
	Timestamp  time.Time                `json:"timestamp"`
	Detections []models.PersonDetection `json:"detections"`
}

func (sc *ServiceContainer) subscribe() error {
	detSub, err := sc.Messaging.QueueSubscribe(sc.Config.DetectionsSubject, "vigil-workers", func(data []byte) {
		var frame detectionFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Warn().Err(err).Msg("Malformed detection frame dropped")
			return
		}
		sc.FrameProc.ProcessFrame(context.Background(), frame.CameraID, frame.Detections, models.FrameMetadata{
			FrameID:   frame.FrameID,
			Timestamp: frame.Timestamp,
			CameraID:  frame.CameraID,
		})
	})
	if err != nil {
		return err
	}
	sc.subscription = append(sc.subscription, detSub)

	evSub, err := sc.Messaging.QueueSubscribe(sc.Config.EventsSubject, "vigil-workers", func(data []byte) {
		var event models.ShopliftingEvent
		if err := json.Unmarshal(data, &event); err != nil {
			log.Warn().Err(err).Msg("Malformed event dropped at boundary")
			return
		}
		sc.Pipeline.Process(context.Background(), &event, nil)
	})
	if err != nil {
		return err
	}
	sc.subscription = append(sc.subscription, evSub)

	log.Info().
		Str("detections_subject", sc.Config.DetectionsSubject).
		Str("events_subject", sc.Config.EventsSubject).
		Msg("NATS subscriptions active")
	return nil
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	for _, sub := range sc.subscription {
		_ = sub.Unsubscribe()
	}

	if sc.Messaging != nil {
		if err := sc.Messaging.Shutdown(ctx); err != nil {
			return err
		}
	}

	if sc.Voice != nil {
		if err := sc.Voice.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("Playback queue did not drain before deadline")
		}
	}

	if sc.Incidents != nil {
		return sc.Incidents.Shutdown(ctx)
	}
	return nil
}
