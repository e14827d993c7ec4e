package main

import (
	"context"
	"database/sql"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/roastarena/roastarena/go/internal/ai"
	"github.com/roastarena/roastarena/go/internal/ai/openai"
	"github.com/roastarena/roastarena/go/internal/game/events"
	"github.com/roastarena/roastarena/go/internal/game/orchestrator"
	"github.com/roastarena/roastarena/go/internal/game/round"
	"github.com/roastarena/roastarena/go/internal/game/submission"
	"github.com/roastarena/roastarena/go/internal/game/timer"
	"github.com/roastarena/roastarena/go/internal/gateway"
	"github.com/roastarena/roastarena/go/internal/treasury"
	"github.com/roastarena/roastarena/go/internal/treasury/eth"
)

type Services struct {
	Orchestrator *orchestrator.Orchestrator
	Gateway      *gateway.Service
	NATS         *events.NATSPublisher
}

func setupServices(ctx context.Context, database *sql.DB, config *Config) (*Services, error) {
	// Wire up dependency injection chain
	// Database layer → Repository layer → App layer → Orchestrator → Gateway

	roundRepo := round.NewRepository(database)
	subRepo := submission.NewRepository(database)

	tr := setupTreasury(ctx, config)
	judge := setupJudge(config)
	characters := setupCharacters(config)

	cm := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	nats := setupNATS()
	var bus events.BusPublisher
	if nats != nil {
		bus = nats
	}
	emitter := events.NewEmitter(cm, bus)

	roundApp := round.NewManager(roundRepo, subRepo, characters, judge, tr, emitter, round.Config{
		DefaultSettings: config.RoundSettings(),
		JudgeTimeout:    config.JudgeTimeout(),
		JudgeEnabled:    config.Judge.Enabled && judge != nil,
	})
	subApp := submission.NewManager(subRepo, roundRepo, tr, emitter, submission.PaymentMode(config.Payment.Mode))

	clock := clockwork.NewRealClock()
	timers := timer.NewManager(clock)
	orch := orchestrator.New(roundApp, subApp, timers, roundRepo, emitter, clock, orchestrator.Config{
		NextRoundDelay:     config.NextRoundDelay(),
		AutoStartNextRound: config.Orchestrator.AutoStartNextRound,
	})

	adminToken := getEnv("ADMIN_TOKEN", "")
	if adminToken == "" {
		log.Warn().Msg("ADMIN_TOKEN not set, admin endpoints disabled")
	}

	gw := gateway.NewService(orch, emitter, cm, adminToken)

	return &Services{
		Orchestrator: orch,
		Gateway:      gw,
		NATS:         nats,
	}, nil
}

func setupCharacters(config *Config) *ai.CharacterSet {
	if len(config.Characters) > 0 {
		return ai.NewCharacterSet(config.Characters)
	}
	return ai.NewCharacterSet(ai.DefaultCharacters)
}

func setupJudge(config *Config) ai.Judge {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" || !config.Judge.Enabled {
		log.Warn().Msg("AI judge disabled, rounds fall back to random winners")
		return nil
	}
	return openai.New(apiKey, getEnv("OPENAI_BASE_URL", ""), config.Judge.Model)
}

func setupTreasury(ctx context.Context, config *Config) treasury.Treasury {
	rpcURL := os.Getenv("ETH_RPC_URL")
	privateKey := os.Getenv("ETH_PRIVATE_KEY")
	if rpcURL == "" || privateKey == "" {
		log.Warn().Msg("treasury not configured, payouts disabled")
		return nil
	}

	client, err := eth.NewClient(ctx, rpcURL, privateKey, config.Round.HouseFeeFraction)
	if err != nil {
		log.Error().Err(err).Msg("failed to connect treasury, payouts disabled")
		return nil
	}
	return client
}

func setupNATS() *events.NATSPublisher {
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		return nil
	}
	pub, err := events.NewNATSPublisher(natsURL, getEnv("NATS_SUBJECT_PREFIX", "roast.events"))
	if err != nil {
		log.Error().Err(err).Msg("failed to connect NATS, event mirroring disabled")
		return nil
	}
	return pub
}
