//go:build integration

package integration

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/config"
	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/internal/models"
	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/internal/referral"
	postgresrepo "github.com/aleksandrbekk/AR-ARENA-REACT-sub001/internal/repository/postgres"
	redisrepo "github.com/aleksandrbekk/AR-ARENA-REACT-sub001/internal/repository/redis"
	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/internal/service"
	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/pkg/database"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	testDB    *gorm.DB
	testRedis *goredis.Client
)

func TestMain(m *testing.M) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		log.Fatalf("could not connect to docker: %v", err)
	}

	pgResource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=test",
			"POSTGRES_PASSWORD=test",
			"POSTGRES_DB=ararena_test",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		log.Fatalf("could not start postgres: %v", err)
	}

	redisResource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "redis",
		Tag:        "7-alpine",
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		log.Fatalf("could not start redis: %v", err)
	}

	pool.MaxWait = 60 * time.Second

	if err := pool.Retry(func() error {
		pgPort, _ := parsePort(pgResource.GetPort("5432/tcp"))
		db, err := database.NewPostgresDB(config.PostgresConfig{
			Host:     "localhost",
			Port:     pgPort,
			Username: "test",
			Password: "test",
			DBName:   "ararena_test",
			SSLMode:  "disable",
		})
		if err != nil {
			return err
		}
		testDB = db
		return nil
	}); err != nil {
		log.Fatalf("could not connect to postgres: %v", err)
	}

	if err := pool.Retry(func() error {
		client, err := database.NewRedisClient(config.RedisConfig{
			Addr: "localhost:" + redisResource.GetPort("6379/tcp"),
		})
		if err != nil {
			return err
		}
		testRedis = client
		return nil
	}); err != nil {
		log.Fatalf("could not connect to redis: %v", err)
	}

	code := m.Run()

	_ = pool.Purge(pgResource)
	_ = pool.Purge(redisResource)

	os.Exit(code)
}

func parsePort(s string) (int, error) {
	var port int
	_, err := fmt.Sscanf(s, "%d", &port)
	return port, err
}

func newServices(t *testing.T) (*service.AuthService, *service.GameService) {
	t.Helper()

	logger := zap.NewNop()
	cfg := config.GameConfig{
		WelcomeBonus:       50,
		ReferralBonus:      100,
		EnergyMax:          100,
		EnergyRegenPerSec:  1.0,
		TapLeaderboardSize: 5,
		BulPerTap:          1,
		XPPerTap:           1,
	}

	healthChecker := database.NewHealthChecker(testDB, testRedis, logger, 5, 30*time.Second)

	userRepo := postgresrepo.NewResilientUserRepository(
		postgresrepo.NewUserRepository(testDB), healthChecker, logger)
	gameRepo := postgresrepo.NewResilientGameRepository(
		postgresrepo.NewGameRepository(testDB), healthChecker, logger)
	cacheRepo := redisrepo.NewResilientCacheRepository(
		redisrepo.NewCacheRepository(testRedis), healthChecker)

	return service.NewAuthService(userRepo, cacheRepo, cfg, logger),
		service.NewGameService(gameRepo, cacheRepo, cfg, logger)
}

func cleanupTables(t *testing.T) {
	t.Helper()
	for _, table := range []string{"transactions", "referral_relations", "game_states", "stream_taps", "users"} {
		if err := testDB.Exec("DELETE FROM " + table).Error; err != nil {
			t.Fatalf("failed to clean %s: %v", table, err)
		}
	}
	testRedis.FlushAll(context.Background())
}

func TestReferralFlowEndToEnd(t *testing.T) {
	cleanupTables(t)
	authSvc, _ := newServices(t)
	ctx := context.Background()

	// Реферер регистрируется первым
	referrerResult, err := authSvc.Authenticate(ctx, &models.TelegramIdentity{
		ID:       111,
		Username: "inviter",
	}, referral.LaunchParams{})
	if err != nil {
		t.Fatalf("referrer auth failed: %v", err)
	}
	if referrerResult.User.BalanceAR != 50 {
		t.Fatalf("expected welcome bonus 50, got %d", referrerResult.User.BalanceAR)
	}

	// Приглашенный входит по реферальной ссылке
	invited, err := authSvc.Authenticate(ctx, &models.TelegramIdentity{
		ID:       222,
		Username: "invited",
	}, referral.LaunchParams{StartParam: "ref_111"})
	if err != nil {
		t.Fatalf("invited auth failed: %v", err)
	}
	if invited.Attribution != service.AttributionLinked {
		t.Fatalf("expected linked attribution, got %s", invited.Attribution)
	}

	// Бонус выплачен ровно один раз
	var referrer models.User
	if err := testDB.Where("telegram_id = ?", int64(111)).First(&referrer).Error; err != nil {
		t.Fatalf("failed to load referrer: %v", err)
	}
	if referrer.BalanceAR != 150 {
		t.Errorf("expected referrer balance 150, got %d", referrer.BalanceAR)
	}

	// Повторный вход приглашенного ничего не доплачивает
	again, err := authSvc.Authenticate(ctx, &models.TelegramIdentity{
		ID:       222,
		Username: "invited",
	}, referral.LaunchParams{URLHash: "ref_111"})
	if err != nil {
		t.Fatalf("repeat auth failed: %v", err)
	}
	if again.IsNew {
		t.Error("repeat auth must not create a user")
	}

	if err := testDB.Where("telegram_id = ?", int64(111)).First(&referrer).Error; err != nil {
		t.Fatalf("failed to reload referrer: %v", err)
	}
	if referrer.BalanceAR != 150 {
		t.Errorf("referral bonus paid twice: balance %d", referrer.BalanceAR)
	}
}

func TestEnergyAndTapsEndToEnd(t *testing.T) {
	cleanupTables(t)
	authSvc, gameSvc := newServices(t)
	ctx := context.Background()

	result, err := authSvc.Authenticate(ctx, &models.TelegramIdentity{
		ID:       333,
		Username: "player",
	}, referral.LaunchParams{})
	if err != nil {
		t.Fatalf("auth failed: %v", err)
	}

	state, err := gameSvc.GetGameState(ctx, result.User.ID)
	if err != nil {
		t.Fatalf("failed to get game state: %v", err)
	}
	if state.Energy != 100 {
		t.Fatalf("expected full energy, got %d", state.Energy)
	}

	// Тапы тратят энергию и начисляют валюту
	tapResult, err := gameSvc.ProcessBullTaps(ctx, result.User.ID, 30)
	if err != nil {
		t.Fatalf("taps failed: %v", err)
	}
	if tapResult.Energy != 70 || tapResult.BulEarned != 30 {
		t.Errorf("unexpected tap result: %+v", tapResult)
	}

	// Регенерация не превышает максимум
	snapshot, err := gameSvc.RestoreEnergy(ctx, result.User.ID)
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if snapshot.Energy > snapshot.EnergyMax {
		t.Errorf("energy above max: %+v", snapshot)
	}
}

func TestStreamTapsEndToEnd(t *testing.T) {
	cleanupTables(t)
	_, gameSvc := newServices(t)
	ctx := context.Background()

	total, err := gameSvc.CommitStreamTaps(ctx, "player", 10)
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if total != 10 {
		t.Errorf("expected total 10, got %d", total)
	}

	total, err = gameSvc.CommitStreamTaps(ctx, "player", 7)
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if total != 17 {
		t.Errorf("expected total 17, got %d", total)
	}

	scores, err := gameSvc.TopScores(ctx)
	if err != nil {
		t.Fatalf("leaderboard failed: %v", err)
	}
	if len(scores) != 1 || scores[0].TapsCount != 17 {
		t.Errorf("unexpected leaderboard: %+v", scores)
	}
}
