package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpServer "ilpotaxi/api/http"
	"ilpotaxi/internal/config"
	"ilpotaxi/internal/initial"
	assignmentService "ilpotaxi/internal/modules/assignment/application/service"
	assignmentEntity "ilpotaxi/internal/modules/assignment/domain/entity"
	assignmentPersistence "ilpotaxi/internal/modules/assignment/infrastructure/persistence"
	assignmentHandler "ilpotaxi/internal/modules/assignment/interface/http"
	assistantService "ilpotaxi/internal/modules/assistant/application/service"
	"ilpotaxi/internal/modules/assistant/domain/session"
	"ilpotaxi/internal/modules/assistant/infrastructure/llm"
	operatorService "ilpotaxi/internal/modules/operator/application/service"
	"ilpotaxi/internal/modules/operator/domain/capacity"
	capacityImpl "ilpotaxi/internal/modules/operator/infrastructure/capacity"
	operatorPersistence "ilpotaxi/internal/modules/operator/infrastructure/persistence"
	operatorHandler "ilpotaxi/internal/modules/operator/interface/http"
	supportService "ilpotaxi/internal/modules/support/application/service"
	supportGateway "ilpotaxi/internal/modules/support/domain/gateway"
	"ilpotaxi/internal/modules/support/infrastructure/mq"
	"ilpotaxi/internal/modules/support/infrastructure/mq/kafka"
	"ilpotaxi/internal/modules/support/infrastructure/notify"
	supportPersistence "ilpotaxi/internal/modules/support/infrastructure/persistence"
	supportEvent "ilpotaxi/internal/modules/support/interface/event"
	supportHandler "ilpotaxi/internal/modules/support/interface/http"
	"ilpotaxi/pkg/metrics"
	"ilpotaxi/pkg/ws"
	"ilpotaxi/pkg/zlog"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	conf := config.GetConfig()
	zlog.Init(conf.LogConfig.LogPath)
	defer zlog.Sync()

	db, err := initial.NewGormDB(conf)
	if err != nil {
		zlog.Fatal("mysql init failed", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)

	var counter capacity.Counter
	rdb, err := initial.NewRedisClient(conf)
	switch {
	case err != nil:
		zlog.Fatal("redis init failed", zap.Error(err))
	case rdb == nil:
		zlog.Warn("redis not configured, capacity counter is process local")
		counter = capacityImpl.NewMemoryCounter()
	default:
		counter = capacityImpl.NewRedisCounter(rdb)
	}

	// repositories
	operatorRepo := operatorPersistence.NewOperatorRepository(db)
	workSessionRepo := operatorPersistence.NewWorkSessionRepository(db)
	workItemRepo := assignmentPersistence.NewWorkItemRepository(db)
	applicationRepo := assignmentPersistence.NewApplicationRepository(db)
	convRepo := supportPersistence.NewConversationRepository(db)
	msgRepo := supportPersistence.NewMessageRepository(db)

	// transports
	hub := ws.NewHub()
	clientGW := notify.NewWsGateway(hub)

	var publisher mq.Publisher
	var operatorGW supportGateway.OperatorGateway
	if len(conf.KafkaConfig.Brokers) > 0 {
		publisher, err = kafka.NewPublisher(kafka.PublisherConfig{
			Brokers:  conf.KafkaConfig.Brokers,
			ClientID: conf.KafkaConfig.ClientID,
		})
		if err != nil {
			zlog.Fatal("kafka publisher init failed", zap.Error(err))
		}
		operatorGW = notify.NewKafkaGateway(publisher, conf.KafkaConfig.NotifyTopic)
	} else {
		zlog.Warn("kafka not configured, operator notifications disabled")
	}
	notifier := notify.NewNotifier(operatorGW, conf.SupportConfig.NotifyRetryTimes, m)

	// services
	operatorSvc := operatorService.NewOperatorService(operatorRepo, workSessionRepo, counter, conf)
	engine := assignmentService.NewEngine(workItemRepo, operatorSvc, counter, notifier, m, conf)
	intakeSvc := assignmentService.NewIntakeService(workItemRepo, applicationRepo, engine, conf)

	store := session.NewStore(time.Duration(conf.SupportConfig.SessionTTLSeconds)*time.Second, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chatModel, meta, err := llm.NewChatModelFromConfig(ctx, conf)
	if err != nil {
		zlog.Warn("chat model unavailable, assistant degrades to canned replies", zap.Error(err))
	} else {
		zlog.Info("chat model ready", zap.String("provider", meta.Provider), zap.String("model", meta.Model))
	}
	assistantSvc := assistantService.NewAssistantService(store, chatModel)

	handoffSvc := supportService.NewHandoffService(convRepo, workItemRepo, engine, operatorSvc, counter, store, notifier, clientGW, m)
	relaySvc := supportService.NewRelayService(convRepo, msgRepo, operatorSvc, counter, store, notifier, clientGW, m, conf)
	actionSvc := supportService.NewActionService(workItemRepo, convRepo, engine, operatorSvc, counter, handoffSvc, relaySvc, m)

	// chat items picked up by the sweep still need their conversation built
	engine.OnAssigned(func(cbCtx context.Context, item *assignmentEntity.WorkItem, res *assignmentService.AssignmentResult) {
		if item.Kind != assignmentEntity.KindChat {
			return
		}
		item.AssignedOperatorUuid = res.OperatorUuid
		item.Status = assignmentEntity.StatusAssigned
		if _, err := handoffSvc.CompleteForWorkItem(cbCtx, item); err != nil {
			zlog.Warn("swept handoff incomplete", zap.String("workItem", item.Uuid), zap.Error(err))
		}
	})

	// handlers
	handlers := httpServer.Handlers{
		Operator:    operatorHandler.NewOperatorHandler(operatorSvc),
		Application: assignmentHandler.NewApplicationHandler(intakeSvc),
		Chat:        supportHandler.NewChatHandler(handoffSvc, relaySvc),
		Action:      supportHandler.NewActionHandler(actionSvc, relaySvc),
		Ws:          supportHandler.NewWsHandler(hub, store, assistantSvc, handoffSvc, relaySvc),
	}
	ginEngine := httpServer.BuildEngine(conf, handlers, registry)

	// background loops
	go engine.RunSweep(ctx)
	go store.RunCleanup(ctx, time.Duration(conf.SupportConfig.SessionCleanupSeconds)*time.Second)

	var consumer mq.Consumer
	if len(conf.KafkaConfig.Brokers) > 0 && conf.KafkaConfig.EventsTopic != "" {
		consumer, err = kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:  conf.KafkaConfig.Brokers,
			GroupID:  conf.KafkaConfig.ConsumerGroupID,
			Topics:   []string{conf.KafkaConfig.EventsTopic},
			ClientID: conf.KafkaConfig.ClientID,
		})
		if err != nil {
			zlog.Fatal("kafka consumer init failed", zap.Error(err))
		}
		eventHandler := supportEvent.NewOperatorEventHandler(actionSvc)
		go eventHandler.Run(ctx, consumer)
	}

	addr := fmt.Sprintf("%s:%d", conf.MainConfig.Host, conf.MainConfig.Port)
	srv := &http.Server{Addr: addr, Handler: ginEngine}
	go func() {
		zlog.Info("server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("server shutdown failed", zap.Error(err))
	}
	hub.Drain()
	if consumer != nil {
		_ = consumer.Close()
	}
	if publisher != nil {
		_ = publisher.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	zlog.Info("server stopped")
}
