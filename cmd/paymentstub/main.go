package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/axel-fz/echostore/internal/logger"
	"github.com/axel-fz/echostore/internal/paymentstub"
	"go.uber.org/zap"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	port := getEnv("HTTP_PORT", "8090")
	baseURL := getEnv("PUBLIC_URL", "http://localhost:"+port)
	failureRate, err := strconv.ParseFloat(getEnv("FAILURE_RATE", "0.05"), 64)
	if err != nil {
		failureRate = 0.05
	}

	log, err := logger.New("paymentstub", getEnv("LOG_LEVEL", "info"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	var publisher paymentstub.Publisher
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		kafkaPublisher := paymentstub.NewKafkaPublisher(strings.Split(brokers, ",")...)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	handler := paymentstub.NewHandler(baseURL, paymentstub.RandomOutcome{FailureRate: failureRate}, publisher, log)
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("payment stub starting", zap.String("port", port), zap.Float64("failure_rate", failureRate))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	log.Info("payment stub exited")
}
