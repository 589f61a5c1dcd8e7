package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"bikerental/internal/config"
	"bikerental/internal/database"
	"bikerental/internal/repository"
)

// booking_sweep expires abandoned bookings once, for use from cron.
func main() {
	log := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	db, err := database.Connect(cfg.DatabaseURL, log)
	if err != nil {
		log.WithError(err).Fatal("db connect failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := repository.NewBookingRepository(db).ExpireAbandoned(ctx, time.Now().UTC())
	if err != nil {
		log.WithError(err).Fatal("booking sweep failed")
	}
	log.WithField("expired", n).Info("booking sweep completed")
}
