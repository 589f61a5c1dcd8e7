package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bikerental/internal/config"
	"bikerental/internal/database"
	"bikerental/internal/domain"
)

type seedUser struct {
	email    string
	password string
	name     string
	role     domain.UserRole
}

var users = []seedUser{
	{"admin@bikerental.local", "admin123", "Administrator", domain.RoleAdmin},
	{"owner@bikerental.local", "owner123", "Olga Owner", domain.RoleOwner},
	{"renter@bikerental.local", "renter123", "Rita Renter", domain.RoleRenter},
}

var bikes = []domain.Bike{
	{Name: "Urban Glide", Brand: "Gazelle", Model: "Esprit", Type: domain.BikeCity, Location: "Berlin Mitte", PricePerDay: 18},
	{Name: "Trail Hunter", Brand: "Trek", Model: "Marlin 7", Type: domain.BikeMountain, Location: "Berlin Kreuzberg", PricePerDay: 32},
	{Name: "Speedster", Brand: "Canyon", Model: "Endurace", Type: domain.BikeRoad, Location: "Potsdam", PricePerDay: 40},
	{Name: "E-Cruiser", Brand: "Riese & Müller", Model: "Nevo", Type: domain.BikeElectric, Location: "Berlin Mitte", PricePerDay: 55},
	{Name: "Little Rider", Brand: "Woom", Model: "4", Type: domain.BikeKids, Location: "Berlin Pankow", PricePerDay: 12},
	{Name: "Workshop Spare", Brand: "Cube", Model: "Hyde", Type: domain.BikeCity, Location: "Potsdam", PricePerDay: 15, Status: domain.BikeMaintenance},
}

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
	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("migration failed")
	}

	if err := seed(db, log); err != nil {
		log.WithError(err).Error("seed failed")
		os.Exit(1)
	}
	log.Info("seed completed")
}

func seed(db *gorm.DB, log *logrus.Logger) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var owner domain.User
		for _, su := range users {
			hash, err := bcrypt.GenerateFromPassword([]byte(su.password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			u := domain.User{Email: su.email, PasswordHash: string(hash), Name: su.name, Role: su.role}
			err = tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "email"}},
				DoUpdates: clause.AssignmentColumns([]string{"password_hash", "name", "role"}),
			}).Create(&u).Error
			if err != nil {
				return fmt.Errorf("user %s: %w", su.email, err)
			}
			if err := tx.Where("email = ?", su.email).First(&u).Error; err != nil {
				return err
			}
			if su.role == domain.RoleOwner {
				owner = u
			}
			log.WithFields(logrus.Fields{"email": su.email, "password": su.password}).Info("user ready")
		}

		for _, b := range bikes {
			b.OwnerID = owner.ID
			if b.Status == "" {
				b.Status = domain.BikeAvailable
			}
			var existing int64
			if err := tx.Model(&domain.Bike{}).Where("owner_id = ? AND name = ?", owner.ID, b.Name).Count(&existing).Error; err != nil {
				return err
			}
			if existing > 0 {
				continue
			}
			if err := tx.Create(&b).Error; err != nil {
				return fmt.Errorf("bike %s: %w", b.Name, err)
			}
		}
		log.WithField("bikes", len(bikes)).Info("bikes ready")
		return nil
	})
}
